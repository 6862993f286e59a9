package pos

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/internal/inventory"
	"github.com/angelmondragon/stockroom-backend/internal/sessions"
	"github.com/angelmondragon/stockroom-backend/pkg/db/dbtest"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox"
)

type harness struct {
	svc      Service
	sessions sessions.Service
	inv      inventory.Service
	conn     *gorm.DB
	session  *sessions.SessionDTO
}

func newHarness(t *testing.T) harness {
	t.Helper()
	client := dbtest.NewClient(t)
	ob := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	invSvc, err := inventory.NewService(inventory.NewRepository(client.DB()), client, ob, nil, nil)
	require.NoError(t, err)
	sessSvc, err := sessions.NewService(sessions.NewRepository(client.DB()), client, ob, nil, nil)
	require.NoError(t, err)
	svc, err := NewService(sessSvc, invSvc, client, ob, nil, nil)
	require.NoError(t, err)

	session, err := sessSvc.Open(context.Background(), sessions.OpenInput{
		LocationID: uuid.New(),
		VendorID:   uuid.New(),
		OpenedBy:   uuid.New(),
	})
	require.NoError(t, err)
	return harness{svc: svc, sessions: sessSvc, inv: invSvc, conn: client.DB(), session: session}
}

func (h harness) stock(t *testing.T, product uuid.UUID, qty int) {
	t.Helper()
	_, err := h.inv.ApplyMovement(context.Background(), inventory.MovementInput{
		ProductID:     product,
		LocationID:    h.session.LocationID,
		VendorID:      h.session.VendorID,
		MovementType:  enums.MovementTypePurchase,
		QuantityDelta: qty,
	})
	require.NoError(t, err)
}

func (h harness) onHand(t *testing.T, product uuid.UUID) int {
	t.Helper()
	rec, err := h.inv.GetRecord(context.Background(), product, h.session.LocationID)
	require.NoError(t, err)
	return rec.Quantity
}

func (h harness) current(t *testing.T) *sessions.SessionDTO {
	t.Helper()
	s, err := h.sessions.Get(context.Background(), h.session.ID, nil)
	require.NoError(t, err)
	return s
}

func TestRecordSaleMovesStockCounterAndTotal(t *testing.T) {
	h := newHarness(t)
	a, b := uuid.New(), uuid.New()
	h.stock(t, a, 10)
	h.stock(t, b, 5)

	res, err := h.svc.RecordSale(context.Background(), SaleInput{
		SessionID: h.session.ID,
		VendorID:  h.session.VendorID,
		Amount:    decimal.RequireFromString("42.50"),
		Items:     []LineInput{{ProductID: a, Quantity: 3}, {ProductID: b, Quantity: 5}},
	})
	require.NoError(t, err)
	require.Len(t, res.Lines, 2)
	assert.Equal(t, string(enums.SessionCounterWalkInSales), res.Counter)

	assert.Equal(t, 7, h.onHand(t, a))
	assert.Equal(t, 0, h.onHand(t, b))
	s := h.current(t)
	assert.Equal(t, 1, s.WalkInSales)
	assert.True(t, decimal.RequireFromString("42.5").Equal(s.TotalSales), s.TotalSales.String())

	var movement models.StockMovement
	require.NoError(t, h.conn.Where("product_id = ? AND movement_type = ?", a, enums.MovementTypeSale).First(&movement).Error)
	require.NotNil(t, movement.ReferenceType)
	assert.Equal(t, inventory.ReferencePOSSale, *movement.ReferenceType)
	require.NotNil(t, movement.ReferenceID)
	assert.Equal(t, res.SaleID, *movement.ReferenceID)
}

func TestRecordSaleIsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	a, b := uuid.New(), uuid.New()
	h.stock(t, a, 10)
	h.stock(t, b, 1)

	_, err := h.svc.RecordSale(context.Background(), SaleInput{
		SessionID: h.session.ID,
		VendorID:  h.session.VendorID,
		Amount:    decimal.RequireFromString("10"),
		Items:     []LineInput{{ProductID: a, Quantity: 2}, {ProductID: b, Quantity: 2}},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.ReasonInsufficientStock, pkgerrors.ReasonOf(err))

	assert.Equal(t, 10, h.onHand(t, a))
	assert.Equal(t, 1, h.onHand(t, b))
	s := h.current(t)
	assert.Equal(t, 0, s.WalkInSales)
	assert.True(t, s.TotalSales.IsZero())
}

func TestRecordSaleRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := uuid.New()
	h.stock(t, product, 5)
	line := []LineInput{{ProductID: product, Quantity: 1}}

	_, err := h.svc.RecordSale(ctx, SaleInput{SessionID: h.session.ID, VendorID: h.session.VendorID, Counter: "refunds", Items: line})
	assert.Equal(t, pkgerrors.ReasonInvalidCounterName, pkgerrors.ReasonOf(err))

	_, err = h.svc.RecordSale(ctx, SaleInput{SessionID: h.session.ID, VendorID: uuid.New(), Items: line})
	assert.Equal(t, pkgerrors.ReasonSessionNotFoundOrClosed, pkgerrors.ReasonOf(err))

	_, err = h.svc.RecordSale(ctx, SaleInput{
		SessionID: h.session.ID,
		VendorID:  h.session.VendorID,
		Items:     []LineInput{{ProductID: product, Quantity: 1}, {ProductID: product, Quantity: 1}},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = h.sessions.Close(ctx, sessions.CloseInput{SessionID: h.session.ID, ActorUserID: uuid.New()})
	require.NoError(t, err)
	_, err = h.svc.RecordSale(ctx, SaleInput{SessionID: h.session.ID, VendorID: h.session.VendorID, Items: line})
	assert.Equal(t, pkgerrors.ReasonSessionNotFoundOrClosed, pkgerrors.ReasonOf(err))
	assert.Equal(t, 5, h.onHand(t, product))
}

func TestRefundRestocksAndDecrementsTotal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	product := uuid.New()
	h.stock(t, product, 4)
	_, err := h.svc.RecordSale(ctx, SaleInput{
		SessionID: h.session.ID,
		VendorID:  h.session.VendorID,
		Amount:    decimal.RequireFromString("30"),
		Items:     []LineInput{{ProductID: product, Quantity: 3}},
	})
	require.NoError(t, err)

	damaged := enums.ItemConditionDamaged
	orderID := uuid.New()
	res, err := h.svc.Refund(ctx, RefundInput{
		SessionID: h.session.ID,
		VendorID:  h.session.VendorID,
		Amount:    decimal.RequireFromString("10"),
		OrderID:   &orderID,
		Items:     []LineInput{{ProductID: product, Quantity: 1, Condition: &damaged}},
	})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, 1, res.Lines[0].Quantity)

	assert.Equal(t, 2, h.onHand(t, product))
	assert.True(t, decimal.RequireFromString("20").Equal(h.current(t).TotalSales))

	var movement models.StockMovement
	require.NoError(t, h.conn.Where("id = ?", res.Lines[0].MovementID).First(&movement).Error)
	assert.Equal(t, enums.MovementTypeRefund, movement.MovementType)
	require.NotNil(t, movement.ReferenceID)
	assert.Equal(t, orderID, *movement.ReferenceID)
	require.NotNil(t, movement.Condition)
	assert.Equal(t, damaged, *movement.Condition)

	var events int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventPOSRefundRecorded).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestRefundMayTakeTotalNegativeAndNeedsOpenSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Refund(ctx, RefundInput{SessionID: h.session.ID, VendorID: h.session.VendorID, Amount: decimal.RequireFromString("5")})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("-5").Equal(h.current(t).TotalSales))

	_, err = h.svc.Refund(ctx, RefundInput{SessionID: h.session.ID, VendorID: h.session.VendorID, Amount: decimal.Zero})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = h.sessions.Close(ctx, sessions.CloseInput{SessionID: h.session.ID, ActorUserID: uuid.New()})
	require.NoError(t, err)
	_, err = h.svc.Refund(ctx, RefundInput{SessionID: h.session.ID, VendorID: h.session.VendorID, Amount: decimal.RequireFromString("1")})
	assert.Equal(t, pkgerrors.ReasonSessionNotFoundOrClosed, pkgerrors.ReasonOf(err))
}
