package sessions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/pkg/db/dbtest"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox"
	"github.com/angelmondragon/stockroom-backend/pkg/pagination"
)

type counterCalls struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *counterCalls) IncCounterUpdate(counter string, decrement bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := counter
	if decrement {
		key += ":dec"
	}
	c.calls[key]++
}

type fixture struct {
	svc     Service
	conn    *gorm.DB
	metrics *counterCalls
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.NewClient(t)
	metrics := &counterCalls{calls: map[string]int{}}
	ob := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	svc, err := NewService(NewRepository(client.DB()), client, ob, metrics, nil)
	require.NoError(t, err)
	return fixture{svc: svc, conn: client.DB(), metrics: metrics}
}

func (f fixture) open(t *testing.T) *SessionDTO {
	t.Helper()
	session, err := f.svc.Open(context.Background(), OpenInput{
		LocationID: uuid.New(),
		VendorID:   uuid.New(),
		OpenedBy:   uuid.New(),
	})
	require.NoError(t, err)
	return session
}

func (f fixture) reload(t *testing.T, id uuid.UUID) models.POSSession {
	t.Helper()
	var row models.POSSession
	require.NoError(t, f.conn.Where("id = ?", id).First(&row).Error)
	return row
}

func requireReason(t *testing.T, err error, reason pkgerrors.Reason) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, reason, pkgerrors.ReasonOf(err))
	assert.False(t, pkgerrors.As(err).Details().(pkgerrors.Rejection).Applied)
}

func TestOpenRejectsSecondSessionAtLocation(t *testing.T) {
	f := newFixture(t)
	session := f.open(t)
	assert.Equal(t, enums.POSSessionStatusOpen, session.Status)
	assert.True(t, session.TotalSales.IsZero())

	_, err := f.svc.Open(context.Background(), OpenInput{
		LocationID: session.LocationID,
		VendorID:   session.VendorID,
		OpenedBy:   uuid.New(),
	})
	requireReason(t, err, pkgerrors.ReasonSessionAlreadyOpen)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestCloseFreesLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t)
	actor := uuid.New()

	closed, err := f.svc.Close(ctx, CloseInput{SessionID: session.ID, VendorID: &session.VendorID, ActorUserID: actor})
	require.NoError(t, err)
	assert.Equal(t, enums.POSSessionStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	require.NotNil(t, closed.ClosedBy)
	assert.Equal(t, actor, *closed.ClosedBy)

	_, err = f.svc.Close(ctx, CloseInput{SessionID: session.ID, ActorUserID: actor})
	requireReason(t, err, pkgerrors.ReasonSessionNotFoundOrClosed)

	_, err = f.svc.Open(ctx, OpenInput{LocationID: session.LocationID, VendorID: session.VendorID, OpenedBy: actor})
	require.NoError(t, err)

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ? AND event_type = ?", session.ID, enums.EventPOSSessionClosed).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestCloseByOtherVendorLooksMissing(t *testing.T) {
	f := newFixture(t)
	session := f.open(t)
	other := uuid.New()

	_, err := f.svc.Close(context.Background(), CloseInput{SessionID: session.ID, VendorID: &other, ActorUserID: uuid.New()})
	requireReason(t, err, pkgerrors.ReasonSessionNotFoundOrClosed)
	assert.Equal(t, enums.POSSessionStatusOpen, f.reload(t, session.ID).Status)
}

func TestIncrementCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t)

	updated, err := f.svc.IncrementCounter(ctx, session.ID, "walk_in_sales", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.WalkInSales)

	updated, err = f.svc.IncrementCounter(ctx, session.ID, "delivery_orders_dispatched", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.WalkInSales)
	assert.Equal(t, 1, updated.DeliveryOrdersDispatched)
	assert.Equal(t, 1, f.metrics.calls["walk_in_sales"])
}

func TestIncrementCounterRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.open(t)

	for _, name := range []string{"", "total_sales", "status", "walk_in_sales; DROP TABLE pos_sessions"} {
		_, err := f.svc.IncrementCounter(ctx, session.ID, name, 1)
		requireReason(t, err, pkgerrors.ReasonInvalidCounterName)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	}

	_, err := f.svc.IncrementCounter(ctx, session.ID, "walk_in_sales", 0)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = f.svc.IncrementCounter(ctx, uuid.New(), "walk_in_sales", 1)
	requireReason(t, err, pkgerrors.ReasonSessionNotFoundOrClosed)

	_, err = f.svc.Close(ctx, CloseInput{SessionID: session.ID, ActorUserID: uuid.New()})
	require.NoError(t, err)
	_, err = f.svc.IncrementCounter(ctx, session.ID, "walk_in_sales", 1)
	requireReason(t, err, pkgerrors.ReasonSessionNotFoundOrClosed)
	assert.Equal(t, 0, f.reload(t, session.ID).WalkInSales)
}

func TestConcurrentIncrementsAreAllCounted(t *testing.T) {
	f := newFixture(t)
	session := f.open(t)
	const workers, amount = 25, 3

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.IncrementCounter(context.Background(), session.ID, "pickup_orders_fulfilled", amount)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, workers*amount, f.reload(t, session.ID).PickupOrdersFulfilled)
}

func TestSaleAndRefundMoveTotal(t *testing.T) {
	client := dbtest.NewClient(t)
	ob := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	svc, err := NewService(NewRepository(client.DB()), client, ob, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	session, err := svc.Open(ctx, OpenInput{LocationID: uuid.New(), VendorID: uuid.New(), OpenedBy: uuid.New()})
	require.NoError(t, err)

	require.NoError(t, client.WithRetryTx(ctx, func(tx *gorm.DB) error {
		return svc.AddSaleTx(ctx, tx, session.ID, decimal.RequireFromString("12.50"))
	}))
	updated, err := svc.DecrementForRefund(ctx, session.ID, decimal.RequireFromString("2.50"))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10").Equal(updated.TotalSales), updated.TotalSales.String())

	updated, err = svc.DecrementForRefund(ctx, session.ID, decimal.RequireFromString("15"))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("-5").Equal(updated.TotalSales), updated.TotalSales.String())

	_, err = svc.DecrementForRefund(ctx, session.ID, decimal.Zero)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.DecrementForRefund(ctx, uuid.New(), decimal.RequireFromString("1"))
	requireReason(t, err, pkgerrors.ReasonSessionNotFoundOrClosed)
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.conn.Create(&models.POSSession{
			ID:         uuid.New(),
			LocationID: uuid.New(),
			VendorID:   vendor,
			OpenedBy:   uuid.New(),
			TotalSales: decimal.Zero,
			Status:     enums.POSSessionStatusOpen,
			OpenedAt:   base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}
	other := f.open(t)

	_, err := f.svc.Get(ctx, other.ID, &vendor)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	got, err := f.svc.Get(ctx, other.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, other.ID, got.ID)

	page, err := f.svc.List(ctx, ListFilters{VendorID: &vendor}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Sessions, 2)
	require.NotEmpty(t, page.NextCursor)
	assert.True(t, page.Sessions[0].OpenedAt.After(page.Sessions[1].OpenedAt))

	rest, err := f.svc.List(ctx, ListFilters{VendorID: &vendor}, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Sessions, 1)
	assert.Empty(t, rest.NextCursor)

	bad := enums.POSSessionStatus("paused")
	_, err = f.svc.List(ctx, ListFilters{Status: &bad}, pagination.Params{})
	require.Error(t, err)
}
