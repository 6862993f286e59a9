package reconciliation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/internal/inventory"
	"github.com/angelmondragon/stockroom-backend/pkg/db/dbtest"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox"
	"github.com/angelmondragon/stockroom-backend/pkg/pagination"
)

type discrepancyCount struct{ n int }

func (d *discrepancyCount) AddDiscrepancies(n int) { d.n += n }

type harness struct {
	svc     Service
	inv     inventory.Service
	conn    *gorm.DB
	metrics *discrepancyCount
}

func newHarness(t *testing.T) harness {
	t.Helper()
	client := dbtest.NewClient(t)
	ob := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	invSvc, err := inventory.NewService(inventory.NewRepository(client.DB()), client, ob, nil, nil)
	require.NoError(t, err)
	metrics := &discrepancyCount{}
	svc, err := NewService(ServiceParams{
		Inventory: inventory.NewRepository(client.DB()),
		Flags:     NewFlagRepository(client.DB()),
		DB:        client,
		Outbox:    ob,
		Metrics:   metrics,
		BatchSize: 2,
	})
	require.NoError(t, err)
	return harness{svc: svc, inv: invSvc, conn: client.DB(), metrics: metrics}
}

func (h harness) seed(t *testing.T, qty int) models.InventoryRecord {
	t.Helper()
	m, err := h.inv.ApplyMovement(context.Background(), inventory.MovementInput{
		ProductID:     uuid.New(),
		LocationID:    uuid.New(),
		VendorID:      uuid.New(),
		MovementType:  enums.MovementTypePurchase,
		QuantityDelta: qty,
	})
	require.NoError(t, err)
	var rec models.InventoryRecord
	require.NoError(t, h.conn.Where("id = ?", m.InventoryID).First(&rec).Error)
	return rec
}

// corrupt writes the projection directly, bypassing the ledger.
func (h harness) corrupt(t *testing.T, rec models.InventoryRecord, qty int) {
	t.Helper()
	require.NoError(t, h.conn.Exec("UPDATE inventory SET quantity = ? WHERE id = ?", qty, rec.ID).Error)
}

func TestRunWithConsistentLedgerFlagsNothing(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 5; i++ {
		h.seed(t, 10+i)
	}

	summary, err := h.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Checked)
	assert.Zero(t, summary.Mismatches)
	assert.Zero(t, h.metrics.n)
}

func TestRunFlagsMismatchOnceAndNeverCorrects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, 3)
	bad := h.seed(t, 10)
	h.seed(t, 7)
	h.corrupt(t, bad, 12)

	summary, err := h.svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Checked)
	assert.Equal(t, 1, summary.Mismatches)
	assert.Equal(t, 1, summary.Flagged)
	assert.Equal(t, 1, h.metrics.n)

	var rec models.InventoryRecord
	require.NoError(t, h.conn.Where("id = ?", bad.ID).First(&rec).Error)
	assert.Equal(t, 12, rec.Quantity)

	again, err := h.svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Mismatches)
	assert.Zero(t, again.Flagged)

	list, err := h.svc.ListFlags(ctx, nil, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, list.Flags, 1)
	flag := list.Flags[0]
	assert.Equal(t, bad.ID, flag.InventoryID)
	assert.Equal(t, 12, flag.ProjectedQuantity)
	assert.Equal(t, 10, flag.LedgerQuantity)
	assert.Equal(t, 2, flag.Discrepancy)
	assert.Equal(t, enums.ReconciliationFlagOpen, flag.Status)

	var events int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventInventoryMismatchFlagged).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestResolveFlagAllowsNewFlag(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bad := h.seed(t, 4)
	h.corrupt(t, bad, 1)

	_, err := h.svc.Run(ctx)
	require.NoError(t, err)
	list, err := h.svc.ListFlags(ctx, nil, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, list.Flags, 1)

	note := "recounted shelf"
	actor := uuid.New()
	resolved, err := h.svc.ResolveFlag(ctx, ResolveInput{FlagID: list.Flags[0].ID, ActorUserID: actor, Note: &note})
	require.NoError(t, err)
	assert.Equal(t, enums.ReconciliationFlagResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, actor, *resolved.ResolvedBy)

	_, err = h.svc.ResolveFlag(ctx, ResolveInput{FlagID: list.Flags[0].ID, ActorUserID: actor})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	_, err = h.svc.ResolveFlag(ctx, ResolveInput{FlagID: uuid.New(), ActorUserID: actor})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	summary, err := h.svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Flagged)

	open := enums.ReconciliationFlagOpen
	openList, err := h.svc.ListFlags(ctx, &open, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, openList.Flags, 1)
}

type failingLockRepo struct {
	inventory.Repository
	failFor uuid.UUID
}

func (r failingLockRepo) WithTx(tx *gorm.DB) inventory.Repository {
	return failingLockRepo{Repository: r.Repository.WithTx(tx), failFor: r.failFor}
}

func (r failingLockRepo) FindRecordForUpdate(ctx context.Context, productID, locationID uuid.UUID) (*models.InventoryRecord, error) {
	rec, err := r.Repository.FindRecordForUpdate(ctx, productID, locationID)
	if err == nil && rec.ID == r.failFor {
		return nil, errors.New("lock failed")
	}
	return rec, err
}

func TestRunCollectsPerRowFailuresAndContinues(t *testing.T) {
	h := newHarness(t)

	first := h.seed(t, 5)
	second := h.seed(t, 6)
	h.corrupt(t, first, 0)
	h.corrupt(t, second, 0)

	ob := outbox.NewService(outbox.NewRepository(h.conn), nil)
	svc, err := NewService(ServiceParams{
		Inventory: failingLockRepo{Repository: inventory.NewRepository(h.conn), failFor: first.ID},
		Flags:     NewFlagRepository(h.conn),
		DB:        txOnConn{conn: h.conn},
		Outbox:    ob,
	})
	require.NoError(t, err)

	summary, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Flagged)
}

type txOnConn struct{ conn *gorm.DB }

func (r txOnConn) WithRetryTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.conn.WithContext(ctx).Transaction(fn)
}

// racingFlags hides open flags from the pre-insert check, as if another run
// committed its flag after this one looked.
type racingFlags struct {
	FlagRepository
}

func (r racingFlags) WithTx(tx *gorm.DB) FlagRepository {
	return racingFlags{FlagRepository: r.FlagRepository.WithTx(tx)}
}

func (r racingFlags) FindOpen(context.Context, uuid.UUID) (*models.ReconciliationFlag, error) {
	return nil, gorm.ErrRecordNotFound
}

type recordingTx struct {
	conn *gorm.DB
	errs []error
}

func (r *recordingTx) WithRetryTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := r.conn.WithContext(ctx).Transaction(fn)
	r.errs = append(r.errs, err)
	return err
}

func TestRunTreatsConcurrentFlagAsAlreadyFlagged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bad := h.seed(t, 4)
	h.corrupt(t, bad, 9)

	summary, err := h.svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Flagged)

	tx := &recordingTx{conn: h.conn}
	ob := outbox.NewService(outbox.NewRepository(h.conn), nil)
	svc, err := NewService(ServiceParams{
		Inventory: inventory.NewRepository(h.conn),
		Flags:     racingFlags{FlagRepository: NewFlagRepository(h.conn)},
		DB:        tx,
		Outbox:    ob,
	})
	require.NoError(t, err)

	again, err := svc.Run(ctx)
	require.NoError(t, err, "a lost insert race is not a row failure")
	assert.Equal(t, 1, again.Mismatches)
	assert.Zero(t, again.Flagged)

	require.Len(t, tx.errs, 1)
	assert.ErrorIs(t, tx.errs[0], errAlreadyFlagged, "the transaction must roll back instead of committing")

	var flags, events int64
	require.NoError(t, h.conn.Model(&models.ReconciliationFlag{}).Where("inventory_id = ?", bad.ID).Count(&flags).Error)
	assert.Equal(t, int64(1), flags)
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventInventoryMismatchFlagged).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}
