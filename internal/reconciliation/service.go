package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/internal/inventory"
	dbpkg "github.com/angelmondragon/stockroom-backend/pkg/db"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/stockroom-backend/pkg/pagination"
)

const defaultBatchSize = 500

// errAlreadyFlagged aborts the confirm transaction when a concurrent run
// inserted the open flag first. Postgres has already aborted the transaction
// at that point, so it must roll back rather than commit.
var errAlreadyFlagged = errors.New("inventory row already flagged")

type txRunner interface {
	WithRetryTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type discrepancyRecorder interface {
	AddDiscrepancies(n int)
}

// Service compares every inventory row with the sum of its ledger and flags
// disagreements for review. It never rewrites quantities.
type Service interface {
	Run(ctx context.Context) (*RunSummary, error)
	ListFlags(ctx context.Context, status *enums.ReconciliationFlagStatus, params pagination.Params) (*FlagList, error)
	ResolveFlag(ctx context.Context, input ResolveInput) (*FlagDTO, error)
}

// ServiceParams wires the reconciliation service. Metrics and Logger may be nil.
type ServiceParams struct {
	Inventory inventory.Repository
	Flags     FlagRepository
	DB        txRunner
	Outbox    outboxPublisher
	Metrics   discrepancyRecorder
	Logger    *logger.Logger
	BatchSize int
}

type service struct {
	inventory inventory.Repository
	flags     FlagRepository
	db        txRunner
	outbox    outboxPublisher
	metrics   discrepancyRecorder
	logg      *logger.Logger
	batchSize int
	now       func() time.Time
}

// NewService builds the reconciliation service.
func NewService(params ServiceParams) (Service, error) {
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Flags == nil {
		return nil, fmt.Errorf("flag repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &service{
		inventory: params.Inventory,
		flags:     params.Flags,
		db:        params.DB,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      params.Logger,
		batchSize: batch,
		now:       time.Now,
	}, nil
}

// Run walks the projection in id order. A failure on one row is collected
// and the walk continues; the combined error is returned with the summary.
func (s *service) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{}
	var errs error
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return summary, multierr.Append(errs, err)
		}
		records, err := s.inventory.ListRecordsAfter(ctx, after, s.batchSize)
		if err != nil {
			return summary, multierr.Append(errs, fmt.Errorf("list inventory records: %w", err))
		}
		if len(records) == 0 {
			break
		}
		ids := make([]uuid.UUID, len(records))
		for i, r := range records {
			ids[i] = r.ID
		}
		sums, err := s.inventory.SumMovements(ctx, ids)
		if err != nil {
			return summary, multierr.Append(errs, fmt.Errorf("sum stock movements: %w", err))
		}
		for _, record := range records {
			summary.Checked++
			if record.Quantity == sums[record.ID] {
				continue
			}
			mismatch, flagged, err := s.confirm(ctx, record)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("inventory %s: %w", record.ID, err))
				continue
			}
			if mismatch {
				summary.Mismatches++
			}
			if flagged {
				summary.Flagged++
			}
		}
		after = records[len(records)-1].ID
		if len(records) < s.batchSize {
			break
		}
	}
	if s.metrics != nil && summary.Mismatches > 0 {
		s.metrics.AddDiscrepancies(summary.Mismatches)
	}
	return summary, errs
}

// confirm re-reads the row and its ledger under the row lock so a movement
// committed between the page read and the sum does not raise a false flag.
func (s *service) confirm(ctx context.Context, candidate models.InventoryRecord) (mismatch, flagged bool, err error) {
	err = s.db.WithRetryTx(ctx, func(tx *gorm.DB) error {
		mismatch, flagged = false, false
		invRepo := s.inventory.WithTx(tx)
		record, err := invRepo.FindRecordForUpdate(ctx, candidate.ProductID, candidate.LocationID)
		if err != nil {
			return err
		}
		sums, err := invRepo.SumMovements(ctx, []uuid.UUID{record.ID})
		if err != nil {
			return err
		}
		ledger := sums[record.ID]
		if record.Quantity == ledger {
			return nil
		}
		mismatch = true
		s.logMismatch(ctx, record, ledger)

		flags := s.flags.WithTx(tx)
		if _, err := flags.FindOpen(ctx, record.ID); err == nil {
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		flag := &models.ReconciliationFlag{
			InventoryID:       record.ID,
			ProductID:         record.ProductID,
			LocationID:        record.LocationID,
			ProjectedQuantity: record.Quantity,
			LedgerQuantity:    ledger,
			Status:            enums.ReconciliationFlagOpen,
			DetectedAt:        s.now().UTC(),
		}
		if err := flags.Create(ctx, flag); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return errAlreadyFlagged
			}
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryMismatchFlagged,
			AggregateType: enums.AggregateReconciliationFlag,
			AggregateID:   flag.ID,
			Version:       1,
			Data: payloads.InventoryMismatchFlaggedEvent{
				FlagID:            flag.ID,
				InventoryID:       record.ID,
				ProductID:         record.ProductID,
				LocationID:        record.LocationID,
				ProjectedQuantity: record.Quantity,
				LedgerQuantity:    ledger,
			},
		}); err != nil {
			return err
		}
		flagged = true
		return nil
	})
	if errors.Is(err, errAlreadyFlagged) {
		return true, false, nil
	}
	return mismatch, flagged, err
}

func (s *service) logMismatch(ctx context.Context, record *models.InventoryRecord, ledger int) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"inventory_id":       record.ID.String(),
		"product_id":         record.ProductID.String(),
		"location_id":        record.LocationID.String(),
		"projected_quantity": record.Quantity,
		"ledger_quantity":    ledger,
	})
	s.logg.Warn(logCtx, "inventory projection disagrees with ledger")
}

func (s *service) ListFlags(ctx context.Context, status *enums.ReconciliationFlagStatus, params pagination.Params) (*FlagList, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("invalid status %q", *status))
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.InvalidWrap(err, "invalid cursor", nil)
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.flags.List(ctx, status, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reconciliation flags")
	}
	rows, next := pagination.Trim(rows, limit, func(f models.ReconciliationFlag) pagination.Cursor {
		return pagination.Cursor{CreatedAt: f.DetectedAt, ID: f.ID}
	})
	list := &FlagList{Flags: make([]FlagDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Flags = append(list.Flags, toFlagDTO(row))
	}
	return list, nil
}

func (s *service) ResolveFlag(ctx context.Context, input ResolveInput) (*FlagDTO, error) {
	if input.FlagID == uuid.Nil || input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "flag id and actor are required")
	}
	var resolved *models.ReconciliationFlag
	err := s.db.WithRetryTx(ctx, func(tx *gorm.DB) error {
		repo := s.flags.WithTx(tx)
		current, err := repo.FindByID(ctx, input.FlagID)
		if err != nil {
			return err
		}
		if current.Status != enums.ReconciliationFlagOpen {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "flag already resolved")
		}
		n, err := repo.Resolve(ctx, input.FlagID, input.ActorUserID, input.Note, s.now().UTC())
		if err != nil {
			return err
		}
		if n == 0 {
			return dbpkg.ErrStaleWrite
		}
		resolved, err = repo.FindByID(ctx, input.FlagID)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reconciliation flag not found")
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve reconciliation flag")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "flag_id", input.FlagID.String()), "reconciliation flag resolved")
	}
	dto := toFlagDTO(*resolved)
	return &dto, nil
}
