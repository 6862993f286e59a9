package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/stockroom-backend/pkg/db"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/stockroom-backend/pkg/pagination"
)

type txRunner interface {
	WithRetryTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type movementRecorder interface {
	IncMovement(movementType string)
}

// Service is the only writer of inventory quantities.
type Service interface {
	ApplyMovement(ctx context.Context, input MovementInput) (*models.StockMovement, error)
	ApplyMovementTx(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.StockMovement, error)
	Adjust(ctx context.Context, input AdjustInput) (*models.StockMovement, error)
	Transfer(ctx context.Context, input TransferInput) (*TransferResult, error)
	GetRecord(ctx context.Context, productID, locationID uuid.UUID) (*RecordDTO, error)
	ListMovements(ctx context.Context, productID, locationID uuid.UUID, params pagination.Params) (*MovementList, error)
	ListLowStock(ctx context.Context, vendorID uuid.UUID, locationID *uuid.UUID) ([]RecordDTO, error)
	SetLowStockThreshold(ctx context.Context, productID, locationID, vendorID uuid.UUID, threshold int) (*RecordDTO, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics movementRecorder
	logg    *logger.Logger
}

// NewService wires the inventory service. metrics and logg may be nil.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, metrics movementRecorder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outbox,
		metrics: metrics,
		logg:    logg,
	}, nil
}

func (s *service) ApplyMovement(ctx context.Context, input MovementInput) (*models.StockMovement, error) {
	if err := validateMovement(input); err != nil {
		return nil, err
	}
	var movement *models.StockMovement
	err := s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		m, err := s.ApplyMovementTx(ctx, tx, input)
		if err != nil {
			return err
		}
		movement = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncMovement(string(movement.MovementType))
	}
	return movement, nil
}

// ApplyMovementTx locks the (product, location) row, creating it at zero if
// absent, writes the new balance with a guarded update and appends the ledger
// entry. The caller owns tx and its retry loop.
func (s *service) ApplyMovementTx(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.StockMovement, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if err := validateMovement(input); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)

	record, err := s.lockOrCreateRecord(ctx, repo, input)
	if err != nil {
		return nil, err
	}
	if record.VendorID != input.VendorID {
		return nil, pkgerrors.Reject(pkgerrors.CodeForbidden, pkgerrors.ReasonVendorMismatch, "inventory record belongs to another vendor")
	}

	before := record.Quantity
	after := before + input.QuantityDelta
	if input.QuantityDelta < 0 && after < 0 && !input.IsCorrection {
		return nil, pkgerrors.Reject(pkgerrors.CodeStateConflict, pkgerrors.ReasonInsufficientStock,
			fmt.Sprintf("insufficient stock: have %d, need %d", before, -input.QuantityDelta),
			pkgerrors.ItemConflict{
				ItemID:    input.ProductID.String(),
				Reason:    pkgerrors.ReasonInsufficientStock,
				Requested: -input.QuantityDelta,
				Available: before,
			})
	}

	if err := repo.UpdateQuantity(ctx, record.ID, before, after); err != nil {
		return nil, err
	}

	movement := &models.StockMovement{
		InventoryID:    record.ID,
		ProductID:      input.ProductID,
		LocationID:     input.LocationID,
		VendorID:       input.VendorID,
		MovementType:   input.MovementType,
		Quantity:       input.QuantityDelta,
		QuantityBefore: before,
		QuantityAfter:  after,
		Condition:      input.Condition,
		Notes:          input.Notes,
		IsCorrection:   input.IsCorrection,
		ActorUserID:    input.ActorUserID,
	}
	if input.Reference != nil {
		refType := input.Reference.Type
		refID := input.Reference.ID
		movement.ReferenceType = &refType
		movement.ReferenceID = &refID
	}
	if err := repo.CreateMovement(ctx, movement); err != nil {
		return nil, err
	}

	if err := s.emitMovement(ctx, tx, record, movement, input.ActorUserID); err != nil {
		return nil, err
	}
	return movement, nil
}

func (s *service) lockOrCreateRecord(ctx context.Context, repo Repository, input MovementInput) (*models.InventoryRecord, error) {
	record, err := repo.FindRecordForUpdate(ctx, input.ProductID, input.LocationID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	record = &models.InventoryRecord{
		ProductID:  input.ProductID,
		LocationID: input.LocationID,
		VendorID:   input.VendorID,
		Quantity:   0,
	}
	if err := repo.CreateRecord(ctx, record); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			// lost the race to create the row; the next attempt will lock it
			return nil, fmt.Errorf("%w: %v", dbpkg.ErrStaleWrite, err)
		}
		return nil, err
	}
	return record, nil
}

func (s *service) emitMovement(ctx context.Context, tx *gorm.DB, record *models.InventoryRecord, movement *models.StockMovement, actorID *uuid.UUID) error {
	actor := actorRef(actorID, record.VendorID)
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventStockMovementRecorded,
		AggregateType: enums.AggregateInventory,
		AggregateID:   record.ID,
		Actor:         actor,
		Version:       1,
		Data: payloads.StockMovementRecordedEvent{
			MovementID:     movement.ID,
			InventoryID:    record.ID,
			ProductID:      movement.ProductID,
			LocationID:     movement.LocationID,
			VendorID:       movement.VendorID,
			MovementType:   movement.MovementType,
			Quantity:       movement.Quantity,
			QuantityBefore: movement.QuantityBefore,
			QuantityAfter:  movement.QuantityAfter,
			ReferenceType:  movement.ReferenceType,
			ReferenceID:    movement.ReferenceID,
		},
	}); err != nil {
		return err
	}

	threshold := record.LowStockThreshold
	if threshold <= 0 || movement.QuantityBefore <= threshold || movement.QuantityAfter > threshold {
		return nil
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"inventory_id": record.ID.String(),
			"product_id":   record.ProductID.String(),
			"location_id":  record.LocationID.String(),
			"quantity":     movement.QuantityAfter,
		})
		s.logg.Warn(logCtx, "inventory reached low stock threshold")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventLowStockReached,
		AggregateType: enums.AggregateInventory,
		AggregateID:   record.ID,
		Actor:         actor,
		Version:       1,
		Data: payloads.LowStockReachedEvent{
			InventoryID:       record.ID,
			ProductID:         record.ProductID,
			LocationID:        record.LocationID,
			VendorID:          record.VendorID,
			Quantity:          movement.QuantityAfter,
			LowStockThreshold: threshold,
		},
	})
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.StockMovement, error) {
	return s.ApplyMovement(ctx, MovementInput{
		ProductID:     input.ProductID,
		LocationID:    input.LocationID,
		VendorID:      input.VendorID,
		MovementType:  enums.MovementTypeAdjustment,
		QuantityDelta: input.Delta,
		Reference:     &Reference{Type: ReferenceManual, ID: uuid.New()},
		Notes:         input.Notes,
		IsCorrection:  input.IsCorrection,
		ActorUserID:   input.ActorUserID,
	})
}

// Transfer writes transfer_out and transfer_in legs in one transaction. Rows
// are locked in location id order so opposing transfers cannot deadlock.
func (s *service) Transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "quantity must be positive")
	}
	if input.FromLocationID == input.ToLocationID {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "source and destination locations must differ")
	}
	transferID := uuid.New()
	ref := &Reference{Type: ReferenceTransfer, ID: transferID}
	out := MovementInput{
		ProductID:     input.ProductID,
		LocationID:    input.FromLocationID,
		VendorID:      input.VendorID,
		MovementType:  enums.MovementTypeTransferOut,
		QuantityDelta: -input.Quantity,
		Reference:     ref,
		Notes:         input.Notes,
		ActorUserID:   input.ActorUserID,
	}
	in := MovementInput{
		ProductID:     input.ProductID,
		LocationID:    input.ToLocationID,
		VendorID:      input.VendorID,
		MovementType:  enums.MovementTypeTransferIn,
		QuantityDelta: input.Quantity,
		Reference:     ref,
		Notes:         input.Notes,
		ActorUserID:   input.ActorUserID,
	}
	legs := []*MovementInput{&out, &in}
	if input.ToLocationID.String() < input.FromLocationID.String() {
		legs = []*MovementInput{&in, &out}
	}

	result := &TransferResult{TransferID: transferID}
	err := s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		for _, leg := range legs {
			m, err := s.ApplyMovementTx(ctx, tx, *leg)
			if err != nil {
				return err
			}
			if leg.MovementType == enums.MovementTypeTransferOut {
				result.Out = *m
			} else {
				result.In = *m
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncMovement(string(enums.MovementTypeTransferOut))
		s.metrics.IncMovement(string(enums.MovementTypeTransferIn))
	}
	return result, nil
}

func (s *service) GetRecord(ctx context.Context, productID, locationID uuid.UUID) (*RecordDTO, error) {
	record, err := s.repo.FindRecord(ctx, productID, locationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory record")
	}
	dto := toRecordDTO(*record)
	return &dto, nil
}

func (s *service) ListMovements(ctx context.Context, productID, locationID uuid.UUID, params pagination.Params) (*MovementList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.InvalidWrap(err, "invalid cursor", nil)
	}
	record, err := s.repo.FindRecord(ctx, productID, locationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &MovementList{Movements: []MovementDTO{}}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory record")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListMovements(ctx, record.ID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements")
	}

	rows, next := pagination.Trim(rows, limit, func(m models.StockMovement) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	list := &MovementList{Movements: make([]MovementDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Movements = append(list.Movements, toMovementDTO(row))
	}
	return list, nil
}

func (s *service) ListLowStock(ctx context.Context, vendorID uuid.UUID, locationID *uuid.UUID) ([]RecordDTO, error) {
	records, err := s.repo.ListLowStock(ctx, vendorID, locationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock")
	}
	out := make([]RecordDTO, 0, len(records))
	for _, r := range records {
		out = append(out, toRecordDTO(r))
	}
	return out, nil
}

func (s *service) SetLowStockThreshold(ctx context.Context, productID, locationID, vendorID uuid.UUID, threshold int) (*RecordDTO, error) {
	if threshold < 0 {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "threshold must be zero or positive")
	}
	var updated models.InventoryRecord
	err := s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := repo.FindRecordForUpdate(ctx, productID, locationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
			}
			return err
		}
		if record.VendorID != vendorID {
			return pkgerrors.Reject(pkgerrors.CodeForbidden, pkgerrors.ReasonVendorMismatch, "inventory record belongs to another vendor")
		}
		if err := repo.UpdateThreshold(ctx, record.ID, threshold); err != nil {
			return err
		}
		record.LowStockThreshold = threshold
		updated = *record
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := toRecordDTO(updated)
	return &dto, nil
}

func validateMovement(input MovementInput) error {
	switch {
	case input.ProductID == uuid.Nil:
		return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "product_id is required")
	case input.LocationID == uuid.Nil:
		return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "location_id is required")
	case input.VendorID == uuid.Nil:
		return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "vendor_id is required")
	case !input.MovementType.IsValid():
		return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("invalid movement type %q", input.MovementType))
	case !input.MovementType.AcceptsDelta(input.QuantityDelta):
		return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("quantity %d not allowed for %s movement", input.QuantityDelta, input.MovementType))
	case input.IsCorrection && input.MovementType != enums.MovementTypeAdjustment:
		return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "only adjustments may be flagged as corrections")
	case input.Condition != nil && !input.Condition.IsValid():
		return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("invalid condition %q", *input.Condition))
	}
	return nil
}

func actorRef(userID *uuid.UUID, vendorID uuid.UUID) *outbox.ActorRef {
	if userID == nil {
		return nil
	}
	vid := vendorID
	return &outbox.ActorRef{UserID: *userID, VendorID: &vid}
}
