package pos

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/internal/inventory"
	"github.com/angelmondragon/stockroom-backend/internal/sessions"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithRetryTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// MovementApplier writes ledger entries inside the caller's transaction.
type MovementApplier interface {
	ApplyMovementTx(ctx context.Context, tx *gorm.DB, input inventory.MovementInput) (*models.StockMovement, error)
}

// SessionWriter is the slice of the session service a checkout needs.
type SessionWriter interface {
	Get(ctx context.Context, id uuid.UUID, vendorID *uuid.UUID) (*sessions.SessionDTO, error)
	IncrementCounterTx(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, counter string, amount int) error
	AddSaleTx(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, amount decimal.Decimal) error
	DecrementForRefundTx(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, amount decimal.Decimal) error
}

type counterRecorder interface {
	IncCounterUpdate(counter string, decrement bool)
}

// Service records register sales and refunds. Stock, counters and totals
// move together or not at all.
type Service interface {
	RecordSale(ctx context.Context, input SaleInput) (*SaleResult, error)
	Refund(ctx context.Context, input RefundInput) (*RefundResult, error)
}

type service struct {
	sessions  SessionWriter
	inventory MovementApplier
	tx        txRunner
	outbox    outboxPublisher
	metrics   counterRecorder
	logg      *logger.Logger
}

// NewService wires the POS service. metrics and logg may be nil.
func NewService(sessionsSvc SessionWriter, inv MovementApplier, tx txRunner, outbox outboxPublisher, metrics counterRecorder, logg *logger.Logger) (Service, error) {
	if sessionsSvc == nil {
		return nil, fmt.Errorf("session service required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		sessions:  sessionsSvc,
		inventory: inv,
		tx:        tx,
		outbox:    outbox,
		metrics:   metrics,
		logg:      logg,
	}, nil
}

func (s *service) RecordSale(ctx context.Context, input SaleInput) (*SaleResult, error) {
	if input.Counter == "" {
		input.Counter = string(enums.SessionCounterWalkInSales)
	}
	if !enums.SessionCounter(input.Counter).IsValid() {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonInvalidCounterName, fmt.Sprintf("unknown counter %q", input.Counter))
	}
	if input.Amount.IsNegative() {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "amount must not be negative")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "at least one item is required")
	}
	if err := validateLines(input.Items); err != nil {
		return nil, err
	}
	session, err := s.openSession(ctx, input.SessionID, input.VendorID)
	if err != nil {
		return nil, err
	}

	result := &SaleResult{
		SaleID:    uuid.New(),
		SessionID: session.ID,
		Counter:   input.Counter,
		Amount:    input.Amount,
	}
	ref := &inventory.Reference{Type: inventory.ReferencePOSSale, ID: result.SaleID}
	if input.OrderID != nil {
		ref.ID = *input.OrderID
	}
	err = s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		lines, err := s.applyLines(ctx, tx, session, input.Items, enums.MovementTypeSale, ref, input.ActorUserID)
		if err != nil {
			return err
		}
		if err := s.sessions.IncrementCounterTx(ctx, tx, session.ID, input.Counter, 1); err != nil {
			return err
		}
		if err := s.sessions.AddSaleTx(ctx, tx, session.ID, input.Amount); err != nil {
			return err
		}
		result.Lines = lines
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncCounterUpdate(input.Counter, false)
		s.metrics.IncCounterUpdate(sessions.CounterTotalSales, false)
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"session_id": session.ID.String(),
			"sale_id":    result.SaleID.String(),
			"amount":     input.Amount.String(),
		})
		s.logg.Info(logCtx, "pos sale recorded")
	}
	return result, nil
}

// Refund puts the returned items back on hand and subtracts the amount from
// the session total in one transaction.
func (s *service) Refund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "amount must be positive")
	}
	if err := validateLines(input.Items); err != nil {
		return nil, err
	}
	session, err := s.openSession(ctx, input.SessionID, input.VendorID)
	if err != nil {
		return nil, err
	}

	result := &RefundResult{
		RefundID:  uuid.New(),
		SessionID: session.ID,
		Amount:    input.Amount,
		Lines:     []LineResult{},
	}
	ref := &inventory.Reference{Type: inventory.ReferencePOSRefund, ID: result.RefundID}
	if input.OrderID != nil {
		ref.ID = *input.OrderID
	}
	err = s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		lines, err := s.applyLines(ctx, tx, session, input.Items, enums.MovementTypeRefund, ref, input.ActorUserID)
		if err != nil {
			return err
		}
		if err := s.sessions.DecrementForRefundTx(ctx, tx, session.ID, input.Amount); err != nil {
			return err
		}
		movementIDs := make([]uuid.UUID, 0, len(lines))
		for _, l := range lines {
			movementIDs = append(movementIDs, l.MovementID)
		}
		var actor *outbox.ActorRef
		if input.ActorUserID != nil {
			vendorID := session.VendorID
			actor = &outbox.ActorRef{UserID: *input.ActorUserID, VendorID: &vendorID}
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPOSRefundRecorded,
			AggregateType: enums.AggregatePOSSession,
			AggregateID:   session.ID,
			Actor:         actor,
			Version:       1,
			Data: payloads.POSRefundRecordedEvent{
				SessionID:   session.ID,
				VendorID:    session.VendorID,
				OrderID:     input.OrderID,
				Amount:      input.Amount,
				MovementIDs: movementIDs,
			},
		}); err != nil {
			return err
		}
		result.Lines = lines
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncCounterUpdate(sessions.CounterTotalSales, true)
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"session_id": session.ID.String(),
			"refund_id":  result.RefundID.String(),
			"amount":     input.Amount.String(),
		})
		s.logg.Info(logCtx, "pos refund recorded")
	}
	return result, nil
}

func (s *service) openSession(ctx context.Context, sessionID, vendorID uuid.UUID) (*sessions.SessionDTO, error) {
	if sessionID == uuid.Nil || vendorID == uuid.Nil {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "session_id and vendor_id are required")
	}
	session, err := s.sessions.Get(ctx, sessionID, &vendorID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil, pkgerrors.Reject(pkgerrors.CodeStateConflict, pkgerrors.ReasonSessionNotFoundOrClosed, "session not found or closed")
		}
		return nil, err
	}
	if session.Status != enums.POSSessionStatusOpen {
		return nil, pkgerrors.Reject(pkgerrors.CodeStateConflict, pkgerrors.ReasonSessionNotFoundOrClosed, "session not found or closed")
	}
	return session, nil
}

// applyLines writes one movement per line in product order so concurrent
// checkouts lock inventory rows in the same sequence.
func (s *service) applyLines(ctx context.Context, tx *gorm.DB, session *sessions.SessionDTO, items []LineInput, mt enums.MovementType, ref *inventory.Reference, actor *uuid.UUID) ([]LineResult, error) {
	ordered := append([]LineInput(nil), items...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ProductID.String() < ordered[j].ProductID.String()
	})
	sign := 1
	if mt.IsDecrease() {
		sign = -1
	}
	lines := make([]LineResult, 0, len(ordered))
	for _, item := range ordered {
		movement, err := s.inventory.ApplyMovementTx(ctx, tx, inventory.MovementInput{
			ProductID:     item.ProductID,
			LocationID:    session.LocationID,
			VendorID:      session.VendorID,
			MovementType:  mt,
			QuantityDelta: sign * item.Quantity,
			Reference:     ref,
			Condition:     item.Condition,
			ActorUserID:   actor,
		})
		if err != nil {
			return nil, err
		}
		lines = append(lines, LineResult{
			ProductID:     item.ProductID,
			MovementID:    movement.ID,
			Quantity:      movement.Quantity,
			QuantityAfter: movement.QuantityAfter,
		})
	}
	return lines, nil
}

func validateLines(items []LineInput) error {
	seen := make(map[uuid.UUID]struct{}, len(items))
	for i, item := range items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("items[%d].product_id is required", i))
		}
		if item.Quantity <= 0 {
			return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("items[%d].quantity must be positive", i))
		}
		if item.Condition != nil && !item.Condition.IsValid() {
			return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("items[%d].condition is invalid", i))
		}
		if _, dup := seen[item.ProductID]; dup {
			return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("items[%d].product_id is duplicated", i))
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}
