package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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

// CounterTotalSales labels total_sales updates in metrics.
const CounterTotalSales = "total_sales"

type txRunner interface {
	WithRetryTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type counterRecorder interface {
	IncCounterUpdate(counter string, decrement bool)
}

// Service owns POS sessions. It is the only writer of session counters and
// totals; every write is a single guarded increment in the database.
type Service interface {
	Open(ctx context.Context, input OpenInput) (*SessionDTO, error)
	Close(ctx context.Context, input CloseInput) (*SessionDTO, error)
	Get(ctx context.Context, id uuid.UUID, vendorID *uuid.UUID) (*SessionDTO, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*SessionList, error)
	IncrementCounter(ctx context.Context, sessionID uuid.UUID, counter string, amount int) (*SessionDTO, error)
	IncrementCounterTx(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, counter string, amount int) error
	AddSaleTx(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, amount decimal.Decimal) error
	DecrementForRefund(ctx context.Context, sessionID uuid.UUID, amount decimal.Decimal) (*SessionDTO, error)
	DecrementForRefundTx(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, amount decimal.Decimal) error
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics counterRecorder
	logg    *logger.Logger
}

// NewService wires the session service. metrics and logg may be nil.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, metrics counterRecorder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("session repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox, metrics: metrics, logg: logg}, nil
}

func sessionNotFoundOrClosed() error {
	return pkgerrors.Reject(pkgerrors.CodeStateConflict, pkgerrors.ReasonSessionNotFoundOrClosed, "session not found or closed")
}

func (s *service) Open(ctx context.Context, input OpenInput) (*SessionDTO, error) {
	if input.LocationID == uuid.Nil || input.VendorID == uuid.Nil || input.OpenedBy == uuid.Nil {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "location_id, vendor_id and opened_by are required")
	}
	alreadyOpen := pkgerrors.Reject(pkgerrors.CodeConflict, pkgerrors.ReasonSessionAlreadyOpen, "location already has an open session")

	var session *models.POSSession
	err := s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindOpenByLocation(ctx, input.LocationID); err == nil {
			return alreadyOpen
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		now := time.Now().UTC()
		row := &models.POSSession{
			LocationID: input.LocationID,
			VendorID:   input.VendorID,
			OpenedBy:   input.OpenedBy,
			TotalSales: decimal.Zero,
			Status:     enums.POSSessionStatusOpen,
			OpenedAt:   now,
			UpdatedAt:  now,
		}
		if err := repo.Create(ctx, row); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return alreadyOpen
			}
			return err
		}
		if err := s.emitSession(ctx, tx, enums.EventPOSSessionOpened, row, input.OpenedBy); err != nil {
			return err
		}
		session = row
		return nil
	})
	if err != nil {
		return nil, mapError(err, "open pos session")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"session_id":  session.ID.String(),
			"location_id": session.LocationID.String(),
		})
		s.logg.Info(logCtx, "pos session opened")
	}
	dto := toSessionDTO(*session)
	return &dto, nil
}

func (s *service) Close(ctx context.Context, input CloseInput) (*SessionDTO, error) {
	if input.SessionID == uuid.Nil || input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "session id and actor are required")
	}
	var session *models.POSSession
	err := s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, input.SessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return sessionNotFoundOrClosed()
			}
			return err
		}
		if input.VendorID != nil && current.VendorID != *input.VendorID {
			return sessionNotFoundOrClosed()
		}
		n, err := repo.Close(ctx, input.SessionID, input.ActorUserID, time.Now().UTC())
		if err != nil {
			return err
		}
		if n == 0 {
			return sessionNotFoundOrClosed()
		}
		closed, err := repo.FindByID(ctx, input.SessionID)
		if err != nil {
			return err
		}
		if err := s.emitSession(ctx, tx, enums.EventPOSSessionClosed, closed, input.ActorUserID); err != nil {
			return err
		}
		session = closed
		return nil
	})
	if err != nil {
		return nil, mapError(err, "close pos session")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"session_id":  session.ID.String(),
			"total_sales": session.TotalSales.String(),
		})
		s.logg.Info(logCtx, "pos session closed")
	}
	dto := toSessionDTO(*session)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, vendorID *uuid.UUID) (*SessionDTO, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pos session")
	}
	if vendorID != nil && session.VendorID != *vendorID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
	}
	dto := toSessionDTO(*session)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*SessionList, error) {
	if filters.Status != nil && *filters.Status != enums.POSSessionStatusOpen && *filters.Status != enums.POSSessionStatusClosed {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("invalid status %q", *filters.Status))
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.InvalidWrap(err, "invalid cursor", nil)
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, filters, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pos sessions")
	}
	rows, next := pagination.Trim(rows, limit, func(s models.POSSession) pagination.Cursor {
		return pagination.Cursor{CreatedAt: s.OpenedAt, ID: s.ID}
	})
	list := &SessionList{Sessions: make([]SessionDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Sessions = append(list.Sessions, toSessionDTO(row))
	}
	return list, nil
}

func (s *service) IncrementCounter(ctx context.Context, sessionID uuid.UUID, counter string, amount int) (*SessionDTO, error) {
	var session *models.POSSession
	err := s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		if err := s.IncrementCounterTx(ctx, tx, sessionID, counter, amount); err != nil {
			return err
		}
		updated, err := s.repo.WithTx(tx).FindByID(ctx, sessionID)
		if err != nil {
			return err
		}
		session = updated
		return nil
	})
	if err != nil {
		return nil, mapError(err, "increment session counter")
	}
	if s.metrics != nil {
		s.metrics.IncCounterUpdate(counter, false)
	}
	dto := toSessionDTO(*session)
	return &dto, nil
}

// IncrementCounterTx adds amount to a named counter inside the caller's
// transaction. Unknown counter names never reach SQL.
func (s *service) IncrementCounterTx(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, counter string, amount int) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	column, ok := enums.SessionCounter(counter).Column()
	if !ok {
		return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonInvalidCounterName, fmt.Sprintf("unknown counter %q", counter))
	}
	if amount <= 0 {
		return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "amount must be positive")
	}
	n, err := s.repo.WithTx(tx).IncrementCounter(ctx, sessionID, column, amount)
	if err != nil {
		return err
	}
	if n == 0 {
		return sessionNotFoundOrClosed()
	}
	return nil
}

// AddSaleTx adds a sale amount to total_sales inside the caller's transaction.
func (s *service) AddSaleTx(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "sale amount must not be negative")
	}
	return s.addToTotal(ctx, tx, sessionID, amount)
}

func (s *service) DecrementForRefund(ctx context.Context, sessionID uuid.UUID, amount decimal.Decimal) (*SessionDTO, error) {
	var session *models.POSSession
	err := s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		if err := s.DecrementForRefundTx(ctx, tx, sessionID, amount); err != nil {
			return err
		}
		updated, err := s.repo.WithTx(tx).FindByID(ctx, sessionID)
		if err != nil {
			return err
		}
		session = updated
		return nil
	})
	if err != nil {
		return nil, mapError(err, "decrement session total")
	}
	if s.metrics != nil {
		s.metrics.IncCounterUpdate(CounterTotalSales, true)
	}
	dto := toSessionDTO(*session)
	return &dto, nil
}

// DecrementForRefundTx subtracts a refund from total_sales. The total may go
// below zero when the refunded sale belonged to an earlier shift.
func (s *service) DecrementForRefundTx(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "refund amount must be positive")
	}
	return s.addToTotal(ctx, tx, sessionID, amount.Neg())
}

func (s *service) addToTotal(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, delta decimal.Decimal) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	n, err := s.repo.WithTx(tx).AddToTotal(ctx, sessionID, delta)
	if err != nil {
		return err
	}
	if n == 0 {
		return sessionNotFoundOrClosed()
	}
	return nil
}

func (s *service) emitSession(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, session *models.POSSession, actorID uuid.UUID) error {
	vendorID := session.VendorID
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePOSSession,
		AggregateID:   session.ID,
		Actor:         &outbox.ActorRef{UserID: actorID, VendorID: &vendorID},
		Version:       1,
		Data: payloads.POSSessionEvent{
			SessionID:                session.ID,
			LocationID:               session.LocationID,
			VendorID:                 session.VendorID,
			Status:                   session.Status,
			WalkInSales:              session.WalkInSales,
			PickupOrdersFulfilled:    session.PickupOrdersFulfilled,
			DeliveryOrdersDispatched: session.DeliveryOrdersDispatched,
			TotalSales:               session.TotalSales,
		},
	})
}

func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sessionNotFoundOrClosed()
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
