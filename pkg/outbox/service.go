package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

// DomainEvent is what services hand to Emit inside their write transaction.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	// Version is the payload schema version; zero means 1.
	Version    int
	OccurredAt time.Time
}

// DeadLetter is the operator view of an outbox_dlq row.
type DeadLetter struct {
	EventID       uuid.UUID                    `json:"event_id"`
	EventType     enums.OutboxEventType        `json:"event_type"`
	AggregateType enums.OutboxAggregateType    `json:"aggregate_type"`
	AggregateID   uuid.UUID                    `json:"aggregate_id"`
	ErrorReason   enums.OutboxDeadLetterReason `json:"error_reason"`
	ErrorMessage  *string                      `json:"error_message,omitempty"`
	AttemptCount  int                          `json:"attempt_count"`
	FailedAt      time.Time                    `json:"failed_at"`
}

type Service struct {
	repo *Repository
	dlq  *DLQRepository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// WithDeadLetters enables the dead-letter operations.
func (s *Service) WithDeadLetters(dlq *DLQRepository) *Service {
	s.dlq = dlq
	return s
}

// Emit appends event to the outbox in tx. The row commits or rolls back
// with the caller's business writes.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if !event.EventType.IsValid() || !event.AggregateType.IsValid() {
		return fmt.Errorf("unknown outbox event %q/%q", event.EventType, event.AggregateType)
	}
	if event.AggregateID == uuid.Nil {
		return fmt.Errorf("outbox event %s missing aggregate id", event.EventType)
	}
	if event.Version <= 0 {
		event.Version = 1
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("encode %s data: %w", event.EventType, err)
	}
	id := uuid.New()
	payload, err := json.Marshal(PayloadEnvelope{
		Version:    event.Version,
		EventID:    id.String(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", event.EventType, err)
	}

	if err := s.repo.Insert(tx, models.OutboxEvent{
		ID:            id,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}); err != nil {
		return err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id":       id.String(),
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID.String(),
		})
		s.logg.Debug(logCtx, "outbox.event_queued")
	}
	return nil
}

// DeadLetters lists the newest dead-lettered events first.
func (s *Service) DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	if s.dlq == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "dead letter store not configured")
	}
	rows, err := s.dlq.List(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters")
	}
	out := make([]DeadLetter, 0, len(rows))
	for _, row := range rows {
		out = append(out, DeadLetter{
			EventID:       row.EventID,
			EventType:     row.EventType,
			AggregateType: row.AggregateType,
			AggregateID:   row.AggregateID,
			ErrorReason:   row.ErrorReason,
			ErrorMessage:  row.ErrorMessage,
			AttemptCount:  row.AttemptCount,
			FailedAt:      row.FailedAt,
		})
	}
	return out, nil
}

// Requeue hands a dead-lettered event back to the publisher. The outbox row
// gets a fresh attempt budget, or is recreated from the dead-letter copy when
// retention already removed it.
func (s *Service) Requeue(ctx context.Context, eventID uuid.UUID) error {
	if s.dlq == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "dead letter store not configured")
	}
	err := s.repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := s.dlq.FindByEventIDTx(tx, eventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dead letter")
		}
		if entry == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found")
		}

		reset, err := s.repo.ResetForRetryTx(tx, eventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset outbox event")
		}
		if reset == 0 {
			exists, err := s.repo.ExistsTx(tx, eventID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check outbox event")
			}
			if exists {
				return pkgerrors.New(pkgerrors.CodeConflict, "event was already published")
			}
			if err := s.repo.Insert(tx, entry.Restore()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recreate outbox event")
			}
		}
		return s.dlq.DeleteByEventIDTx(tx, eventID)
	})
	if err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "event_id", eventID.String()), "outbox.dead_letter_requeued")
	}
	return nil
}
