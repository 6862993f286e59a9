package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// OutboxEvent is a domain event written in the same transaction as the state
// change it describes. The publisher marks it published; nothing else mutates it.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// OutboxDeadLetter keeps a copy of an event the publisher gave up on so an
// operator can inspect and requeue it.
type OutboxDeadLetter struct {
	ID            uuid.UUID                    `gorm:"column:id;type:uuid;primaryKey"`
	EventID       uuid.UUID                    `gorm:"column:event_id;type:uuid;not null"`
	EventType     enums.OutboxEventType        `gorm:"column:event_type;type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType    `gorm:"column:aggregate_type;type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                    `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage              `gorm:"column:payload_json;type:jsonb;not null"`
	ErrorReason   enums.OutboxDeadLetterReason `gorm:"column:error_reason;type:outbox_dlq_error_reason_enum;not null"`
	ErrorMessage  *string                      `gorm:"column:error_message"`
	AttemptCount  int                          `gorm:"column:attempt_count;not null;default:0"`
	FailedAt      time.Time                    `gorm:"column:failed_at;autoCreateTime"`
	CreatedAt     time.Time                    `gorm:"column:created_at;autoCreateTime"`
}

func (OutboxDeadLetter) TableName() string { return "outbox_dlq" }

// NewOutboxDeadLetter copies event into a dead-letter row.
func NewOutboxDeadLetter(event OutboxEvent, reason enums.OutboxDeadLetterReason, cause error, at time.Time) OutboxDeadLetter {
	entry := OutboxDeadLetter{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		AttemptCount:  event.AttemptCount,
		FailedAt:      at,
	}
	if cause != nil {
		msg := cause.Error()
		entry.ErrorMessage = &msg
	}
	return entry
}

// Restore rebuilds the unpublished outbox row the entry was copied from.
func (d OutboxDeadLetter) Restore() OutboxEvent {
	return OutboxEvent{
		ID:            d.EventID,
		EventType:     d.EventType,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		Payload:       d.Payload,
	}
}
