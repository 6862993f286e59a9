package registry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/pkg/config"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox/payloads"
)

// EventDescriptor says where an event type is published and how its payload
// decodes.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row that passed validation, with its payload
// decoded into the registered type.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that can never publish as stored. The
// publisher dead-letters it on first sight.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// IsNonRetryable reports whether err, or anything it wraps, is a NonRetryableError.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}

func payloadOf[T any]() func() any {
	return func() any { return new(T) }
}

// EventRegistry maps each event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes stock and pricing events to the inventory topic,
// register activity to the POS topic and reconciliation findings to the
// integrity topic. It fails if any known event type is left unrouted.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	switch {
	case cfg.InventoryTopic == "":
		return nil, fmt.Errorf("inventory topic is required")
	case cfg.PosTopic == "":
		return nil, fmt.Errorf("pos topic is required")
	case cfg.IntegrityTopic == "":
		return nil, fmt.Errorf("integrity topic is required")
	}

	descriptors := []EventDescriptor{
		{enums.EventPurchaseOrderReceived, enums.AggregatePurchaseOrder, cfg.InventoryTopic, payloadOf[payloads.PurchaseOrderReceivedEvent]()},
		{enums.EventPurchaseOrderStatusChanged, enums.AggregatePurchaseOrder, cfg.InventoryTopic, payloadOf[payloads.PurchaseOrderStatusChangedEvent]()},
		{enums.EventStockMovementRecorded, enums.AggregateInventory, cfg.InventoryTopic, payloadOf[payloads.StockMovementRecordedEvent]()},
		{enums.EventLowStockReached, enums.AggregateInventory, cfg.InventoryTopic, payloadOf[payloads.LowStockReachedEvent]()},
		{enums.EventPricingTiersChanged, enums.AggregatePricingAssignment, cfg.InventoryTopic, payloadOf[payloads.PricingTiersChangedEvent]()},
		{enums.EventPOSSessionOpened, enums.AggregatePOSSession, cfg.PosTopic, payloadOf[payloads.POSSessionEvent]()},
		{enums.EventPOSSessionClosed, enums.AggregatePOSSession, cfg.PosTopic, payloadOf[payloads.POSSessionEvent]()},
		{enums.EventPOSRefundRecorded, enums.AggregatePOSSession, cfg.PosTopic, payloadOf[payloads.POSRefundRecordedEvent]()},
		{enums.EventInventoryMismatchFlagged, enums.AggregateReconciliationFlag, cfg.IntegrityTopic, payloadOf[payloads.InventoryMismatchFlaggedEvent]()},
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, desc := range descriptors {
		reg.entries[desc.EventType] = desc
	}
	for _, eventType := range enums.OutboxEventTypes() {
		if _, ok := reg.entries[eventType]; !ok {
			return nil, fmt.Errorf("event type %s has no topic", eventType)
		}
	}
	return reg, nil
}

// Topics lists the distinct topics in sorted order.
func (r *EventRegistry) Topics() []string {
	topics := make([]string, 0, 3)
	for _, desc := range r.entries {
		if !slices.Contains(topics, desc.Topic) {
			topics = append(topics, desc.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve validates the row against its descriptor and decodes the payload.
// Every failure is non-retryable: the stored row will not change.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload := desc.PayloadFactory()
	if err := envelope.DecodeData(payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
