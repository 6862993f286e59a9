package enums

import (
	"fmt"
	"slices"
)

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregatePurchaseOrder      OutboxAggregateType = "purchase_order"
	AggregateInventory          OutboxAggregateType = "inventory"
	AggregatePOSSession         OutboxAggregateType = "pos_session"
	AggregatePricingAssignment  OutboxAggregateType = "pricing_assignment"
	AggregateReconciliationFlag OutboxAggregateType = "reconciliation_flag"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePurchaseOrder,
	AggregateInventory,
	AggregatePOSSession,
	AggregatePricingAssignment,
	AggregateReconciliationFlag,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventPurchaseOrderReceived      OutboxEventType = "purchase_order_received"
	EventPurchaseOrderStatusChanged OutboxEventType = "purchase_order_status_changed"
	EventStockMovementRecorded      OutboxEventType = "stock_movement_recorded"
	EventLowStockReached            OutboxEventType = "low_stock_reached"
	EventPOSSessionOpened           OutboxEventType = "pos_session_opened"
	EventPOSSessionClosed           OutboxEventType = "pos_session_closed"
	EventPOSRefundRecorded          OutboxEventType = "pos_refund_recorded"
	EventPricingTiersChanged        OutboxEventType = "pricing_tiers_changed"
	EventInventoryMismatchFlagged   OutboxEventType = "inventory_mismatch_flagged"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPurchaseOrderReceived,
	EventPurchaseOrderStatusChanged,
	EventStockMovementRecorded,
	EventLowStockReached,
	EventPOSSessionOpened,
	EventPOSSessionClosed,
	EventPOSRefundRecorded,
	EventPricingTiersChanged,
	EventInventoryMismatchFlagged,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// OutboxEventTypes returns every event type the outbox may carry.
func OutboxEventTypes() []OutboxEventType {
	return slices.Clone(validOutboxEventTypes)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDeadLetterReason maps to outbox_dlq_error_reason_enum.
type OutboxDeadLetterReason string

const (
	DeadLetterMaxAttempts  OutboxDeadLetterReason = "max_attempts"
	DeadLetterNonRetryable OutboxDeadLetterReason = "non_retryable"
)

func (r OutboxDeadLetterReason) IsValid() bool {
	return r == DeadLetterMaxAttempts || r == DeadLetterNonRetryable
}
