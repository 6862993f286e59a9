package enums

import "fmt"

// PurchaseOrderStatus tracks the lifecycle of a purchase order.
type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft     PurchaseOrderStatus = "draft"
	PurchaseOrderStatusOrdered   PurchaseOrderStatus = "ordered"
	PurchaseOrderStatusConfirmed PurchaseOrderStatus = "confirmed"
	PurchaseOrderStatusShipped   PurchaseOrderStatus = "shipped"
	PurchaseOrderStatusReceiving PurchaseOrderStatus = "receiving"
	PurchaseOrderStatusReceived  PurchaseOrderStatus = "received"
	PurchaseOrderStatusCancelled PurchaseOrderStatus = "cancelled"
)

// validPurchaseOrderStatuses is ordered by lifecycle position.
var validPurchaseOrderStatuses = []PurchaseOrderStatus{
	PurchaseOrderStatusDraft,
	PurchaseOrderStatusOrdered,
	PurchaseOrderStatusConfirmed,
	PurchaseOrderStatusShipped,
	PurchaseOrderStatusReceiving,
	PurchaseOrderStatusReceived,
	PurchaseOrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s PurchaseOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PurchaseOrderStatus.
func (s PurchaseOrderStatus) IsValid() bool {
	return s.rank() >= 0
}

// IsTerminal reports whether no further transition is possible.
func (s PurchaseOrderStatus) IsTerminal() bool {
	return s == PurchaseOrderStatusReceived || s == PurchaseOrderStatusCancelled
}

// AcceptsReceipts reports whether stock may be received against the order.
// A fully received order still accepts the call so over-receipt is reported
// per line item.
func (s PurchaseOrderStatus) AcceptsReceipts() bool {
	switch s {
	case PurchaseOrderStatusOrdered,
		PurchaseOrderStatusConfirmed,
		PurchaseOrderStatusShipped,
		PurchaseOrderStatusReceiving,
		PurchaseOrderStatusReceived:
		return true
	}
	return false
}

// CanTransitionTo allows forward moves only, plus cancellation from any
// non-terminal state.
func (s PurchaseOrderStatus) CanTransitionTo(next PurchaseOrderStatus) bool {
	if !s.IsValid() || !next.IsValid() || s.IsTerminal() {
		return false
	}
	if next == PurchaseOrderStatusCancelled {
		return true
	}
	return next.rank() > s.rank()
}

func (s PurchaseOrderStatus) rank() int {
	for i, candidate := range validPurchaseOrderStatuses {
		if candidate == s {
			return i
		}
	}
	return -1
}

// ParsePurchaseOrderStatus converts raw input into a PurchaseOrderStatus.
func ParsePurchaseOrderStatus(value string) (PurchaseOrderStatus, error) {
	for _, candidate := range validPurchaseOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase order status %q", value)
}
