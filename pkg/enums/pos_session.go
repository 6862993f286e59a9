package enums

import "fmt"

// POSSessionStatus tracks whether a register shift is accepting sales.
type POSSessionStatus string

const (
	POSSessionStatusOpen   POSSessionStatus = "open"
	POSSessionStatusClosed POSSessionStatus = "closed"
)

// SessionCounter names one of the atomic counters on a POS session.
type SessionCounter string

const (
	SessionCounterWalkInSales              SessionCounter = "walk_in_sales"
	SessionCounterPickupOrdersFulfilled    SessionCounter = "pickup_orders_fulfilled"
	SessionCounterDeliveryOrdersDispatched SessionCounter = "delivery_orders_dispatched"
)

var validSessionCounters = []SessionCounter{
	SessionCounterWalkInSales,
	SessionCounterPickupOrdersFulfilled,
	SessionCounterDeliveryOrdersDispatched,
}

// IsValid reports whether the counter is one of the known columns.
func (c SessionCounter) IsValid() bool {
	for _, candidate := range validSessionCounters {
		if candidate == c {
			return true
		}
	}
	return false
}

// Column returns the pos_sessions column backing the counter. Only valid
// counters map to a column, so the result is safe to interpolate into SQL.
func (c SessionCounter) Column() (string, bool) {
	if !c.IsValid() {
		return "", false
	}
	return string(c), true
}

// ParseSessionCounter converts raw input into SessionCounter.
func ParseSessionCounter(value string) (SessionCounter, error) {
	for _, candidate := range validSessionCounters {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid session counter %q", value)
}
