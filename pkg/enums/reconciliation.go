package enums

// ReconciliationFlagStatus tracks manual review of a ledger/projection mismatch.
type ReconciliationFlagStatus string

const (
	ReconciliationFlagOpen     ReconciliationFlagStatus = "open"
	ReconciliationFlagResolved ReconciliationFlagStatus = "resolved"
)

// IsValid reports whether the value is a known ReconciliationFlagStatus.
func (s ReconciliationFlagStatus) IsValid() bool {
	return s == ReconciliationFlagOpen || s == ReconciliationFlagResolved
}
