package enums

import "fmt"

// MovementType maps to the movement_type_enum enum in Postgres.
type MovementType string

const (
	MovementTypePurchase    MovementType = "purchase"
	MovementTypeSale        MovementType = "sale"
	MovementTypeRefund      MovementType = "refund"
	MovementTypeAdjustment  MovementType = "adjustment"
	MovementTypeTransferIn  MovementType = "transfer_in"
	MovementTypeTransferOut MovementType = "transfer_out"
)

var validMovementTypes = []MovementType{
	MovementTypePurchase,
	MovementTypeSale,
	MovementTypeRefund,
	MovementTypeAdjustment,
	MovementTypeTransferIn,
	MovementTypeTransferOut,
}

// String implements fmt.Stringer.
func (m MovementType) String() string {
	return string(m)
}

// IsValid reports whether the value matches the canonical movement type enum.
func (m MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// IsIncrease reports whether the movement must carry a positive delta.
func (m MovementType) IsIncrease() bool {
	return m == MovementTypePurchase || m == MovementTypeRefund || m == MovementTypeTransferIn
}

// IsDecrease reports whether the movement must carry a negative delta.
func (m MovementType) IsDecrease() bool {
	return m == MovementTypeSale || m == MovementTypeTransferOut
}

// AcceptsDelta checks the sign of delta against the movement type.
// Adjustments may go either way but never be zero.
func (m MovementType) AcceptsDelta(delta int) bool {
	switch {
	case delta == 0:
		return false
	case m.IsIncrease():
		return delta > 0
	case m.IsDecrease():
		return delta < 0
	default:
		return m == MovementTypeAdjustment
	}
}

// ParseMovementType converts raw input into MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}
