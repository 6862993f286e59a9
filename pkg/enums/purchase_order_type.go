package enums

import "fmt"

// PurchaseOrderType distinguishes stock coming in from stock going out.
type PurchaseOrderType string

const (
	PurchaseOrderTypeInbound  PurchaseOrderType = "inbound"
	PurchaseOrderTypeOutbound PurchaseOrderType = "outbound"
)

var validPurchaseOrderTypes = []PurchaseOrderType{
	PurchaseOrderTypeInbound,
	PurchaseOrderTypeOutbound,
}

// IsValid reports whether the value is a known PurchaseOrderType.
func (t PurchaseOrderType) IsValid() bool {
	for _, candidate := range validPurchaseOrderTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParsePurchaseOrderType converts raw input into a PurchaseOrderType.
func ParsePurchaseOrderType(value string) (PurchaseOrderType, error) {
	for _, candidate := range validPurchaseOrderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase order type %q", value)
}
