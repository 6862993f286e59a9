package enums

import "fmt"

// ItemCondition records the state of goods at receipt.
type ItemCondition string

const (
	ItemConditionGood    ItemCondition = "good"
	ItemConditionDamaged ItemCondition = "damaged"
	ItemConditionExpired ItemCondition = "expired"
)

var validItemConditions = []ItemCondition{
	ItemConditionGood,
	ItemConditionDamaged,
	ItemConditionExpired,
}

// IsValid reports whether the value is a known ItemCondition.
func (c ItemCondition) IsValid() bool {
	for _, candidate := range validItemConditions {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseItemCondition converts raw input into ItemCondition. Empty input means good.
func ParseItemCondition(value string) (ItemCondition, error) {
	if value == "" {
		return ItemConditionGood, nil
	}
	for _, candidate := range validItemConditions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item condition %q", value)
}
