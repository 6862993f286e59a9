package pricing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
)

func invalidTierData(format string, args ...any) *pkgerrors.Error {
	return pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonInvalidTierData, fmt.Sprintf(format, args...))
}

// ValidateBreaks rejects empty or duplicate break ids, non-positive
// quantities and negative default prices.
func ValidateBreaks(breaks []models.PriceBreak) error {
	if len(breaks) == 0 {
		return invalidTierData("blueprint needs at least one price break")
	}
	seen := make(map[string]struct{}, len(breaks))
	for i, br := range breaks {
		id := strings.TrimSpace(br.BreakID)
		if id == "" {
			return invalidTierData("price_breaks[%d].break_id is required", i)
		}
		if id != br.BreakID {
			return invalidTierData("price_breaks[%d].break_id must not carry surrounding spaces", i)
		}
		if _, dup := seen[id]; dup {
			return invalidTierData("price_breaks[%d].break_id %q is duplicated", i, id)
		}
		seen[id] = struct{}{}
		if !br.Quantity.IsPositive() {
			return invalidTierData("price break %q quantity must be greater than zero", id)
		}
		if strings.TrimSpace(br.Label) == "" {
			return invalidTierData("price break %q label is required", id)
		}
		if br.DefaultPrice != nil && br.DefaultPrice.IsNegative() {
			return invalidTierData("price break %q default price must not be negative", id)
		}
	}
	return nil
}

// ValidateVendorValues checks a vendor config against the blueprint's breaks.
func ValidateVendorValues(blueprint *models.PricingTierBlueprint, values map[string]models.VendorPriceValue) error {
	known := breakIDs(blueprint)
	for _, id := range sortedKeys(values) {
		v := values[id]
		if _, ok := known[id]; !ok {
			return invalidTierData("vendor price for unknown break %q", id)
		}
		if v.Enabled && v.Price == nil {
			return invalidTierData("enabled break %q needs a price", id)
		}
		if v.Price != nil && v.Price.IsNegative() {
			return invalidTierData("price for break %q must not be negative", id)
		}
	}
	return nil
}

// ValidateOverrides checks product overrides against the blueprint's breaks.
func ValidateOverrides(blueprint *models.PricingTierBlueprint, overrides map[string]decimal.Decimal) error {
	known := breakIDs(blueprint)
	for _, id := range sortedKeys(overrides) {
		if _, ok := known[id]; !ok {
			return invalidTierData("override for unknown break %q", id)
		}
		if overrides[id].IsNegative() {
			return invalidTierData("override for break %q must not be negative", id)
		}
	}
	return nil
}

func breakIDs(blueprint *models.PricingTierBlueprint) map[string]struct{} {
	ids := map[string]struct{}{}
	if blueprint == nil {
		return ids
	}
	for _, br := range blueprint.PriceBreaks {
		ids[br.BreakID] = struct{}{}
	}
	return ids
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
