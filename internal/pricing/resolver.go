package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
)

// Price sources, lowest to highest precedence.
const (
	SourceBlueprint = "blueprint"
	SourceVendor    = "vendor"
	SourceOverride  = "override"
)

// PriceTier is one sellable quantity break with its resolved price.
type PriceTier struct {
	BreakID   string          `json:"break_id"`
	Label     string          `json:"label"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit"`
	Price     decimal.Decimal `json:"price"`
	SortOrder int             `json:"sort_order"`
	Source    string          `json:"source"`
}

// ResolveTiers merges a blueprint, the vendor's config for it and the
// product's assignment into the sellable tiers. For each break the product
// override wins, then an enabled vendor price, then the blueprint default
// unless the vendor disabled the break. Breaks with no price are omitted.
// The result is ordered by sort order, then break id. Nil blueprint or
// assignment, or an inactive one, yields no tiers.
func ResolveTiers(blueprint *models.PricingTierBlueprint, vendorCfg *models.VendorPricingConfig, assignment *models.ProductPricingAssignment) []PriceTier {
	tiers := []PriceTier{}
	if blueprint == nil || assignment == nil || !blueprint.IsActive || !assignment.IsActive {
		return tiers
	}
	if assignment.BlueprintID != blueprint.ID {
		return tiers
	}
	var vendorValues map[string]models.VendorPriceValue
	if vendorCfg != nil && vendorCfg.BlueprintID == blueprint.ID && vendorCfg.VendorID == assignment.VendorID {
		vendorValues = vendorCfg.PricingValues
	}

	for _, br := range blueprint.PriceBreaks {
		price, source, ok := resolveBreak(br, vendorValues, assignment.PriceOverrides)
		if !ok {
			continue
		}
		tiers = append(tiers, PriceTier{
			BreakID:   br.BreakID,
			Label:     br.Label,
			Quantity:  br.Quantity,
			Unit:      br.Unit,
			Price:     price,
			SortOrder: br.SortOrder,
			Source:    source,
		})
	}

	sort.SliceStable(tiers, func(i, j int) bool {
		if tiers[i].SortOrder != tiers[j].SortOrder {
			return tiers[i].SortOrder < tiers[j].SortOrder
		}
		return tiers[i].BreakID < tiers[j].BreakID
	})
	return tiers
}

func resolveBreak(br models.PriceBreak, vendorValues map[string]models.VendorPriceValue, overrides map[string]decimal.Decimal) (decimal.Decimal, string, bool) {
	if o, ok := overrides[br.BreakID]; ok {
		return o, SourceOverride, true
	}
	v, configured := vendorValues[br.BreakID]
	if configured && v.Enabled && v.Price != nil {
		return *v.Price, SourceVendor, true
	}
	if configured && !v.Enabled {
		return decimal.Decimal{}, "", false
	}
	if br.DefaultPrice != nil {
		return *br.DefaultPrice, SourceBlueprint, true
	}
	return decimal.Decimal{}, "", false
}
