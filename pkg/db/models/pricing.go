package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceBreak is one quantity threshold within a blueprint.
type PriceBreak struct {
	BreakID      string           `json:"break_id"`
	Label        string           `json:"label"`
	Quantity     decimal.Decimal  `json:"quantity"`
	Unit         string           `json:"unit"`
	SortOrder    int              `json:"sort_order"`
	DefaultPrice *decimal.Decimal `json:"default_price,omitempty"`
}

// PricingTierBlueprint is an admin-defined template of price breaks.
type PricingTierBlueprint struct {
	ID                     uuid.UUID    `gorm:"column:id;type:uuid;primaryKey"`
	Name                   string       `gorm:"column:name;not null"`
	PriceBreaks            []PriceBreak `gorm:"column:price_breaks;type:jsonb;serializer:json;not null"`
	ApplicableToCategories []string     `gorm:"column:applicable_to_categories;type:jsonb;serializer:json"`
	IsDefault              bool         `gorm:"column:is_default;not null;default:false"`
	IsActive               bool         `gorm:"column:is_active;not null"`
	CreatedAt              time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

// AppliesTo reports whether the blueprint may attach to a product category.
// An empty applicability list means any category.
func (b PricingTierBlueprint) AppliesTo(category string) bool {
	if len(b.ApplicableToCategories) == 0 {
		return true
	}
	for _, c := range b.ApplicableToCategories {
		if c == category {
			return true
		}
	}
	return false
}

// VendorPriceValue is a vendor's setting for one break.
type VendorPriceValue struct {
	Enabled bool             `json:"enabled"`
	Price   *decimal.Decimal `json:"price,omitempty"`
}

// VendorPricingConfig holds one vendor's prices for one blueprint.
type VendorPricingConfig struct {
	ID            uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	VendorID      uuid.UUID                   `gorm:"column:vendor_id;type:uuid;not null" json:"vendor_id"`
	BlueprintID   uuid.UUID                   `gorm:"column:blueprint_id;type:uuid;not null" json:"blueprint_id"`
	PricingValues map[string]VendorPriceValue `gorm:"column:pricing_values;type:jsonb;serializer:json;not null" json:"pricing_values"`
	CreatedAt     time.Time                   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time                   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// ProductPricingAssignment attaches a product to a blueprint with optional overrides.
type ProductPricingAssignment struct {
	ID              uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProductID       uuid.UUID                  `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	VendorID        uuid.UUID                  `gorm:"column:vendor_id;type:uuid;not null" json:"vendor_id"`
	BlueprintID     uuid.UUID                  `gorm:"column:blueprint_id;type:uuid;not null" json:"blueprint_id"`
	ProductCategory string                     `gorm:"column:product_category" json:"product_category"`
	PriceOverrides  map[string]decimal.Decimal `gorm:"column:price_overrides;type:jsonb;serializer:json" json:"price_overrides"`
	IsActive        bool                       `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt       time.Time                  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
