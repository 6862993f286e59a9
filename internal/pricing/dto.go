package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
)

// BlueprintInput creates or replaces a blueprint.
type BlueprintInput struct {
	Name                   string              `json:"name" validate:"required,max=200"`
	PriceBreaks            []models.PriceBreak `json:"price_breaks" validate:"required,min=1"`
	ApplicableToCategories []string            `json:"applicable_to_categories,omitempty"`
	IsDefault              bool                `json:"is_default"`
	IsActive               *bool               `json:"is_active,omitempty"`
}

// VendorConfigInput sets one vendor's prices for a blueprint.
type VendorConfigInput struct {
	VendorID      uuid.UUID                          `json:"vendor_id" validate:"required"`
	BlueprintID   uuid.UUID                          `json:"blueprint_id" validate:"required"`
	PricingValues map[string]models.VendorPriceValue `json:"pricing_values"`
}

// AssignInput attaches a product to a blueprint, replacing any active assignment.
type AssignInput struct {
	ProductID       uuid.UUID                  `json:"product_id" validate:"required"`
	VendorID        uuid.UUID                  `json:"vendor_id" validate:"required"`
	BlueprintID     uuid.UUID                  `json:"blueprint_id" validate:"required"`
	ProductCategory string                     `json:"product_category,omitempty"`
	PriceOverrides  map[string]decimal.Decimal `json:"price_overrides,omitempty"`
}

// BlueprintDTO is the API view of a blueprint.
type BlueprintDTO struct {
	ID                     uuid.UUID           `json:"id"`
	Name                   string              `json:"name"`
	PriceBreaks            []models.PriceBreak `json:"price_breaks"`
	ApplicableToCategories []string            `json:"applicable_to_categories"`
	IsDefault              bool                `json:"is_default"`
	IsActive               bool                `json:"is_active"`
}

func blueprintDTO(bp *models.PricingTierBlueprint) BlueprintDTO {
	cats := bp.ApplicableToCategories
	if cats == nil {
		cats = []string{}
	}
	return BlueprintDTO{
		ID:                     bp.ID,
		Name:                   bp.Name,
		PriceBreaks:            bp.PriceBreaks,
		ApplicableToCategories: cats,
		IsDefault:              bp.IsDefault,
		IsActive:               bp.IsActive,
	}
}
