package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// InventoryRecord is the on-hand projection for one (product, location).
// Quantity always equals the sum of its stock movement deltas.
type InventoryRecord struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	LocationID        uuid.UUID `gorm:"column:location_id;type:uuid;not null"`
	VendorID          uuid.UUID `gorm:"column:vendor_id;type:uuid;not null"`
	Quantity          int       `gorm:"column:quantity;not null;default:0"`
	LowStockThreshold int       `gorm:"column:low_stock_threshold;not null;default:0"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (InventoryRecord) TableName() string { return "inventory" }

// IsLowStock reports whether the record sits at or below its threshold.
func (r InventoryRecord) IsLowStock() bool {
	return r.LowStockThreshold > 0 && r.Quantity <= r.LowStockThreshold
}

// StockMovement is an immutable ledger entry.
type StockMovement struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InventoryID    uuid.UUID            `gorm:"column:inventory_id;type:uuid;not null" json:"inventory_id"`
	ProductID      uuid.UUID            `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	LocationID     uuid.UUID            `gorm:"column:location_id;type:uuid;not null" json:"location_id"`
	VendorID       uuid.UUID            `gorm:"column:vendor_id;type:uuid;not null" json:"vendor_id"`
	MovementType   enums.MovementType   `gorm:"column:movement_type;type:movement_type_enum;not null" json:"movement_type"`
	Quantity       int                  `gorm:"column:quantity;not null" json:"quantity"`
	QuantityBefore int                  `gorm:"column:quantity_before;not null" json:"quantity_before"`
	QuantityAfter  int                  `gorm:"column:quantity_after;not null" json:"quantity_after"`
	ReferenceType  *string              `gorm:"column:reference_type" json:"reference_type"`
	ReferenceID    *uuid.UUID           `gorm:"column:reference_id;type:uuid" json:"reference_id"`
	Condition      *enums.ItemCondition `gorm:"column:condition" json:"condition"`
	Notes          *string              `gorm:"column:notes" json:"notes"`
	IsCorrection   bool                 `gorm:"column:is_correction;not null;default:false" json:"is_correction"`
	ActorUserID    *uuid.UUID           `gorm:"column:actor_user_id;type:uuid" json:"actor_user_id"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
