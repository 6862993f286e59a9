package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// ReconciliationFlag records an inventory row whose quantity disagrees with
// its ledger. Flags are reviewed by hand; nothing corrects them automatically.
type ReconciliationFlag struct {
	ID                uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey"`
	InventoryID       uuid.UUID                      `gorm:"column:inventory_id;type:uuid;not null"`
	ProductID         uuid.UUID                      `gorm:"column:product_id;type:uuid;not null"`
	LocationID        uuid.UUID                      `gorm:"column:location_id;type:uuid;not null"`
	ProjectedQuantity int                            `gorm:"column:projected_quantity;not null"`
	LedgerQuantity    int                            `gorm:"column:ledger_quantity;not null"`
	Status            enums.ReconciliationFlagStatus `gorm:"column:status;not null"`
	DetectedAt        time.Time                      `gorm:"column:detected_at;not null"`
	ResolvedAt        *time.Time                     `gorm:"column:resolved_at"`
	ResolvedBy        *uuid.UUID                     `gorm:"column:resolved_by;type:uuid"`
	ResolutionNote    *string                        `gorm:"column:resolution_note"`
}

func (ReconciliationFlag) TableName() string { return "reconciliation_flags" }

// Drift is projected minus ledger quantity.
func (f ReconciliationFlag) Drift() int {
	return f.ProjectedQuantity - f.LedgerQuantity
}
