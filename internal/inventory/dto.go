package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// Reference types stored on ledger entries.
const (
	ReferencePurchaseOrderItem = "purchase_order_item"
	ReferencePOSSale           = "pos_sale"
	ReferencePOSRefund         = "pos_refund"
	ReferenceTransfer          = "transfer"
	ReferenceManual            = "manual"
)

// Reference ties a ledger entry to the document that caused it.
type Reference struct {
	Type string
	ID   uuid.UUID
}

// MovementInput describes one signed change to a (product, location) balance.
type MovementInput struct {
	ProductID     uuid.UUID
	LocationID    uuid.UUID
	VendorID      uuid.UUID
	MovementType  enums.MovementType
	QuantityDelta int
	Reference     *Reference
	Condition     *enums.ItemCondition
	Notes         *string
	IsCorrection  bool
	ActorUserID   *uuid.UUID
}

// AdjustInput is a manual stock count correction.
type AdjustInput struct {
	ProductID    uuid.UUID  `json:"product_id" validate:"required"`
	LocationID   uuid.UUID  `json:"location_id" validate:"required"`
	VendorID     uuid.UUID  `json:"vendor_id" validate:"required"`
	Delta        int        `json:"delta" validate:"required"`
	IsCorrection bool       `json:"is_correction"`
	Notes        *string    `json:"notes,omitempty" validate:"omitempty,max=500"`
	ActorUserID  *uuid.UUID `json:"-"`
}

// TransferInput moves stock between two locations of the same vendor.
type TransferInput struct {
	ProductID      uuid.UUID  `json:"product_id" validate:"required"`
	VendorID       uuid.UUID  `json:"vendor_id" validate:"required"`
	FromLocationID uuid.UUID  `json:"from_location_id" validate:"required"`
	ToLocationID   uuid.UUID  `json:"to_location_id" validate:"required,nefield=FromLocationID"`
	Quantity       int        `json:"quantity" validate:"required,gt=0"`
	Notes          *string    `json:"notes,omitempty" validate:"omitempty,max=500"`
	ActorUserID    *uuid.UUID `json:"-"`
}

// TransferResult holds both legs of a transfer.
type TransferResult struct {
	TransferID uuid.UUID            `json:"transfer_id"`
	Out        models.StockMovement `json:"out"`
	In         models.StockMovement `json:"in"`
}

// MovementDTO is the API shape of a ledger entry.
type MovementDTO struct {
	ID             uuid.UUID            `json:"id"`
	InventoryID    uuid.UUID            `json:"inventory_id"`
	ProductID      uuid.UUID            `json:"product_id"`
	LocationID     uuid.UUID            `json:"location_id"`
	MovementType   enums.MovementType   `json:"movement_type"`
	Quantity       int                  `json:"quantity"`
	QuantityBefore int                  `json:"quantity_before"`
	QuantityAfter  int                  `json:"quantity_after"`
	ReferenceType  *string              `json:"reference_type,omitempty"`
	ReferenceID    *uuid.UUID           `json:"reference_id,omitempty"`
	Condition      *enums.ItemCondition `json:"condition,omitempty"`
	Notes          *string              `json:"notes,omitempty"`
	IsCorrection   bool                 `json:"is_correction"`
	CreatedAt      time.Time            `json:"created_at"`
}

// MovementList is one page of ledger entries, newest first.
type MovementList struct {
	Movements  []MovementDTO `json:"movements"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// RecordDTO is the API shape of a projection row.
type RecordDTO struct {
	ID                uuid.UUID `json:"id"`
	ProductID         uuid.UUID `json:"product_id"`
	LocationID        uuid.UUID `json:"location_id"`
	VendorID          uuid.UUID `json:"vendor_id"`
	Quantity          int       `json:"quantity"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	IsLowStock        bool      `json:"is_low_stock"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toRecordDTO(r models.InventoryRecord) RecordDTO {
	return RecordDTO{
		ID:                r.ID,
		ProductID:         r.ProductID,
		LocationID:        r.LocationID,
		VendorID:          r.VendorID,
		Quantity:          r.Quantity,
		LowStockThreshold: r.LowStockThreshold,
		IsLowStock:        r.IsLowStock(),
		UpdatedAt:         r.UpdatedAt,
	}
}

func toMovementDTO(m models.StockMovement) MovementDTO {
	return MovementDTO{
		ID:             m.ID,
		InventoryID:    m.InventoryID,
		ProductID:      m.ProductID,
		LocationID:     m.LocationID,
		MovementType:   m.MovementType,
		Quantity:       m.Quantity,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		ReferenceType:  m.ReferenceType,
		ReferenceID:    m.ReferenceID,
		Condition:      m.Condition,
		Notes:          m.Notes,
		IsCorrection:   m.IsCorrection,
		CreatedAt:      m.CreatedAt,
	}
}

// NewMovementDTO renders a ledger entry for API responses.
func NewMovementDTO(m *models.StockMovement) *MovementDTO {
	if m == nil {
		return nil
	}
	dto := toMovementDTO(*m)
	return &dto
}
