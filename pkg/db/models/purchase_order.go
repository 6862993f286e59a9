package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// PurchaseOrder is a vendor-owned order for stock from a supplier.
type PurchaseOrder struct {
	ID          uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	VendorID    uuid.UUID                 `gorm:"column:vendor_id;type:uuid;not null"`
	SupplierID  uuid.UUID                 `gorm:"column:supplier_id;type:uuid;not null"`
	LocationID  uuid.UUID                 `gorm:"column:location_id;type:uuid;not null"`
	POType      enums.PurchaseOrderType   `gorm:"column:po_type;type:po_type_enum;not null"`
	Status      enums.PurchaseOrderStatus `gorm:"column:status;type:po_status_enum;not null"`
	Notes       *string                   `gorm:"column:notes"`
	CreatedBy   *uuid.UUID                `gorm:"column:created_by;type:uuid"`
	CreatedAt   time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
	ReceivedAt  *time.Time                `gorm:"column:received_at"`
	CancelledAt *time.Time                `gorm:"column:cancelled_at"`
	Items       []PurchaseOrderItem       `gorm:"foreignKey:PurchaseOrderID"`
}

// PurchaseOrderItem is one ordered product line. Quantity columns change only
// through receiving.
type PurchaseOrderItem struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PurchaseOrderID   uuid.UUID       `gorm:"column:purchase_order_id;type:uuid;not null"`
	ProductID         uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity          int             `gorm:"column:quantity;not null"`
	QuantityReceived  int             `gorm:"column:quantity_received;not null;default:0"`
	QuantityRemaining int             `gorm:"column:quantity_remaining;not null"`
	UnitPrice         decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
