package purchaseorders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// CreateItemInput is one ordered line.
type CreateItemInput struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"nonneg_decimal"`
}

// CreateInput opens a draft purchase order.
type CreateInput struct {
	VendorID    uuid.UUID               `json:"vendor_id" validate:"required"`
	SupplierID  uuid.UUID               `json:"supplier_id" validate:"required"`
	LocationID  uuid.UUID               `json:"location_id" validate:"required"`
	POType      enums.PurchaseOrderType `json:"po_type" validate:"omitempty,oneof=inbound outbound"`
	Notes       *string                 `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Items       []CreateItemInput       `json:"items" validate:"required,min=1,dive"`
	ActorUserID *uuid.UUID              `json:"-"`
}

// TransitionInput moves an order forward by hand.
type TransitionInput struct {
	OrderID     uuid.UUID
	VendorID    *uuid.UUID
	To          enums.PurchaseOrderStatus
	ActorUserID *uuid.UUID
}

// ListFilters narrows purchase order listings. A nil VendorID lists all vendors.
type ListFilters struct {
	VendorID   *uuid.UUID
	LocationID *uuid.UUID
	Status     *enums.PurchaseOrderStatus
}

// ItemDTO is the API shape of a line item.
type ItemDTO struct {
	ID                uuid.UUID       `json:"id"`
	ProductID         uuid.UUID       `json:"product_id"`
	Quantity          int             `json:"quantity"`
	QuantityReceived  int             `json:"quantity_received"`
	QuantityRemaining int             `json:"quantity_remaining"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	LineTotal         decimal.Decimal `json:"line_total"`
}

// OrderDTO is the API shape of a purchase order.
type OrderDTO struct {
	ID          uuid.UUID                 `json:"id"`
	VendorID    uuid.UUID                 `json:"vendor_id"`
	SupplierID  uuid.UUID                 `json:"supplier_id"`
	LocationID  uuid.UUID                 `json:"location_id"`
	POType      enums.PurchaseOrderType   `json:"po_type"`
	Status      enums.PurchaseOrderStatus `json:"status"`
	Notes       *string                   `json:"notes,omitempty"`
	Total       decimal.Decimal           `json:"total"`
	Items       []ItemDTO                 `json:"items,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
	ReceivedAt  *time.Time                `json:"received_at,omitempty"`
	CancelledAt *time.Time                `json:"cancelled_at,omitempty"`
}

// OrderList is one page of orders, newest first. Items are omitted.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func toOrderDTO(o models.PurchaseOrder) OrderDTO {
	dto := OrderDTO{
		ID:          o.ID,
		VendorID:    o.VendorID,
		SupplierID:  o.SupplierID,
		LocationID:  o.LocationID,
		POType:      o.POType,
		Status:      o.Status,
		Notes:       o.Notes,
		Total:       decimal.Zero,
		CreatedAt:   o.CreatedAt,
		ReceivedAt:  o.ReceivedAt,
		CancelledAt: o.CancelledAt,
	}
	if len(o.Items) > 0 {
		dto.Items = make([]ItemDTO, 0, len(o.Items))
	}
	for _, item := range o.Items {
		line := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		dto.Total = dto.Total.Add(line)
		dto.Items = append(dto.Items, ItemDTO{
			ID:                item.ID,
			ProductID:         item.ProductID,
			Quantity:          item.Quantity,
			QuantityReceived:  item.QuantityReceived,
			QuantityRemaining: item.QuantityRemaining,
			UnitPrice:         item.UnitPrice,
			LineTotal:         line,
		})
	}
	return dto
}
