package receiving

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// ReceiveItemInput is one line of a receipt.
type ReceiveItemInput struct {
	LineItemID       uuid.UUID           `json:"line_item_id" validate:"required"`
	QuantityReceived int                 `json:"quantity_received" validate:"required,gt=0"`
	Condition        enums.ItemCondition `json:"condition,omitempty" validate:"omitempty,oneof=good damaged expired"`
	Notes            *string             `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// ReceiveInput is a batch of receipt lines against one purchase order.
type ReceiveInput struct {
	PurchaseOrderID uuid.UUID          `json:"po_id"`
	VendorID        uuid.UUID          `json:"vendor_id" validate:"required"`
	Items           []ReceiveItemInput `json:"items" validate:"required,min=1,dive"`
	ActorUserID     *uuid.UUID         `json:"-"`
}

// ItemOutcome reports what happened to one receipt line.
type ItemOutcome struct {
	LineItemID        uuid.UUID `json:"line_item_id"`
	ProductID         uuid.UUID `json:"product_id"`
	AppliedQuantity   int       `json:"applied_quantity"`
	QuantityReceived  int       `json:"quantity_received"`
	QuantityRemaining int       `json:"quantity_remaining"`
	MovementID        uuid.UUID `json:"movement_id"`
}

// ReceiptResult is returned only when every line was applied.
type ReceiptResult struct {
	PurchaseOrderID uuid.UUID                 `json:"purchase_order_id"`
	PreviousStatus  enums.PurchaseOrderStatus `json:"previous_status"`
	Status          enums.PurchaseOrderStatus `json:"status"`
	Items           []ItemOutcome             `json:"items"`
}
