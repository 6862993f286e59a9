package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// ReceiptLine is one applied line inside a purchase order receipt.
type ReceiptLine struct {
	LineItemID        uuid.UUID           `json:"line_item_id"`
	ProductID         uuid.UUID           `json:"product_id"`
	QuantityReceived  int                 `json:"quantity_received"`
	QuantityRemaining int                 `json:"quantity_remaining"`
	Condition         enums.ItemCondition `json:"condition"`
	MovementID        uuid.UUID           `json:"movement_id"`
}

// PurchaseOrderReceivedEvent is emitted once per committed receipt.
type PurchaseOrderReceivedEvent struct {
	PurchaseOrderID uuid.UUID                 `json:"purchase_order_id"`
	VendorID        uuid.UUID                 `json:"vendor_id"`
	LocationID      uuid.UUID                 `json:"location_id"`
	Status          enums.PurchaseOrderStatus `json:"status"`
	Lines           []ReceiptLine             `json:"lines"`
}

// PurchaseOrderStatusChangedEvent covers manual transitions and cancellation.
type PurchaseOrderStatusChangedEvent struct {
	PurchaseOrderID uuid.UUID                 `json:"purchase_order_id"`
	VendorID        uuid.UUID                 `json:"vendor_id"`
	From            enums.PurchaseOrderStatus `json:"from"`
	To              enums.PurchaseOrderStatus `json:"to"`
}

// StockMovementRecordedEvent mirrors a ledger entry.
type StockMovementRecordedEvent struct {
	MovementID     uuid.UUID          `json:"movement_id"`
	InventoryID    uuid.UUID          `json:"inventory_id"`
	ProductID      uuid.UUID          `json:"product_id"`
	LocationID     uuid.UUID          `json:"location_id"`
	VendorID       uuid.UUID          `json:"vendor_id"`
	MovementType   enums.MovementType `json:"movement_type"`
	Quantity       int                `json:"quantity"`
	QuantityBefore int                `json:"quantity_before"`
	QuantityAfter  int                `json:"quantity_after"`
	ReferenceType  *string            `json:"reference_type,omitempty"`
	ReferenceID    *uuid.UUID         `json:"reference_id,omitempty"`
}

// LowStockReachedEvent fires when a movement crosses the low-stock threshold.
type LowStockReachedEvent struct {
	InventoryID       uuid.UUID `json:"inventory_id"`
	ProductID         uuid.UUID `json:"product_id"`
	LocationID        uuid.UUID `json:"location_id"`
	VendorID          uuid.UUID `json:"vendor_id"`
	Quantity          int       `json:"quantity"`
	LowStockThreshold int       `json:"low_stock_threshold"`
}

// POSSessionEvent carries the session snapshot on open and close.
type POSSessionEvent struct {
	SessionID                uuid.UUID              `json:"session_id"`
	LocationID               uuid.UUID              `json:"location_id"`
	VendorID                 uuid.UUID              `json:"vendor_id"`
	Status                   enums.POSSessionStatus `json:"status"`
	WalkInSales              int                    `json:"walk_in_sales"`
	PickupOrdersFulfilled    int                    `json:"pickup_orders_fulfilled"`
	DeliveryOrdersDispatched int                    `json:"delivery_orders_dispatched"`
	TotalSales               decimal.Decimal        `json:"total_sales"`
}

// POSRefundRecordedEvent is emitted for each committed refund.
type POSRefundRecordedEvent struct {
	SessionID   uuid.UUID       `json:"session_id"`
	VendorID    uuid.UUID       `json:"vendor_id"`
	OrderID     *uuid.UUID      `json:"order_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	MovementIDs []uuid.UUID     `json:"movement_ids"`
}

// PricingTiersChangedEvent tells storefronts to drop cached tiers.
type PricingTiersChangedEvent struct {
	ProductIDs  []uuid.UUID `json:"product_ids"`
	BlueprintID uuid.UUID   `json:"blueprint_id"`
	VendorID    *uuid.UUID  `json:"vendor_id,omitempty"`
}

// InventoryMismatchFlaggedEvent reports a projection that disagrees with its ledger.
type InventoryMismatchFlaggedEvent struct {
	FlagID            uuid.UUID `json:"flag_id"`
	InventoryID       uuid.UUID `json:"inventory_id"`
	ProductID         uuid.UUID `json:"product_id"`
	LocationID        uuid.UUID `json:"location_id"`
	ProjectedQuantity int       `json:"projected_quantity"`
	LedgerQuantity    int       `json:"ledger_quantity"`
}
