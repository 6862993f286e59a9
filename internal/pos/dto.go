package pos

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// LineInput is one product on a sale or refund.
type LineInput struct {
	ProductID uuid.UUID            `json:"product_id" validate:"required"`
	Quantity  int                  `json:"quantity" validate:"required,gt=0"`
	Condition *enums.ItemCondition `json:"condition,omitempty" validate:"omitempty,oneof=good damaged expired"`
}

// SaleInput rings up a sale against an open session.
type SaleInput struct {
	SessionID   uuid.UUID       `json:"-"`
	VendorID    uuid.UUID       `json:"vendor_id" validate:"required"`
	Counter     string          `json:"counter_name,omitempty"`
	Amount      decimal.Decimal `json:"amount" validate:"nonneg_decimal"`
	OrderID     *uuid.UUID      `json:"order_id,omitempty"`
	Items       []LineInput     `json:"items" validate:"required,min=1,dive"`
	ActorUserID *uuid.UUID      `json:"-"`
}

// RefundInput returns stock and money against a session.
type RefundInput struct {
	SessionID   uuid.UUID       `json:"session_id" validate:"required"`
	VendorID    uuid.UUID       `json:"vendor_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"pos_decimal"`
	OrderID     *uuid.UUID      `json:"order_id,omitempty"`
	Items       []LineInput     `json:"items" validate:"omitempty,dive"`
	ActorUserID *uuid.UUID      `json:"-"`
}

// LineResult reports the ledger entry written for one line.
type LineResult struct {
	ProductID     uuid.UUID `json:"product_id"`
	MovementID    uuid.UUID `json:"movement_id"`
	Quantity      int       `json:"quantity"`
	QuantityAfter int       `json:"quantity_after"`
}

// SaleResult is returned for a committed sale.
type SaleResult struct {
	SaleID    uuid.UUID       `json:"sale_id"`
	SessionID uuid.UUID       `json:"session_id"`
	Counter   string          `json:"counter_name"`
	Amount    decimal.Decimal `json:"amount"`
	Lines     []LineResult    `json:"lines"`
}

// RefundResult is returned for a committed refund.
type RefundResult struct {
	RefundID  uuid.UUID       `json:"refund_id"`
	SessionID uuid.UUID       `json:"session_id"`
	Amount    decimal.Decimal `json:"amount"`
	Lines     []LineResult    `json:"lines"`
}
