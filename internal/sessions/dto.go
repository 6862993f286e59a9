package sessions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// OpenInput starts a register shift at a location.
type OpenInput struct {
	LocationID uuid.UUID `json:"location_id" validate:"required"`
	VendorID   uuid.UUID `json:"vendor_id" validate:"required"`
	OpenedBy   uuid.UUID `json:"-"`
}

// CloseInput ends a shift. A non-nil VendorID scopes the lookup.
type CloseInput struct {
	SessionID   uuid.UUID
	VendorID    *uuid.UUID
	ActorUserID uuid.UUID
}

// CounterInput is the body of a counter increment request.
type CounterInput struct {
	CounterName string `json:"counter_name" validate:"required"`
	Amount      int    `json:"amount" validate:"required,gt=0"`
}

// ListFilters narrows session listings.
type ListFilters struct {
	VendorID   *uuid.UUID
	LocationID *uuid.UUID
	Status     *enums.POSSessionStatus
}

// SessionDTO is the API view of a session.
type SessionDTO struct {
	ID                       uuid.UUID              `json:"id"`
	LocationID               uuid.UUID              `json:"location_id"`
	VendorID                 uuid.UUID              `json:"vendor_id"`
	OpenedBy                 uuid.UUID              `json:"opened_by"`
	WalkInSales              int                    `json:"walk_in_sales"`
	PickupOrdersFulfilled    int                    `json:"pickup_orders_fulfilled"`
	DeliveryOrdersDispatched int                    `json:"delivery_orders_dispatched"`
	TotalSales               decimal.Decimal        `json:"total_sales"`
	Status                   enums.POSSessionStatus `json:"status"`
	OpenedAt                 time.Time              `json:"opened_at"`
	ClosedAt                 *time.Time             `json:"closed_at,omitempty"`
	ClosedBy                 *uuid.UUID             `json:"closed_by,omitempty"`
}

// SessionList is one page of sessions.
type SessionList struct {
	Sessions   []SessionDTO `json:"sessions"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func toSessionDTO(s models.POSSession) SessionDTO {
	return SessionDTO{
		ID:                       s.ID,
		LocationID:               s.LocationID,
		VendorID:                 s.VendorID,
		OpenedBy:                 s.OpenedBy,
		WalkInSales:              s.WalkInSales,
		PickupOrdersFulfilled:    s.PickupOrdersFulfilled,
		DeliveryOrdersDispatched: s.DeliveryOrdersDispatched,
		TotalSales:               s.TotalSales,
		Status:                   s.Status,
		OpenedAt:                 s.OpenedAt,
		ClosedAt:                 s.ClosedAt,
		ClosedBy:                 s.ClosedBy,
	}
}
