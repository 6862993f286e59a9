package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// POSSession is one register shift. Counter columns are only ever changed
// with in-database increments.
type POSSession struct {
	ID                       uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	LocationID               uuid.UUID              `gorm:"column:location_id;type:uuid;not null"`
	VendorID                 uuid.UUID              `gorm:"column:vendor_id;type:uuid;not null"`
	OpenedBy                 uuid.UUID              `gorm:"column:opened_by;type:uuid;not null"`
	WalkInSales              int                    `gorm:"column:walk_in_sales;not null;default:0"`
	PickupOrdersFulfilled    int                    `gorm:"column:pickup_orders_fulfilled;not null;default:0"`
	DeliveryOrdersDispatched int                    `gorm:"column:delivery_orders_dispatched;not null;default:0"`
	TotalSales               decimal.Decimal        `gorm:"column:total_sales;type:numeric(14,2);not null;default:0"`
	Status                   enums.POSSessionStatus `gorm:"column:status;not null"`
	OpenedAt                 time.Time              `gorm:"column:opened_at;not null"`
	ClosedAt                 *time.Time             `gorm:"column:closed_at"`
	ClosedBy                 *uuid.UUID             `gorm:"column:closed_by;type:uuid"`
	UpdatedAt                time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (POSSession) TableName() string { return "pos_sessions" }
