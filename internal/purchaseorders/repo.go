package purchaseorders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/stockroom-backend/pkg/db"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	"github.com/angelmondragon/stockroom-backend/pkg/pagination"
)

// Repository persists purchase orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.PurchaseOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	FindItems(ctx context.Context, orderID uuid.UUID) ([]models.PurchaseOrderItem, error)
	FindItemsForUpdate(ctx context.Context, orderID uuid.UUID, itemIDs []uuid.UUID) ([]models.PurchaseOrderItem, error)
	UpdateItemReceipt(ctx context.Context, itemID uuid.UUID, receivedBefore, receivedAfter, remainingAfter int) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.PurchaseOrderStatus, at time.Time) error
	List(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int) ([]models.PurchaseOrder, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a purchase order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.PurchaseOrder) error {
	now := time.Now().UTC()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		if order.Items[i].CreatedAt.IsZero() {
			// keeps line order stable on read
			order.Items[i].CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		}
		order.Items[i].PurchaseOrderID = order.ID
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Where("id = ?", id).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindForUpdate locks the header row only; receipts and cancellation both
// serialize on it.
func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindItems(ctx context.Context, orderID uuid.UUID) ([]models.PurchaseOrderItem, error) {
	var items []models.PurchaseOrderItem
	if err := r.db.WithContext(ctx).
		Where("purchase_order_id = ?", orderID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// FindItemsForUpdate locks the requested lines in id order. Ids that do not
// belong to the order are simply absent from the result.
func (r *repository) FindItemsForUpdate(ctx context.Context, orderID uuid.UUID, itemIDs []uuid.UUID) ([]models.PurchaseOrderItem, error) {
	var items []models.PurchaseOrderItem
	if len(itemIDs) == 0 {
		return items, nil
	}
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
		Where("purchase_order_id = ? AND id IN ?", orderID, itemIDs).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) UpdateItemReceipt(ctx context.Context, itemID uuid.UUID, receivedBefore, receivedAfter, remainingAfter int) error {
	res := r.db.WithContext(ctx).
		Model(&models.PurchaseOrderItem{}).
		Where("id = ? AND quantity_received = ?", itemID, receivedBefore).
		Updates(map[string]any{
			"quantity_received":  receivedAfter,
			"quantity_remaining": remainingAfter,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return dbpkg.ErrStaleWrite
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.PurchaseOrderStatus, at time.Time) error {
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case enums.PurchaseOrderStatusReceived:
		updates["received_at"] = at
	case enums.PurchaseOrderStatusCancelled:
		updates["cancelled_at"] = at
	}
	res := r.db.WithContext(ctx).
		Model(&models.PurchaseOrder{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return dbpkg.ErrStaleWrite
	}
	return nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int) ([]models.PurchaseOrder, error) {
	query := r.db.WithContext(ctx).Model(&models.PurchaseOrder{})
	if filters.VendorID != nil {
		query = query.Where("vendor_id = ?", *filters.VendorID)
	}
	if filters.LocationID != nil {
		query = query.Where("location_id = ?", *filters.LocationID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	var orders []models.PurchaseOrder
	if err := pagination.Keyset(query, "created_at", cursor).Limit(limit).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
