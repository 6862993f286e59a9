package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/stockroom-backend/pkg/db"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/pagination"
)

// Repository persists inventory projections and their ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindRecord(ctx context.Context, productID, locationID uuid.UUID) (*models.InventoryRecord, error)
	FindRecordForUpdate(ctx context.Context, productID, locationID uuid.UUID) (*models.InventoryRecord, error)
	CreateRecord(ctx context.Context, record *models.InventoryRecord) error
	UpdateQuantity(ctx context.Context, recordID uuid.UUID, before, after int) error
	UpdateThreshold(ctx context.Context, recordID uuid.UUID, threshold int) error
	CreateMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovements(ctx context.Context, inventoryID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.StockMovement, error)
	ListLowStock(ctx context.Context, vendorID uuid.UUID, locationID *uuid.UUID) ([]models.InventoryRecord, error)
	ListRecordsAfter(ctx context.Context, afterID uuid.UUID, limit int) ([]models.InventoryRecord, error)
	SumMovements(ctx context.Context, inventoryIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindRecord(ctx context.Context, productID, locationID uuid.UUID) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND location_id = ?", productID, locationID).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindRecordForUpdate(ctx context.Context, productID, locationID uuid.UUID) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
		Where("product_id = ? AND location_id = ?", productID, locationID).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) CreateRecord(ctx context.Context, record *models.InventoryRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// UpdateQuantity writes after only while the row still holds before.
func (r *repository) UpdateQuantity(ctx context.Context, recordID uuid.UUID, before, after int) error {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("id = ? AND quantity = ?", recordID, before).
		Updates(map[string]any{
			"quantity":   after,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return dbpkg.ErrStaleWrite
	}
	return nil
}

func (r *repository) UpdateThreshold(ctx context.Context, recordID uuid.UUID, threshold int) error {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]any{
			"low_stock_threshold": threshold,
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) CreateMovement(ctx context.Context, movement *models.StockMovement) error {
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovements(ctx context.Context, inventoryID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.StockMovement, error) {
	query := r.db.WithContext(ctx).
		Where("inventory_id = ?", inventoryID)
	var movements []models.StockMovement
	if err := pagination.Keyset(query, "created_at", cursor).Limit(limit).Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

func (r *repository) ListLowStock(ctx context.Context, vendorID uuid.UUID, locationID *uuid.UUID) ([]models.InventoryRecord, error) {
	query := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Where("low_stock_threshold > 0 AND quantity <= low_stock_threshold")
	if locationID != nil {
		query = query.Where("location_id = ?", *locationID)
	}
	var records []models.InventoryRecord
	if err := query.Order("quantity ASC").Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ListRecordsAfter pages through every projection row in id order.
func (r *repository) ListRecordsAfter(ctx context.Context, afterID uuid.UUID, limit int) ([]models.InventoryRecord, error) {
	query := r.db.WithContext(ctx)
	if afterID != uuid.Nil {
		query = query.Where("id > ?", afterID)
	}
	var records []models.InventoryRecord
	if err := query.Order("id ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

type movementSum struct {
	InventoryID uuid.UUID `gorm:"column:inventory_id"`
	Total       int       `gorm:"column:total"`
}

// SumMovements returns the ledger delta total per inventory id. Ids without
// movements are present with 0.
func (r *repository) SumMovements(ctx context.Context, inventoryIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(inventoryIDs))
	if len(inventoryIDs) == 0 {
		return out, nil
	}
	for _, id := range inventoryIDs {
		out[id] = 0
	}
	var rows []movementSum
	if err := r.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Select("inventory_id, COALESCE(SUM(quantity), 0) AS total").
		Where("inventory_id IN ?", inventoryIDs).
		Group("inventory_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.InventoryID] = row.Total
	}
	return out, nil
}
