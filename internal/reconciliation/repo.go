package reconciliation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	"github.com/angelmondragon/stockroom-backend/pkg/pagination"
)

// FlagRepository persists reconciliation flags.
type FlagRepository interface {
	WithTx(tx *gorm.DB) FlagRepository
	Create(ctx context.Context, flag *models.ReconciliationFlag) error
	FindOpen(ctx context.Context, inventoryID uuid.UUID) (*models.ReconciliationFlag, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.ReconciliationFlag, error)
	List(ctx context.Context, status *enums.ReconciliationFlagStatus, cursor *pagination.Cursor, limit int) ([]models.ReconciliationFlag, error)
	Resolve(ctx context.Context, id, resolvedBy uuid.UUID, note *string, at time.Time) (int64, error)
}

type flagRepository struct {
	db *gorm.DB
}

// NewFlagRepository returns a flag repository bound to the provided database.
func NewFlagRepository(db *gorm.DB) FlagRepository {
	return &flagRepository{db: db}
}

func (r *flagRepository) WithTx(tx *gorm.DB) FlagRepository {
	if tx == nil {
		return r
	}
	return &flagRepository{db: tx}
}

func (r *flagRepository) Create(ctx context.Context, flag *models.ReconciliationFlag) error {
	if flag.ID == uuid.Nil {
		flag.ID = uuid.New()
	}
	if flag.DetectedAt.IsZero() {
		flag.DetectedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(flag).Error
}

func (r *flagRepository) FindOpen(ctx context.Context, inventoryID uuid.UUID) (*models.ReconciliationFlag, error) {
	var flag models.ReconciliationFlag
	if err := r.db.WithContext(ctx).
		Where("inventory_id = ? AND status = ?", inventoryID, enums.ReconciliationFlagOpen).
		First(&flag).Error; err != nil {
		return nil, err
	}
	return &flag, nil
}

func (r *flagRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ReconciliationFlag, error) {
	var flag models.ReconciliationFlag
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&flag).Error; err != nil {
		return nil, err
	}
	return &flag, nil
}

func (r *flagRepository) List(ctx context.Context, status *enums.ReconciliationFlagStatus, cursor *pagination.Cursor, limit int) ([]models.ReconciliationFlag, error) {
	query := r.db.WithContext(ctx).Model(&models.ReconciliationFlag{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var rows []models.ReconciliationFlag
	if err := pagination.Keyset(query, "detected_at", cursor).Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *flagRepository) Resolve(ctx context.Context, id, resolvedBy uuid.UUID, note *string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ReconciliationFlag{}).
		Where("id = ? AND status = ?", id, enums.ReconciliationFlagOpen).
		Updates(map[string]any{
			"status":          enums.ReconciliationFlagResolved,
			"resolved_at":     at,
			"resolved_by":     resolvedBy,
			"resolution_note": note,
		})
	return res.RowsAffected, res.Error
}
