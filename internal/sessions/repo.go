package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	"github.com/angelmondragon/stockroom-backend/pkg/pagination"
)

// Repository persists POS sessions. Counter and total writes are single
// in-database increments guarded by the open status; they report the number
// of rows touched so callers can tell a closed session from a missing one.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, session *models.POSSession) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.POSSession, error)
	FindOpenByLocation(ctx context.Context, locationID uuid.UUID) (*models.POSSession, error)
	List(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int) ([]models.POSSession, error)
	IncrementCounter(ctx context.Context, id uuid.UUID, column string, amount int) (int64, error)
	AddToTotal(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (int64, error)
	Close(ctx context.Context, id uuid.UUID, closedBy uuid.UUID, at time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a session repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, session *models.POSSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.OpenedAt.IsZero() {
		session.OpenedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.POSSession, error) {
	var session models.POSSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindOpenByLocation(ctx context.Context, locationID uuid.UUID) (*models.POSSession, error) {
	var session models.POSSession
	if err := r.db.WithContext(ctx).
		Where("location_id = ? AND status = ?", locationID, enums.POSSessionStatusOpen).
		First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int) ([]models.POSSession, error) {
	query := r.db.WithContext(ctx).Model(&models.POSSession{})
	if filters.VendorID != nil {
		query = query.Where("vendor_id = ?", *filters.VendorID)
	}
	if filters.LocationID != nil {
		query = query.Where("location_id = ?", *filters.LocationID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	var rows []models.POSSession
	if err := pagination.Keyset(query, "opened_at", cursor).Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// IncrementCounter adds amount to column. column must come from
// enums.SessionCounter.Column.
func (r *repository) IncrementCounter(ctx context.Context, id uuid.UUID, column string, amount int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		"UPDATE pos_sessions SET "+column+" = "+column+" + ?, updated_at = ? WHERE id = ? AND status = ?",
		amount, time.Now().UTC(), id, enums.POSSessionStatusOpen,
	)
	return res.RowsAffected, res.Error
}

// AddToTotal adds a signed amount to total_sales.
func (r *repository) AddToTotal(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		"UPDATE pos_sessions SET total_sales = total_sales + ?, updated_at = ? WHERE id = ? AND status = ?",
		amount, time.Now().UTC(), id, enums.POSSessionStatusOpen,
	)
	return res.RowsAffected, res.Error
}

func (r *repository) Close(ctx context.Context, id uuid.UUID, closedBy uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.POSSession{}).
		Where("id = ? AND status = ?", id, enums.POSSessionStatusOpen).
		Updates(map[string]any{
			"status":     enums.POSSessionStatusClosed,
			"closed_at":  at,
			"closed_by":  closedBy,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}
