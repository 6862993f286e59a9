package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
)

const (
	maxDLQErrorLen   = 1024
	defaultDLQLimit  = 50
	maxDLQListLength = 500
)

// DLQRepository stores events the publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDeadLetter) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ErrorMessage != nil && len(*entry.ErrorMessage) > maxDLQErrorLen {
		msg := (*entry.ErrorMessage)[:maxDLQErrorLen]
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// FindByEventIDTx returns nil, nil when no entry exists.
func (r *DLQRepository) FindByEventIDTx(tx *gorm.DB, eventID uuid.UUID) (*models.OutboxDeadLetter, error) {
	var entry models.OutboxDeadLetter
	err := tx.Where("event_id = ?", eventID).Order("failed_at DESC").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *DLQRepository) DeleteByEventIDTx(tx *gorm.DB, eventID uuid.UUID) error {
	return tx.Where("event_id = ?", eventID).Delete(&models.OutboxDeadLetter{}).Error
}

func (r *DLQRepository) List(ctx context.Context, limit int) ([]models.OutboxDeadLetter, error) {
	switch {
	case limit <= 0:
		limit = defaultDLQLimit
	case limit > maxDLQListLength:
		limit = maxDLQListLength
	}
	var rows []models.OutboxDeadLetter
	err := r.db.WithContext(ctx).
		Order("failed_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// DeleteFailedBefore removes at most limit dead letters that failed before cutoff.
func (r *DLQRepository) DeleteFailedBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	batch := tx.Model(&models.OutboxDeadLetter{}).
		Select("id").
		Where("failed_at < ?", cutoff).
		Order("failed_at ASC").
		Limit(limit)
	res := tx.Where("id IN (?)", batch).Delete(&models.OutboxDeadLetter{})
	return res.RowsAffected, res.Error
}
