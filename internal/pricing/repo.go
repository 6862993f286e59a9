package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
)

// Repository persists blueprints, vendor configs and product assignments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBlueprint(ctx context.Context, id uuid.UUID) (*models.PricingTierBlueprint, error)
	FindBlueprints(ctx context.Context, ids []uuid.UUID) ([]models.PricingTierBlueprint, error)
	ListBlueprints(ctx context.Context, activeOnly bool) ([]models.PricingTierBlueprint, error)
	CreateBlueprint(ctx context.Context, blueprint *models.PricingTierBlueprint) error
	SaveBlueprint(ctx context.Context, blueprint *models.PricingTierBlueprint) error
	FindVendorConfig(ctx context.Context, vendorID, blueprintID uuid.UUID) (*models.VendorPricingConfig, error)
	FindVendorConfigs(ctx context.Context, vendorIDs, blueprintIDs []uuid.UUID) ([]models.VendorPricingConfig, error)
	UpsertVendorConfig(ctx context.Context, cfg *models.VendorPricingConfig) error
	FindActiveAssignment(ctx context.Context, productID uuid.UUID) (*models.ProductPricingAssignment, error)
	FindActiveAssignments(ctx context.Context, productIDs []uuid.UUID) ([]models.ProductPricingAssignment, error)
	DeactivateAssignments(ctx context.Context, productID uuid.UUID) error
	CreateAssignment(ctx context.Context, assignment *models.ProductPricingAssignment) error
	ListAssignedProducts(ctx context.Context, blueprintID uuid.UUID, vendorID *uuid.UUID) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a pricing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindBlueprint(ctx context.Context, id uuid.UUID) (*models.PricingTierBlueprint, error) {
	var bp models.PricingTierBlueprint
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&bp).Error; err != nil {
		return nil, err
	}
	return &bp, nil
}

func (r *repository) FindBlueprints(ctx context.Context, ids []uuid.UUID) ([]models.PricingTierBlueprint, error) {
	var out []models.PricingTierBlueprint
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) ListBlueprints(ctx context.Context, activeOnly bool) ([]models.PricingTierBlueprint, error) {
	query := r.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var out []models.PricingTierBlueprint
	if err := query.Order("name ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) CreateBlueprint(ctx context.Context, blueprint *models.PricingTierBlueprint) error {
	if blueprint.ID == uuid.Nil {
		blueprint.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(blueprint).Error
}

func (r *repository) SaveBlueprint(ctx context.Context, blueprint *models.PricingTierBlueprint) error {
	blueprint.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.PricingTierBlueprint{ID: blueprint.ID}).
		Select("name", "price_breaks", "applicable_to_categories", "is_default", "is_active", "updated_at").
		Updates(blueprint).Error
}

func (r *repository) FindVendorConfig(ctx context.Context, vendorID, blueprintID uuid.UUID) (*models.VendorPricingConfig, error) {
	var cfg models.VendorPricingConfig
	if err := r.db.WithContext(ctx).
		Where("vendor_id = ? AND blueprint_id = ?", vendorID, blueprintID).
		First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindVendorConfigs loads configs for the cross product of vendors and
// blueprints; callers pick the pairs they need.
func (r *repository) FindVendorConfigs(ctx context.Context, vendorIDs, blueprintIDs []uuid.UUID) ([]models.VendorPricingConfig, error) {
	var out []models.VendorPricingConfig
	if len(vendorIDs) == 0 || len(blueprintIDs) == 0 {
		return out, nil
	}
	if err := r.db.WithContext(ctx).
		Where("vendor_id IN ? AND blueprint_id IN ?", vendorIDs, blueprintIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) UpsertVendorConfig(ctx context.Context, cfg *models.VendorPricingConfig) error {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	cfg.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "vendor_id"}, {Name: "blueprint_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"pricing_values", "updated_at"}),
		}).
		Create(cfg).Error
}

func (r *repository) FindActiveAssignment(ctx context.Context, productID uuid.UUID) (*models.ProductPricingAssignment, error) {
	var a models.ProductPricingAssignment
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_active = ?", productID, true).
		First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repository) FindActiveAssignments(ctx context.Context, productIDs []uuid.UUID) ([]models.ProductPricingAssignment, error) {
	var out []models.ProductPricingAssignment
	if len(productIDs) == 0 {
		return out, nil
	}
	if err := r.db.WithContext(ctx).
		Where("product_id IN ? AND is_active = ?", productIDs, true).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) DeactivateAssignments(ctx context.Context, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductPricingAssignment{}).
		Where("product_id = ? AND is_active = ?", productID, true).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *repository) CreateAssignment(ctx context.Context, assignment *models.ProductPricingAssignment) error {
	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *repository) ListAssignedProducts(ctx context.Context, blueprintID uuid.UUID, vendorID *uuid.UUID) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).
		Model(&models.ProductPricingAssignment{}).
		Where("blueprint_id = ? AND is_active = ?", blueprintID, true)
	if vendorID != nil {
		query = query.Where("vendor_id = ?", *vendorID)
	}
	var ids []uuid.UUID
	if err := query.Order("product_id ASC").Pluck("product_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
