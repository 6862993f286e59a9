package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox/payloads"
)

// DefaultMaxLookupBatch bounds Lookup when no limit is configured.
const DefaultMaxLookupBatch = 100

type txRunner interface {
	WithRetryTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// TierCache stores resolved tier lists keyed by product. Each product also
// has a generation key that writes advance; a fill only lands while the
// generation it read before loading is still current.
type TierCache interface {
	MGet(ctx context.Context, keys ...string) ([]string, []bool, error)
	SetIfGeneration(ctx context.Context, key, generationKey, generation string, value any, ttl time.Duration) (bool, error)
	BumpAndDelete(ctx context.Context, keys, generationKeys []string) error
	PricingTiersKey(productID string) string
	PricingGenerationKey(productID string) string
}

type cacheRecorder interface {
	IncPricingCache(hit bool)
}

// Service resolves sellable tiers and owns the pricing admin writes.
type Service interface {
	ResolveTiers(ctx context.Context, productID uuid.UUID) ([]PriceTier, error)
	Lookup(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID][]PriceTier, error)
	CreateBlueprint(ctx context.Context, input BlueprintInput) (*BlueprintDTO, error)
	UpdateBlueprint(ctx context.Context, id uuid.UUID, input BlueprintInput) (*BlueprintDTO, error)
	GetBlueprint(ctx context.Context, id uuid.UUID) (*BlueprintDTO, error)
	ListBlueprints(ctx context.Context, activeOnly bool) ([]BlueprintDTO, error)
	UpsertVendorConfig(ctx context.Context, input VendorConfigInput) (*models.VendorPricingConfig, error)
	AssignProduct(ctx context.Context, input AssignInput) (*models.ProductPricingAssignment, error)
}

// Options tunes caching and batch limits.
type Options struct {
	CacheTTL       time.Duration
	MaxLookupBatch int
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	cache   TierCache
	metrics cacheRecorder
	logg    *logger.Logger
	opts    Options
}

// NewService wires the pricing service. cache, metrics and logg may be nil;
// without a cache every lookup reads the database.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, cache TierCache, metrics cacheRecorder, logg *logger.Logger, opts Options) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("pricing repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if opts.MaxLookupBatch <= 0 {
		opts.MaxLookupBatch = DefaultMaxLookupBatch
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outbox,
		cache:   cache,
		metrics: metrics,
		logg:    logg,
		opts:    opts,
	}, nil
}

// ResolveTiers returns the sellable tiers for one product. A product without
// an active assignment resolves to an empty list.
func (s *service) ResolveTiers(ctx context.Context, productID uuid.UUID) ([]PriceTier, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "product_id is required")
	}
	hits, generations := s.cached(ctx, []uuid.UUID{productID})
	if tiers, ok := hits[productID]; ok {
		return tiers, nil
	}
	resolved, missing, err := s.load(ctx, []uuid.UUID{productID})
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, pkgerrors.Reject(pkgerrors.CodeNotFound, pkgerrors.ReasonBlueprintNotFound, "assigned blueprint not found")
	}
	s.store(ctx, resolved, generations)
	return resolved[productID], nil
}

// Lookup resolves many products at once. Products whose blueprint is gone
// are logged and left out of the result.
func (s *service) Lookup(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID][]PriceTier, error) {
	ids := dedupe(productIDs)
	if len(ids) == 0 {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "product_ids is required")
	}
	if len(ids) > s.opts.MaxLookupBatch {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, fmt.Sprintf("at most %d product_ids per lookup", s.opts.MaxLookupBatch))
	}

	out, generations := s.cached(ctx, ids)
	misses := make([]uuid.UUID, 0, len(ids)-len(out))
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			misses = append(misses, id)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	resolved, missing, err := s.load(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, id := range missing {
		if s.logg != nil {
			logCtx := s.logg.WithField(ctx, "product_id", id.String())
			s.logg.Warn(logCtx, "pricing assignment references a missing blueprint")
		}
	}
	s.store(ctx, resolved, generations)
	for id, tiers := range resolved {
		out[id] = tiers
	}
	return out, nil
}

// load resolves ids from the database. It returns the resolved tiers and the
// products whose assigned blueprint no longer exists.
func (s *service) load(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]PriceTier, []uuid.UUID, error) {
	assignments, err := s.repo.FindActiveAssignments(ctx, ids)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pricing assignments")
	}
	byProduct := make(map[uuid.UUID]*models.ProductPricingAssignment, len(assignments))
	blueprintIDs := make([]uuid.UUID, 0, len(assignments))
	vendorIDs := make([]uuid.UUID, 0, len(assignments))
	for i := range assignments {
		a := &assignments[i]
		byProduct[a.ProductID] = a
		blueprintIDs = append(blueprintIDs, a.BlueprintID)
		vendorIDs = append(vendorIDs, a.VendorID)
	}
	blueprintIDs = dedupe(blueprintIDs)
	vendorIDs = dedupe(vendorIDs)

	blueprints, err := s.repo.FindBlueprints(ctx, blueprintIDs)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pricing blueprints")
	}
	bpByID := make(map[uuid.UUID]*models.PricingTierBlueprint, len(blueprints))
	for i := range blueprints {
		bpByID[blueprints[i].ID] = &blueprints[i]
	}

	configs, err := s.repo.FindVendorConfigs(ctx, vendorIDs, blueprintIDs)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor pricing configs")
	}
	type pair struct{ vendor, blueprint uuid.UUID }
	cfgByPair := make(map[pair]*models.VendorPricingConfig, len(configs))
	for i := range configs {
		cfgByPair[pair{configs[i].VendorID, configs[i].BlueprintID}] = &configs[i]
	}

	resolved := make(map[uuid.UUID][]PriceTier, len(ids))
	var missing []uuid.UUID
	for _, id := range ids {
		a, ok := byProduct[id]
		if !ok {
			resolved[id] = []PriceTier{}
			continue
		}
		bp, ok := bpByID[a.BlueprintID]
		if !ok {
			missing = append(missing, id)
			continue
		}
		resolved[id] = ResolveTiers(bp, cfgByPair[pair{a.VendorID, a.BlueprintID}], a)
	}
	return resolved, missing, nil
}

// cached returns the products found in the cache along with the generation
// of every requested product, read in the same round trip. Cache failures
// count as misses and return no generations, which disables the fill.
func (s *service) cached(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]PriceTier, map[uuid.UUID]string) {
	out := make(map[uuid.UUID][]PriceTier, len(ids))
	if s.cache == nil {
		return out, nil
	}
	keys := make([]string, 2*len(ids))
	for i, id := range ids {
		keys[i] = s.cache.PricingTiersKey(id.String())
		keys[len(ids)+i] = s.cache.PricingGenerationKey(id.String())
	}
	values, found, err := s.cache.MGet(ctx, keys...)
	if err != nil || len(values) < len(keys) || len(found) < len(keys) {
		if err == nil {
			err = fmt.Errorf("pricing cache returned %d values for %d keys", len(values), len(keys))
		}
		if s.logg != nil {
			s.logg.Error(ctx, "pricing cache read failed", err)
		}
		return out, nil
	}
	generations := make(map[uuid.UUID]string, len(ids))
	for i, id := range ids {
		generations[id] = values[len(ids)+i]
		hit := found[i]
		if hit {
			var tiers []PriceTier
			if err := json.Unmarshal([]byte(values[i]), &tiers); err != nil || tiers == nil {
				hit = false
			} else {
				out[id] = tiers
			}
		}
		if s.metrics != nil {
			s.metrics.IncPricingCache(hit)
		}
	}
	return out, generations
}

// store fills the cache for products whose generation was read before the
// load. A write that committed in between has advanced the generation, so
// the stale fill is refused.
func (s *service) store(ctx context.Context, resolved map[uuid.UUID][]PriceTier, generations map[uuid.UUID]string) {
	if s.cache == nil {
		return
	}
	for id, tiers := range resolved {
		generation, ok := generations[id]
		if !ok {
			continue
		}
		payload, err := json.Marshal(tiers)
		if err != nil {
			continue
		}
		key := id.String()
		if _, err := s.cache.SetIfGeneration(ctx, s.cache.PricingTiersKey(key), s.cache.PricingGenerationKey(key), generation, payload, s.opts.CacheTTL); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "product_id", key), "pricing cache write failed", err)
		}
	}
}

func (s *service) invalidate(ctx context.Context, productIDs []uuid.UUID) {
	if s.cache == nil || len(productIDs) == 0 {
		return
	}
	keys := make([]string, len(productIDs))
	generationKeys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = s.cache.PricingTiersKey(id.String())
		generationKeys[i] = s.cache.PricingGenerationKey(id.String())
	}
	if err := s.cache.BumpAndDelete(ctx, keys, generationKeys); err != nil && s.logg != nil {
		s.logg.Error(ctx, "pricing cache invalidation failed", err)
	}
}

func (s *service) CreateBlueprint(ctx context.Context, input BlueprintInput) (*BlueprintDTO, error) {
	bp, err := blueprintFromInput(input)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		bp.ID = uuid.Nil
		return s.repo.WithTx(tx).CreateBlueprint(ctx, bp)
	})
	if err != nil {
		return nil, mapWriteError(err, "create pricing blueprint")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "blueprint_id", bp.ID.String()), "pricing blueprint created")
	}
	dto := blueprintDTO(bp)
	return &dto, nil
}

// UpdateBlueprint replaces the blueprint's breaks and flags. Every product
// assigned to it has its cached tiers dropped.
func (s *service) UpdateBlueprint(ctx context.Context, id uuid.UUID, input BlueprintInput) (*BlueprintDTO, error) {
	next, err := blueprintFromInput(input)
	if err != nil {
		return nil, err
	}
	var (
		saved    *models.PricingTierBlueprint
		affected []uuid.UUID
	)
	err = s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindBlueprint(ctx, id)
		if err != nil {
			return err
		}
		current.Name = next.Name
		current.PriceBreaks = next.PriceBreaks
		current.ApplicableToCategories = next.ApplicableToCategories
		current.IsDefault = next.IsDefault
		if input.IsActive != nil {
			current.IsActive = *input.IsActive
		}
		if err := repo.SaveBlueprint(ctx, current); err != nil {
			return err
		}
		products, err := repo.ListAssignedProducts(ctx, id, nil)
		if err != nil {
			return err
		}
		if err := s.emitChanged(ctx, tx, id, nil, products); err != nil {
			return err
		}
		saved = current
		affected = products
		return nil
	})
	if err != nil {
		return nil, mapWriteError(err, "update pricing blueprint")
	}
	s.invalidate(ctx, affected)
	dto := blueprintDTO(saved)
	return &dto, nil
}

func (s *service) GetBlueprint(ctx context.Context, id uuid.UUID) (*BlueprintDTO, error) {
	bp, err := s.repo.FindBlueprint(ctx, id)
	if err != nil {
		return nil, mapWriteError(err, "load pricing blueprint")
	}
	dto := blueprintDTO(bp)
	return &dto, nil
}

func (s *service) ListBlueprints(ctx context.Context, activeOnly bool) ([]BlueprintDTO, error) {
	rows, err := s.repo.ListBlueprints(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pricing blueprints")
	}
	out := make([]BlueprintDTO, 0, len(rows))
	for i := range rows {
		out = append(out, blueprintDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) UpsertVendorConfig(ctx context.Context, input VendorConfigInput) (*models.VendorPricingConfig, error) {
	if input.VendorID == uuid.Nil || input.BlueprintID == uuid.Nil {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "vendor_id and blueprint_id are required")
	}
	values := input.PricingValues
	if values == nil {
		values = map[string]models.VendorPriceValue{}
	}
	var (
		cfg      *models.VendorPricingConfig
		affected []uuid.UUID
	)
	err := s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		bp, err := repo.FindBlueprint(ctx, input.BlueprintID)
		if err != nil {
			return err
		}
		if err := ValidateVendorValues(bp, values); err != nil {
			return err
		}
		row := &models.VendorPricingConfig{
			VendorID:      input.VendorID,
			BlueprintID:   input.BlueprintID,
			PricingValues: values,
		}
		if err := repo.UpsertVendorConfig(ctx, row); err != nil {
			return err
		}
		stored, err := repo.FindVendorConfig(ctx, input.VendorID, input.BlueprintID)
		if err != nil {
			return err
		}
		vendorID := input.VendorID
		products, err := repo.ListAssignedProducts(ctx, input.BlueprintID, &vendorID)
		if err != nil {
			return err
		}
		if err := s.emitChanged(ctx, tx, input.BlueprintID, &vendorID, products); err != nil {
			return err
		}
		cfg = stored
		affected = products
		return nil
	})
	if err != nil {
		return nil, mapWriteError(err, "upsert vendor pricing config")
	}
	s.invalidate(ctx, affected)
	return cfg, nil
}

// AssignProduct deactivates the product's current assignment and attaches it
// to the requested blueprint.
func (s *service) AssignProduct(ctx context.Context, input AssignInput) (*models.ProductPricingAssignment, error) {
	if input.ProductID == uuid.Nil || input.VendorID == uuid.Nil || input.BlueprintID == uuid.Nil {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "product_id, vendor_id and blueprint_id are required")
	}
	var assignment *models.ProductPricingAssignment
	err := s.tx.WithRetryTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		bp, err := repo.FindBlueprint(ctx, input.BlueprintID)
		if err != nil {
			return err
		}
		if !bp.IsActive {
			return invalidTierData("blueprint %s is inactive", bp.ID)
		}
		if !bp.AppliesTo(input.ProductCategory) {
			return invalidTierData("blueprint %s does not apply to category %q", bp.ID, input.ProductCategory)
		}
		if err := ValidateOverrides(bp, input.PriceOverrides); err != nil {
			return err
		}
		if err := repo.DeactivateAssignments(ctx, input.ProductID); err != nil {
			return err
		}
		row := &models.ProductPricingAssignment{
			ProductID:       input.ProductID,
			VendorID:        input.VendorID,
			BlueprintID:     input.BlueprintID,
			ProductCategory: input.ProductCategory,
			PriceOverrides:  input.PriceOverrides,
			IsActive:        true,
			CreatedAt:       time.Now().UTC(),
			UpdatedAt:       time.Now().UTC(),
		}
		if err := repo.CreateAssignment(ctx, row); err != nil {
			return err
		}
		vendorID := input.VendorID
		if err := s.emitChanged(ctx, tx, input.BlueprintID, &vendorID, []uuid.UUID{input.ProductID}); err != nil {
			return err
		}
		assignment = row
		return nil
	})
	if err != nil {
		return nil, mapWriteError(err, "assign pricing blueprint")
	}
	s.invalidate(ctx, []uuid.UUID{input.ProductID})
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id":   input.ProductID.String(),
			"blueprint_id": input.BlueprintID.String(),
		})
		s.logg.Info(logCtx, "pricing blueprint assigned")
	}
	return assignment, nil
}

func (s *service) emitChanged(ctx context.Context, tx *gorm.DB, blueprintID uuid.UUID, vendorID *uuid.UUID, products []uuid.UUID) error {
	if products == nil {
		products = []uuid.UUID{}
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPricingTiersChanged,
		AggregateType: enums.AggregatePricingAssignment,
		AggregateID:   blueprintID,
		Version:       1,
		Data: payloads.PricingTiersChangedEvent{
			ProductIDs:  products,
			BlueprintID: blueprintID,
			VendorID:    vendorID,
		},
	})
}

func blueprintFromInput(input BlueprintInput) (*models.PricingTierBlueprint, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "name is required")
	}
	if err := ValidateBreaks(input.PriceBreaks); err != nil {
		return nil, err
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	now := time.Now().UTC()
	return &models.PricingTierBlueprint{
		Name:                   name,
		PriceBreaks:            input.PriceBreaks,
		ApplicableToCategories: input.ApplicableToCategories,
		IsDefault:              input.IsDefault,
		IsActive:               active,
		CreatedAt:              now,
		UpdatedAt:              now,
	}, nil
}

func mapWriteError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Reject(pkgerrors.CodeNotFound, pkgerrors.ReasonBlueprintNotFound, "pricing blueprint not found")
	}
	var typed *pkgerrors.Error
	if errors.As(err, &typed) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
