package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/stockroom-backend/api/controllers"
	inventorycontrollers "github.com/angelmondragon/stockroom-backend/api/controllers/inventory"
	"github.com/angelmondragon/stockroom-backend/api/controllers/outboxadmin"
	poscontrollers "github.com/angelmondragon/stockroom-backend/api/controllers/pos"
	pricingcontrollers "github.com/angelmondragon/stockroom-backend/api/controllers/pricing"
	pocontrollers "github.com/angelmondragon/stockroom-backend/api/controllers/purchaseorders"
	reconciliationcontrollers "github.com/angelmondragon/stockroom-backend/api/controllers/reconciliation"
	"github.com/angelmondragon/stockroom-backend/api/middleware"
	"github.com/angelmondragon/stockroom-backend/internal/inventory"
	"github.com/angelmondragon/stockroom-backend/internal/pos"
	"github.com/angelmondragon/stockroom-backend/internal/pricing"
	"github.com/angelmondragon/stockroom-backend/internal/purchaseorders"
	"github.com/angelmondragon/stockroom-backend/internal/receiving"
	"github.com/angelmondragon/stockroom-backend/internal/reconciliation"
	"github.com/angelmondragon/stockroom-backend/internal/sessions"
	"github.com/angelmondragon/stockroom-backend/pkg/config"
	"github.com/angelmondragon/stockroom-backend/pkg/db"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/stockroom-backend/pkg/redis"
)

// Cache is the Redis surface the HTTP layer needs: idempotency replay,
// write rate limiting and the readiness probe.
type Cache interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Ping(ctx context.Context) error
}

// Services bundles the domain services mounted under /api/v1.
type Services struct {
	PurchaseOrders purchaseorders.Service
	Receiving      receiving.Service
	Inventory      inventory.Service
	Pricing        pricing.Service
	Sessions       sessions.Service
	POS            pos.Service
	Reconciliation reconciliation.Service
	// DeadLetters is optional; the DLQ admin routes are skipped when nil.
	DeadLetters outboxadmin.DeadLetterService
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	cache Cache,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	writePolicy := middleware.NewRateLimitPolicy("writes", cfg.RateLimit.Window, cfg.RateLimit.WriteLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cache))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.VendorScope(logg))
		r.Use(middleware.RateLimit(writePolicy, cache, false, logg))
		r.Use(middleware.Idempotency(cache, cfg.Idempotency.TTL, logg))

		r.Get("/me", controllers.Whoami(logg))

		r.Route("/purchase-orders", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin, enums.ActorRoleVendor))
			r.Post("/", pocontrollers.Create(svc.PurchaseOrders, logg))
			r.Get("/", pocontrollers.List(svc.PurchaseOrders, logg))
			r.Get("/{poId}", pocontrollers.Get(svc.PurchaseOrders, logg))
			r.Post("/{poId}/transition", pocontrollers.Transition(svc.PurchaseOrders, logg))
			r.Post("/{poId}/cancel", pocontrollers.Cancel(svc.PurchaseOrders, logg))
			r.Post("/{poId}/receipts", pocontrollers.Receive(svc.Receiving, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Route("/products/{productId}/locations/{locationId}", func(r chi.Router) {
				r.Get("/", inventorycontrollers.Record(svc.Inventory, logg))
				r.Get("/movements", inventorycontrollers.Movements(svc.Inventory, logg))
				r.With(middleware.RequireRole(logg, enums.ActorRoleAdmin, enums.ActorRoleVendor)).
					Put("/threshold", inventorycontrollers.SetThreshold(svc.Inventory, logg))
			})
			r.Get("/low-stock", inventorycontrollers.LowStock(svc.Inventory, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin, enums.ActorRoleVendor))
				r.Post("/adjustments", inventorycontrollers.Adjust(svc.Inventory, logg))
				r.Post("/transfers", inventorycontrollers.Transfer(svc.Inventory, logg))
			})
		})

		r.Route("/pricing", func(r chi.Router) {
			r.Post("/lookup", pricingcontrollers.Lookup(svc.Pricing, logg))
			r.Get("/products/{productId}/tiers", pricingcontrollers.ProductTiers(svc.Pricing, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin, enums.ActorRoleVendor))
				r.Put("/vendor-configs", pricingcontrollers.UpsertVendorConfig(svc.Pricing, logg))
				r.Post("/assignments", pricingcontrollers.AssignProduct(svc.Pricing, logg))
			})
		})

		r.Route("/pos", func(r chi.Router) {
			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", poscontrollers.OpenSession(svc.Sessions, logg))
				r.Get("/", poscontrollers.ListSessions(svc.Sessions, logg))
				r.Get("/{sessionId}", poscontrollers.GetSession(svc.Sessions, logg))
				r.Post("/{sessionId}/close", poscontrollers.CloseSession(svc.Sessions, logg))
				r.Post("/{sessionId}/counters", poscontrollers.IncrementCounter(svc.Sessions, logg))
				r.Post("/{sessionId}/sales", poscontrollers.RecordSale(svc.POS, logg))
			})
			r.Post("/refunds", poscontrollers.Refund(svc.POS, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
			r.Route("/pricing/blueprints", func(r chi.Router) {
				r.Post("/", pricingcontrollers.CreateBlueprint(svc.Pricing, logg))
				r.Get("/", pricingcontrollers.ListBlueprints(svc.Pricing, logg))
				r.Get("/{blueprintId}", pricingcontrollers.GetBlueprint(svc.Pricing, logg))
				r.Put("/{blueprintId}", pricingcontrollers.UpdateBlueprint(svc.Pricing, logg))
			})
			r.Route("/reconciliation/flags", func(r chi.Router) {
				r.Get("/", reconciliationcontrollers.ListFlags(svc.Reconciliation, logg))
				r.Post("/{flagId}/resolve", reconciliationcontrollers.ResolveFlag(svc.Reconciliation, logg))
			})
			if svc.DeadLetters != nil {
				r.Route("/outbox/dead-letters", func(r chi.Router) {
					r.Get("/", outboxadmin.ListDeadLetters(svc.DeadLetters, logg))
					r.Post("/{eventId}/requeue", outboxadmin.RequeueDeadLetter(svc.DeadLetters, logg))
				})
			}
		})
	})

	return r
}
