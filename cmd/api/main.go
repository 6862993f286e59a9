package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/stockroom-backend/api/routes"
	"github.com/angelmondragon/stockroom-backend/internal/inventory"
	"github.com/angelmondragon/stockroom-backend/internal/pos"
	"github.com/angelmondragon/stockroom-backend/internal/pricing"
	"github.com/angelmondragon/stockroom-backend/internal/purchaseorders"
	"github.com/angelmondragon/stockroom-backend/internal/receiving"
	"github.com/angelmondragon/stockroom-backend/internal/reconciliation"
	"github.com/angelmondragon/stockroom-backend/internal/sessions"
	"github.com/angelmondragon/stockroom-backend/pkg/config"
	"github.com/angelmondragon/stockroom-backend/pkg/db"
	"github.com/angelmondragon/stockroom-backend/pkg/instance"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/metrics"
	"github.com/angelmondragon/stockroom-backend/pkg/migrate"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox"
	"github.com/angelmondragon/stockroom-backend/pkg/redis"
)

// shutdownTimeout lets in-flight receipts and sales commit before exit.
const shutdownTimeout = 20 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Instance:    instance.GetID(),
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	dbClient = dbClient.WithPolicy(db.PolicyFromConfig(cfg.Receiving))
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	// Stock writes rely on row locks and SERIALIZABLE retries; refuse to serve without them.
	if err := dbClient.VerifyCapabilities(context.Background()); err != nil {
		logg.Error(context.Background(), "database lacks required transaction capabilities", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	inventoryMetrics := metrics.NewInventoryMetrics(registry)
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg).
		WithDeadLetters(outbox.NewDLQRepository(dbClient.DB()))

	services, err := buildServices(cfg, logg, dbClient, redisClient, outboxSvc, inventoryMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, registry, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown incomplete", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	<-drained
	logg.Info(ctx, "api server drained")
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	outboxSvc *outbox.Service,
	inventoryMetrics *metrics.InventoryMetrics,
) (routes.Services, error) {
	var out routes.Services
	conn := dbClient.DB()

	inventoryRepo := inventory.NewRepository(conn)
	inventorySvc, err := inventory.NewService(inventoryRepo, dbClient, outboxSvc, inventoryMetrics, logg)
	if err != nil {
		return out, err
	}

	poRepo := purchaseorders.NewRepository(conn)
	poSvc, err := purchaseorders.NewService(poRepo, dbClient, outboxSvc, logg)
	if err != nil {
		return out, err
	}

	receivingSvc, err := receiving.NewService(poRepo, inventorySvc, dbClient, outboxSvc, inventoryMetrics, logg)
	if err != nil {
		return out, err
	}

	pricingSvc, err := pricing.NewService(pricing.NewRepository(conn), dbClient, outboxSvc, redisClient, inventoryMetrics, logg, pricing.Options{
		CacheTTL:       cfg.Pricing.CacheTTL(),
		MaxLookupBatch: cfg.Pricing.MaxLookupBatch,
	})
	if err != nil {
		return out, err
	}

	sessionsSvc, err := sessions.NewService(sessions.NewRepository(conn), dbClient, outboxSvc, inventoryMetrics, logg)
	if err != nil {
		return out, err
	}

	posSvc, err := pos.NewService(sessionsSvc, inventorySvc, dbClient, outboxSvc, inventoryMetrics, logg)
	if err != nil {
		return out, err
	}

	reconciliationSvc, err := reconciliation.NewService(reconciliation.ServiceParams{
		Inventory: inventoryRepo,
		Flags:     reconciliation.NewFlagRepository(conn),
		DB:        dbClient,
		Outbox:    outboxSvc,
		Metrics:   inventoryMetrics,
		Logger:    logg,
		BatchSize: cfg.Reconciliation.BatchSize,
	})
	if err != nil {
		return out, err
	}

	out = routes.Services{
		PurchaseOrders: poSvc,
		Receiving:      receivingSvc,
		Inventory:      inventorySvc,
		Pricing:        pricingSvc,
		Sessions:       sessionsSvc,
		POS:            posSvc,
		Reconciliation: reconciliationSvc,
		DeadLetters:    outboxSvc,
	}
	return out, nil
}
