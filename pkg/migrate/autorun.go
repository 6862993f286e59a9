package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/stockroom-backend/pkg/config"
	"github.com/angelmondragon/stockroom-backend/pkg/db"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot in dev when the
// auto-migrate flag is set. Other environments run cmd/migrate explicitly.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	fsys, err := Source("")
	if err != nil {
		return err
	}
	runner, err := NewRunner(sqlDB, fsys)
	if err != nil {
		return err
	}

	applied, err := runner.Up(ctx)
	versions := make([]int64, 0, len(applied))
	for _, a := range applied {
		versions = append(versions, a.Version)
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "applied": versions})
	if err != nil {
		logg.Error(ctx, "migrate.autorun_failed", err)
		return err
	}
	logg.Info(ctx, "migrate.autorun_complete")
	return nil
}
