package migrate

import (
	"context"
	"fmt"

	"github.com/acaifrutal/storefront-backend/pkg/config"
	"github.com/acaifrutal/storefront-backend/pkg/db"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
)

// ShouldAutoRun reports whether startup applies migrations: dev with the flag
// on, or any SQLite database, which is always local and owned by the process.
func ShouldAutoRun(cfg *config.Config, client *db.Client) bool {
	if !cfg.FeatureFlags.AutoMigrate {
		return false
	}
	return cfg.App.IsDev() || (client != nil && client.IsSQLite())
}

// MaybeRunDev applies the embedded migrations when ShouldAutoRun allows it.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client == nil || !ShouldAutoRun(cfg, client) {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	dialect := DialectPostgres
	if client.IsSQLite() {
		dialect = DialectSQLite
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": dialect})
	logg.Info(ctx, "running embedded migrations")

	if err := Run(ctx, sqlDB, dialect, Embedded(), "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	version, err := CurrentVersion(ctx, sqlDB, dialect)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "version", version), "migrations completed")
	return nil
}
