package migrate

import (
	"context"
	"fmt"

	"github.com/successplus/membership-backend/pkg/config"
	"github.com/successplus/membership-backend/pkg/db"
	"github.com/successplus/membership-backend/pkg/db/models"
	"github.com/successplus/membership-backend/pkg/logger"
)

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled. The SQL migrations target postgres; a sqlite dev database
// is brought up with gorm's AutoMigrate instead.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": DefaultDir, "driver": cfg.DB.Driver})

	if cfg.DB.IsSQLite() {
		logg.Info(ctx, "auto-migrating sqlite schema (dev auto-run)")
		if err := AutoMigrateModels(client); err != nil {
			return fmt.Errorf("auto-migrate sqlite: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info(ctx, "running Goose migrations (dev auto-run)")
	if err := Run(ctx, sqlDB, DialectFor(cfg.DB), DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}

// AutoMigrateModels creates the schema from the gorm models.
func AutoMigrateModels(client *db.Client) error {
	return client.DB().AutoMigrate(
		&models.Member{},
		&models.User{},
		&models.Subscription{},
		&models.ActivityLog{},
	)
}
