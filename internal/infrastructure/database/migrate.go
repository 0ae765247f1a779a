package database

import (
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every table owned by the service
func Models() []interface{} {
	return []interface{}{
		&model.EntityMapping{},
		&model.BackfillRun{},
		&model.BackfillProgress{},
		&model.SyncError{},
		&model.StripeWebhookEvent{},
	}
}

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running GORM auto-migrations...")
	if err := db.AutoMigrate(Models()...); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if db.Dialector.Name() == "postgres" {
		logger.Info("Creating custom indexes...")
		if err := createCustomIndexes(db); err != nil {
			logger.Error("Failed to create custom indexes", zap.Error(err))
			return err
		}
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomIndexes creates partial indexes that GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	// Retry worker scans only unfinished events
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_webhook_events_unprocessed ON stripe_webhook_events (created_at) WHERE status IN ('pending', 'failed')`).Error; err != nil {
		return err
	}

	return nil
}
