package database

import (
	"github.com/wekeepgrowing/stripe-notion-sync/internal/adapter/repository"
	domainRepo "github.com/wekeepgrowing/stripe-notion-sync/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	Mapping   domainRepo.MappingRepository
	Backfill  domainRepo.BackfillRepository
	SyncError domainRepo.SyncErrorRepository
	Webhook   repository.WebhookRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Mapping:   repository.NewMappingRepository(db, logger),
		Backfill:  repository.NewBackfillRepository(db, logger),
		SyncError: repository.NewSyncErrorRepository(db),
		Webhook:   repository.NewWebhookRepository(db, logger),
	}
}
