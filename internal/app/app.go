// Package app wires the sync engine from configuration. The server and the
// admin CLI share it.
package app

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/config"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/coordinator"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/infrastructure/database"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/infrastructure/provider"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/infrastructure/redis"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/registry"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/usecase"
	"github.com/wekeepgrowing/stripe-notion-sync/pkg/messaging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App is the container of the wired components.
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Repos    *database.Repositories
	Registry *registry.Registry
	Tenants  *config.TenantSet
	Sync     *usecase.SyncService
	Backfill *usecase.BackfillService
	Events   *usecase.EventService

	redis  *goredis.Client
	logger *zap.Logger
}

// New connects the database, runs migrations and builds the usecases. Redis
// is connected only when enabled.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	reg, err := registry.Default()
	if err != nil {
		return nil, fmt.Errorf("entity registry: %w", err)
	}

	tenants, err := config.LoadTenants(cfg.TenantsFile)
	if err != nil {
		return nil, err
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db, logger); err != nil {
		database.Close(db, logger)
		return nil, err
	}

	a := &App{
		Config:   cfg,
		DB:       db,
		Repos:    database.NewRepositories(db, logger),
		Registry: reg,
		Tenants:  tenants,
		logger:   logger,
	}

	var (
		coordOpts []coordinator.Option
		syncOpts  []usecase.SyncOption
	)
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(cfg.Redis, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		coordOpts = append(coordOpts, coordinator.WithLocker(redis.NewLocker(client, cfg.Redis.LockTTL, cfg.Redis.LockWait)))
		if cfg.Redis.PublishEvents {
			syncOpts = append(syncOpts, usecase.WithPublisher(messaging.FromClient(client)))
		}
	}

	a.wire(provider.NewFactory(cfg.Notion, nil, logger), coordOpts, syncOpts)
	return a, nil
}

func (a *App) wire(providers usecase.ProviderFactory, coordOpts []coordinator.Option, syncOpts []usecase.SyncOption) {
	cfg := a.Config
	coords := coordinator.NewManager(a.Repos.Mapping, a.logger, coordOpts...)

	a.Sync = usecase.NewSyncService(a.Registry, a.Tenants, providers, coords, a.Repos.SyncError, a.logger, syncOpts...)
	a.Backfill = usecase.NewBackfillService(a.Sync, a.Repos.Backfill, usecase.BackfillConfig{
		PageSize:     cfg.Backfill.PageSize,
		StepAttempts: cfg.Backfill.StepAttempts,
		StepInterval: cfg.Backfill.StepInterval,
		RetryBackoff: cfg.Backfill.RetryBackoff,
	}, a.logger)
	a.Events = usecase.NewEventService(a.Sync, a.Tenants, a.Repos.Webhook, cfg.Webhook.Tolerance, a.logger)
}

// Close releases Redis and the database.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("Failed to close Redis client", zap.Error(err))
		}
	}
	if err := database.Close(a.DB, a.logger); err != nil {
		a.logger.Error("Failed to close database connection", zap.Error(err))
	}
}
