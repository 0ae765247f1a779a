package repository

import (
	"context"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
)

// SyncErrorRepository stores the last failure per tenant and entity type. An
// empty entity type addresses the tenant-wide auth flag.
type SyncErrorRepository interface {
	// Record upserts the error and increments its count.
	Record(ctx context.Context, syncErr *entity.SyncError) error
	Clear(ctx context.Context, tenantID string, t entity.EntityType) error
	// Get returns nil, nil when no error is recorded.
	Get(ctx context.Context, tenantID string, t entity.EntityType) (*entity.SyncError, error)
	List(ctx context.Context, tenantID string) ([]*entity.SyncError, error)
}
