package repository

import (
	"context"
	"time"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
)

// MappingRepository is the durable per-tenant mapping store. Only the tenant's
// coordinator writes to it.
type MappingRepository interface {
	// Get returns nil, nil when no mapping exists for the key.
	Get(ctx context.Context, tenantID string, t entity.EntityType, sourceID string) (*entity.EntityMapping, error)
	// Save inserts the mapping or updates the destination ID and UpdatedAt of the existing key.
	Save(ctx context.Context, mapping *entity.EntityMapping) error
	// Touch bumps UpdatedAt to at unless the stored value is already later.
	Touch(ctx context.Context, tenantID string, t entity.EntityType, sourceID string, at time.Time) error
	// List scans mappings of one type, or of every type when t is empty.
	List(ctx context.Context, tenantID string, t entity.EntityType, limit, offset int) ([]*entity.EntityMapping, error)
	Count(ctx context.Context, tenantID string, t entity.EntityType) (int64, error)
	// DeleteAll removes every mapping of the tenant.
	DeleteAll(ctx context.Context, tenantID string) (int64, error)
}
