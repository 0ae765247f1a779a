package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/repository"
	"github.com/wekeepgrowing/stripe-notion-sync/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Operation performs the destination write for one key and returns the
// destination ID.
type Operation func(ctx context.Context) (string, error)

// Locker serializes writers of the same key across processes.
type Locker interface {
	// Lock blocks until key is held and returns the release function.
	Lock(ctx context.Context, key string) (func(context.Context) error, error)
}

// UpsertResult is the outcome shared by every caller of one coordinated upsert.
type UpsertResult struct {
	Mapping *entity.EntityMapping
	// Written is true when the operation ran and its mapping was committed.
	Written bool
}

// Coordinator owns the mapping store of one tenant and runs at most one
// operation per key at a time. Construct through Manager.
type Coordinator struct {
	tenantID string
	store    repository.MappingRepository
	locker   Locker
	group    singleflight.Group
	now      func() time.Time
	logger   *zap.Logger
}

func (c *Coordinator) TenantID() string {
	return c.tenantID
}

// Lookup reads the mapping cache. It returns nil, nil on a miss.
func (c *Coordinator) Lookup(ctx context.Context, t entity.EntityType, sourceID string) (*entity.EntityMapping, error) {
	return c.store.Get(ctx, c.tenantID, t, sourceID)
}

// CoordinatedUpsert joins the in-flight operation of the key if there is one.
// Otherwise it returns the cached mapping unless force is set, or runs op and
// commits its result. Errors reach every waiter and nothing is persisted.
// op runs to completion even when ctx is cancelled.
//
// A forced call that joined a cache hit has seen no write, so it enters the
// slot again until a write it waited for or started itself commits.
func (c *Coordinator) CoordinatedUpsert(ctx context.Context, t entity.EntityType, sourceID string, op Operation, force bool) (*UpsertResult, error) {
	key := entity.MappingKey(t, sourceID)
	for {
		v, err, shared := c.group.Do(key, func() (interface{}, error) {
			return c.upsert(context.WithoutCancel(ctx), t, sourceID, op, force)
		})
		if err != nil {
			return nil, err
		}
		result := v.(*UpsertResult)
		if !shared {
			return result, nil
		}
		c.logger.Debug("Joined in-flight upsert",
			zap.String("key", key),
			zap.Bool("written", result.Written))
		if result.Written || !force {
			return result, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func (c *Coordinator) upsert(ctx context.Context, t entity.EntityType, sourceID string, op Operation, force bool) (*UpsertResult, error) {
	if c.locker != nil {
		unlock, err := c.locker.Lock(ctx, c.tenantID+":"+entity.MappingKey(t, sourceID))
		if err != nil {
			return nil, fmt.Errorf("acquire upsert lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				c.logger.Warn("Failed to release upsert lock",
					zap.String("key", entity.MappingKey(t, sourceID)),
					zap.Error(err))
			}
		}()
	}

	// read after the lock so a commit from another replica is visible
	existing, err := c.store.Get(ctx, c.tenantID, t, sourceID)
	if err != nil {
		return nil, err
	}

	if existing != nil && !force {
		c.touch(ctx, existing)
		return &UpsertResult{Mapping: existing}, nil
	}

	destinationID, err := op(ctx)
	if err != nil {
		return nil, err
	}

	now := c.now()
	mapping := &entity.EntityMapping{
		TenantID:      c.tenantID,
		EntityType:    t,
		SourceID:      sourceID,
		DestinationID: destinationID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if existing != nil {
		mapping.CreatedAt = existing.CreatedAt
		if existing.UpdatedAt.After(now) {
			mapping.UpdatedAt = existing.UpdatedAt
		}
	}

	if err := c.store.Save(ctx, mapping); err != nil {
		return nil, err
	}

	c.logger.Debug("Mapping committed",
		append(logger.EntityFields(string(t), sourceID), zap.String("destination_id", destinationID))...)
	return &UpsertResult{Mapping: mapping, Written: true}, nil
}

// touch bumps UpdatedAt of a cache hit. A failure only costs freshness.
func (c *Coordinator) touch(ctx context.Context, m *entity.EntityMapping) {
	at := c.now()
	if !at.After(m.UpdatedAt) {
		return
	}
	if err := c.store.Touch(ctx, c.tenantID, m.EntityType, m.SourceID, at); err != nil {
		c.logger.Warn("Failed to touch mapping",
			zap.String("key", entity.MappingKey(m.EntityType, m.SourceID)),
			zap.Error(err))
		return
	}
	m.UpdatedAt = at
}

// List scans the tenant's mappings of one type, or of every type when t is empty.
func (c *Coordinator) List(ctx context.Context, t entity.EntityType, limit, offset int) ([]*entity.EntityMapping, error) {
	return c.store.List(ctx, c.tenantID, t, limit, offset)
}

func (c *Coordinator) Count(ctx context.Context, t entity.EntityType) (int64, error) {
	return c.store.Count(ctx, c.tenantID, t)
}

// Reset deletes every mapping of the tenant.
func (c *Coordinator) Reset(ctx context.Context) (int64, error) {
	return c.store.DeleteAll(ctx, c.tenantID)
}
