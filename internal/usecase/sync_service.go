package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/config"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/coordinator"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/stripe-notion-sync/internal/domain/errors"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/provider"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/repository"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/registry"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/resolver"
	pkgerrors "github.com/wekeepgrowing/stripe-notion-sync/pkg/errors"
	"github.com/wekeepgrowing/stripe-notion-sync/pkg/logger"
	"go.uber.org/zap"
)

// ProviderFactory builds the source and destination clients of a tenant.
type ProviderFactory interface {
	Source(tenant *config.Tenant) (provider.Source, error)
	Destination(tenant *config.Tenant) (provider.Destination, error)
}

// Publisher delivers sync events. pkg/messaging.RedisClient satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// SyncEvent is published after a parent entity has been written.
type SyncEvent struct {
	TenantID      string            `json:"tenant_id"`
	EntityType    entity.EntityType `json:"entity_type"`
	SourceID      string            `json:"source_id"`
	DestinationID string            `json:"destination_id"`
	SyncedAt      time.Time         `json:"synced_at"`
}

// EventChannel is the pub/sub channel of a tenant's sync events.
func EventChannel(tenantID string) string {
	return "sync:events:" + tenantID
}

// SyncResult describes one top-level sync.
type SyncResult struct {
	EntityType    entity.EntityType `json:"entity_type"`
	SourceID      string            `json:"source_id"`
	DestinationID string            `json:"destination_id,omitempty"`
	// Written is false when the cached mapping was returned.
	Written bool `json:"written"`
	// Skipped is true when the tenant has no database for the type.
	Skipped          bool       `json:"skipped,omitempty"`
	Children         ChildStats `json:"children"`
	DependencyErrors []string   `json:"dependency_errors,omitempty"`
}

// SyncOption configures a SyncService.
type SyncOption func(*SyncService)

// WithPublisher publishes a SyncEvent per written parent entity.
func WithPublisher(p Publisher) SyncOption {
	return func(s *SyncService) {
		s.publisher = p
	}
}

// SyncService runs the fetch, resolve, convert and upsert pipeline for any
// registered entity type.
type SyncService struct {
	registry     *registry.Registry
	tenants      *config.TenantSet
	providers    ProviderFactory
	coordinators *coordinator.Manager
	errors       repository.SyncErrorRepository
	publisher    Publisher
	logger       *zap.Logger

	mu       sync.Mutex
	runtimes map[string]*tenantRuntime
}

func NewSyncService(
	reg *registry.Registry,
	tenants *config.TenantSet,
	providers ProviderFactory,
	coordinators *coordinator.Manager,
	errorRepo repository.SyncErrorRepository,
	logger *zap.Logger,
	opts ...SyncOption,
) *SyncService {
	s := &SyncService{
		registry:     reg,
		tenants:      tenants,
		providers:    providers,
		coordinators: coordinators,
		errors:       errorRepo,
		logger:       logger,
		runtimes:     make(map[string]*tenantRuntime),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SyncService) Registry() *registry.Registry {
	return s.registry
}

// Coordinator returns the coordinator of a configured tenant.
func (s *SyncService) Coordinator(tenantID string) (*coordinator.Coordinator, error) {
	if _, err := s.tenants.Get(tenantID); err != nil {
		return nil, err
	}
	return s.coordinators.For(tenantID), nil
}

// runtime returns the tenant's wired components, building them on first use.
func (s *SyncService) runtime(tenantID string) (*tenantRuntime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rt, ok := s.runtimes[tenantID]; ok {
		return rt, nil
	}

	tenant, err := s.tenants.Get(tenantID)
	if err != nil {
		return nil, err
	}
	source, err := s.providers.Source(tenant)
	if err != nil {
		return nil, &domainErrors.ConfigurationError{Reason: "source unavailable", Cause: err}
	}
	dest, err := s.providers.Destination(tenant)
	if err != nil {
		return nil, &domainErrors.ConfigurationError{Reason: "destination unavailable", Cause: err}
	}

	coord := s.coordinators.For(tenantID)
	log := logger.ForTenant(s.logger, tenantID)
	rt := &tenantRuntime{
		tenant:   tenant,
		registry: s.registry,
		source:   source,
		dest:     dest,
		coord:    coord,
		resolver: resolver.New(s.registry, coord, log),
		logger:   log,
	}
	rt.resolver.SetUpserter(rt)
	s.runtimes[tenantID] = rt
	return rt, nil
}

// SyncEntity fetches one source record and writes it with its dependencies
// and embedded children. force rewrites a record that already has a mapping.
func (s *SyncService) SyncEntity(ctx context.Context, tenantID string, t entity.EntityType, sourceID string, force bool) (*SyncResult, error) {
	return s.sync(ctx, tenantID, t, sourceID, nil, force)
}

// SyncRecord writes an already retrieved record, such as a listed page entry
// or an object delivered inside an event.
func (s *SyncService) SyncRecord(ctx context.Context, tenantID string, rec *entity.Record, force bool) (*SyncResult, error) {
	return s.sync(ctx, tenantID, rec.Type, rec.ID, rec, force)
}

func (s *SyncService) sync(ctx context.Context, tenantID string, t entity.EntityType, sourceID string, rec *entity.Record, force bool) (*SyncResult, error) {
	def, err := s.registry.Lookup(t)
	if err != nil {
		return nil, err
	}
	rt, err := s.runtime(tenantID)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{EntityType: t, SourceID: sourceID}
	if _, ok := rt.tenant.DatabaseFor(t); !ok {
		rt.logger.Debug("No destination database configured, skipping",
			logger.EntityFields(string(t), sourceID)...)
		result.Skipped = true
		return result, nil
	}

	visited := resolver.NewVisited()
	out, err := rt.upsert(ctx, def, sourceID, rec, visited, nil, force)
	if err != nil {
		s.recordFailure(ctx, rt, t, sourceID, err)
		return nil, err
	}
	s.recordSuccess(ctx, rt, t)

	result.DestinationID = out.result.Mapping.DestinationID
	result.Written = out.result.Written
	if out.deps != nil {
		for _, depErr := range out.deps.Errors {
			result.DependencyErrors = append(result.DependencyErrors, depErr.Error())
		}
	}

	rt.logger.Info("Entity synchronized",
		zap.String("entity_type", string(t)),
		zap.String("source_id", sourceID),
		zap.String("destination_id", result.DestinationID),
		zap.Bool("written", result.Written),
		zap.Int("dependencies", visited.Len()))

	if result.Written && out.ran {
		s.publish(ctx, &SyncEvent{
			TenantID:      tenantID,
			EntityType:    t,
			SourceID:      sourceID,
			DestinationID: result.DestinationID,
			SyncedAt:      out.result.Mapping.UpdatedAt,
		})
	}

	// only the caller that ran the write holds the record; joined callers leave
	// the children to it
	if out.record != nil {
		result.Children = rt.processChildren(ctx, def, out.record, result.DestinationID, visited, force)
	}
	return result, nil
}

// recordSuccess clears the type's error flag and the tenant-wide auth flag.
func (s *SyncService) recordSuccess(ctx context.Context, rt *tenantRuntime, t entity.EntityType) {
	for _, et := range []entity.EntityType{t, ""} {
		if err := s.errors.Clear(ctx, rt.tenant.ID, et); err != nil {
			rt.logger.Warn("Failed to clear sync error",
				zap.String("entity_type", string(et)),
				zap.Error(err))
		}
	}
}

// recordFailure classifies err and stores it. An auth failure sets the
// tenant-wide flag, which suppresses per-type records until a success.
func (s *SyncService) recordFailure(ctx context.Context, rt *tenantRuntime, t entity.EntityType, sourceID string, err error) {
	kind := domainErrors.Classify(err)
	pkgerrors.LogError(rt.logger, err, "Entity sync failed",
		zap.String("entity_type", string(t)),
		zap.String("source_id", sourceID),
		zap.String("kind", string(kind)))

	if errors.Is(err, context.Canceled) {
		return
	}

	syncErr := &entity.SyncError{
		TenantID:   rt.tenant.ID,
		EntityType: t,
		Kind:       kind,
		Message:    err.Error(),
	}
	if kind == entity.SyncErrorUpstreamAuth {
		syncErr.EntityType = ""
	} else {
		flag, getErr := s.errors.Get(ctx, rt.tenant.ID, "")
		if getErr != nil {
			rt.logger.Warn("Failed to read auth flag", zap.Error(getErr))
		}
		if flag != nil {
			rt.logger.Debug("Auth flag set, not recording per-type error",
				zap.String("entity_type", string(t)))
			return
		}
	}

	if recErr := s.errors.Record(ctx, syncErr); recErr != nil {
		rt.logger.Warn("Failed to record sync error",
			zap.String("entity_type", string(t)),
			zap.Error(recErr))
	}
}

func (s *SyncService) publish(ctx context.Context, event *SyncEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, EventChannel(event.TenantID), event); err != nil {
		s.logger.Warn("Failed to publish sync event",
			zap.String("tenant_id", event.TenantID),
			zap.String("entity_type", string(event.EntityType)),
			zap.String("source_id", event.SourceID),
			zap.Error(err))
	}
}

// SyncErrors lists the recorded failures of a tenant.
func (s *SyncService) SyncErrors(ctx context.Context, tenantID string) ([]*entity.SyncError, error) {
	if _, err := s.tenants.Get(tenantID); err != nil {
		return nil, err
	}
	return s.errors.List(ctx, tenantID)
}

// tenantRuntime holds the components one tenant's syncs run through. It is the
// resolver's upserter for dependencies missing from the mapping cache.
type tenantRuntime struct {
	tenant   *config.Tenant
	registry *registry.Registry
	source   provider.Source
	dest     provider.Destination
	coord    *coordinator.Coordinator
	resolver *resolver.Resolver
	logger   *zap.Logger
}

type upsertOutcome struct {
	result *coordinator.UpsertResult
	// ran is true when this caller executed the write rather than joining
	// another caller's or hitting the cache.
	ran    bool
	record *entity.Record
	deps   *entity.ResolvedDependencySet
}

// upsert runs the coordinated write of one record. rec may be nil, in which
// case the record is fetched once the coordinator decides a write is needed.
func (rt *tenantRuntime) upsert(ctx context.Context, def *registry.Definition, sourceID string, rec *entity.Record, visited *resolver.Visited, overrides map[entity.EntityType]string, force bool) (*upsertOutcome, error) {
	databaseID, _ := rt.tenant.DatabaseFor(def.Type)
	out := &upsertOutcome{}

	op := func(ctx context.Context) (string, error) {
		out.ran = true
		current := rec
		if current == nil {
			fetched, err := def.Fetch(ctx, rt.source, sourceID)
			if err != nil {
				return "", err
			}
			current = fetched
		}
		out.record = current

		deps, err := rt.resolver.Resolve(ctx, current, visited, overrides)
		if err != nil {
			return "", err
		}
		out.deps = deps

		return rt.write(ctx, def, databaseID, sourceID, def.Convert(current, deps))
	}

	res, err := rt.coord.CoordinatedUpsert(ctx, def.Type, sourceID, op, force)
	if err != nil {
		return nil, err
	}
	out.result = res
	if !res.Written && rec != nil {
		// a cache hit on a supplied record still carries its children
		out.record = rec
	}
	return out, nil
}

// write updates the destination record holding the natural key, or creates one.
func (rt *tenantRuntime) write(ctx context.Context, def *registry.Definition, databaseID, sourceID string, props entity.Properties) (string, error) {
	key := def.NaturalKey
	if key == "" {
		key = registry.NaturalKey
	}

	existing, err := rt.dest.FindByNaturalKey(ctx, databaseID, key, sourceID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		updated, err := rt.dest.Update(ctx, existing.ID, props, provider.WriteMerge)
		if err != nil {
			return "", err
		}
		return updated.ID, nil
	}

	created, err := rt.dest.Create(ctx, databaseID, props)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// UpsertDependency implements resolver.Upserter. Dependencies are written
// without their embedded children.
func (rt *tenantRuntime) UpsertDependency(ctx context.Context, t entity.EntityType, sourceID string, visited *resolver.Visited) (string, error) {
	if _, ok := rt.tenant.DatabaseFor(t); !ok {
		return "", nil
	}
	def, err := rt.registry.Lookup(t)
	if err != nil {
		return "", err
	}

	out, err := rt.upsert(ctx, def, sourceID, nil, visited, nil, false)
	if err != nil {
		return "", err
	}
	rt.logger.Debug("Dependency synchronized",
		zap.String("entity_type", string(t)),
		zap.String("source_id", sourceID),
		zap.String("destination_id", out.result.Mapping.DestinationID),
		zap.Bool("written", out.result.Written))
	return out.result.Mapping.DestinationID, nil
}
