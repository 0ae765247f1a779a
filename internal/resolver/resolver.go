package resolver

import (
	"context"
	"fmt"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/stripe-notion-sync/internal/domain/errors"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/registry"
	pkgerrors "github.com/wekeepgrowing/stripe-notion-sync/pkg/errors"
	"go.uber.org/zap"
)

// MappingLookup reads the tenant's mapping cache.
type MappingLookup interface {
	// Lookup returns nil, nil on a cache miss.
	Lookup(ctx context.Context, t entity.EntityType, sourceID string) (*entity.EntityMapping, error)
}

// Upserter synchronizes a dependency that is missing from the cache and
// returns its destination ID. An empty ID with a nil error means the type is
// not synchronized for this tenant.
type Upserter interface {
	UpsertDependency(ctx context.Context, t entity.EntityType, sourceID string, visited *Visited) (string, error)
}

type outcome struct {
	destinationID string
	err           error
}

// Visited is the set of dependencies already processed during one top-level
// sync call, keyed "type:id".
type Visited struct {
	seen map[string]outcome
}

func NewVisited() *Visited {
	return &Visited{seen: make(map[string]outcome)}
}

func (v *Visited) get(key string) (outcome, bool) {
	o, ok := v.seen[key]
	return o, ok
}

func (v *Visited) put(key string, o outcome) {
	v.seen[key] = o
}

// Len is the number of distinct dependencies processed.
func (v *Visited) Len() int {
	return len(v.seen)
}

// Resolver translates the references of a record into destination IDs.
type Resolver struct {
	registry *registry.Registry
	cache    MappingLookup
	upserter Upserter
	logger   *zap.Logger
}

// New creates a resolver. The upserter is wired with SetUpserter once the
// component that implements it has been built.
func New(reg *registry.Registry, cache MappingLookup, logger *zap.Logger) *Resolver {
	return &Resolver{
		registry: reg,
		cache:    cache,
		logger:   logger,
	}
}

func (r *Resolver) SetUpserter(u Upserter) {
	r.upserter = u
}

// Resolve resolves every declared dependency of rec in topological order.
// Overrides replace the resolution of the named dependencies. A missing or
// failing required dependency returns a DependencyResolutionError; failing
// optional ones resolve to null and are recorded on the returned set.
func (r *Resolver) Resolve(ctx context.Context, rec *entity.Record, visited *Visited, overrides map[entity.EntityType]string) (*entity.ResolvedDependencySet, error) {
	def, err := r.registry.Lookup(rec.Type)
	if err != nil {
		return nil, err
	}
	if visited == nil {
		visited = NewVisited()
	}

	order, err := r.orderedDependencies(def)
	if err != nil {
		return nil, err
	}

	set := entity.NewResolvedDependencySet()
	for _, dep := range order {
		if id, ok := overrides[dep.Target]; ok {
			set.Set(dep.Target, id)
			continue
		}

		sourceID := dep.ExtractID(rec)
		if sourceID == "" {
			set.SetNull(dep.Target)
			if dep.Required {
				return set, domainErrors.NewMissingDependencyError(rec.Type, rec.ID, dep.Target)
			}
			continue
		}

		destinationID, err := r.resolveOne(ctx, dep.Target, sourceID, visited)
		if err != nil {
			resErr := &domainErrors.DependencyResolutionError{
				EntityType:   rec.Type,
				SourceID:     rec.ID,
				Dependency:   dep.Target,
				DependencyID: sourceID,
				Cause:        err,
			}
			set.SetNull(dep.Target)
			if dep.Required {
				return set, resErr
			}
			pkgerrors.LogWarn(r.logger, err, "Optional dependency resolved to null",
				zap.String("entity_type", string(rec.Type)),
				zap.String("source_id", rec.ID),
				zap.String("dependency", string(dep.Target)),
				zap.String("dependency_id", sourceID))
			set.AddError(resErr)
			continue
		}

		if destinationID == "" {
			set.SetNull(dep.Target)
			continue
		}
		set.Set(dep.Target, destinationID)
	}

	return set, nil
}

// orderedDependencies sorts the direct dependencies of def by the
// topological order of their types.
func (r *Resolver) orderedDependencies(def *registry.Definition) ([]registry.Dependency, error) {
	plan, err := r.registry.Plan(def.Type)
	if err != nil {
		return nil, err
	}
	out := make([]registry.Dependency, 0, len(def.Dependencies))
	for _, t := range plan {
		if dep, ok := def.Dependency(t); ok {
			out = append(out, dep)
		}
	}
	return out, nil
}

func (r *Resolver) resolveOne(ctx context.Context, t entity.EntityType, sourceID string, visited *Visited) (string, error) {
	key := entity.MappingKey(t, sourceID)
	if o, ok := visited.get(key); ok {
		return o.destinationID, o.err
	}

	mapping, err := r.cache.Lookup(ctx, t, sourceID)
	if err != nil {
		return "", fmt.Errorf("lookup mapping %s: %w", key, err)
	}
	if mapping != nil {
		visited.put(key, outcome{destinationID: mapping.DestinationID})
		return mapping.DestinationID, nil
	}

	if r.upserter == nil {
		return "", &domainErrors.ConfigurationError{Reason: "resolver has no upserter wired", EntityType: t}
	}

	destinationID, err := r.upserter.UpsertDependency(ctx, t, sourceID, visited)
	visited.put(key, outcome{destinationID: destinationID, err: err})
	return destinationID, err
}
