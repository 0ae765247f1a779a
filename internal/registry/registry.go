package registry

import (
	"context"
	"fmt"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/stripe-notion-sync/internal/domain/errors"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/provider"
)

// NaturalKey is the destination property holding the source ID of every
// synchronized record.
const NaturalKey = "ID"

// Dependency is a reference from a record to a record of another type.
type Dependency struct {
	Target entity.EntityType
	// ExtractID returns the referenced source ID, or "" when absent.
	ExtractID func(rec *entity.Record) string
	Required  bool
}

// ConvertFunc turns a record and its resolved dependencies into destination
// properties.
type ConvertFunc func(rec *entity.Record, deps *entity.ResolvedDependencySet) entity.Properties

// Child describes records embedded in a parent payload.
type Child struct {
	Type entity.EntityType
	// Path locates the embedded object ("discount") or array ("lines.data").
	Path   string
	Single bool
	// ParentField receives the parent's source ID when the embedded payload
	// lacks it.
	ParentField string
}

// Definition declares how one entity type is fetched, resolved and converted.
type Definition struct {
	Type         entity.EntityType
	Dependencies []Dependency
	// Fetchable is false for types that only exist embedded in a parent.
	Fetchable  bool
	Listable   bool
	Expand     []string
	NaturalKey string
	Convert    ConvertFunc
	Children   []Child
}

// Fetch retrieves one expanded record of this type.
func (d *Definition) Fetch(ctx context.Context, src provider.Source, id string) (*entity.Record, error) {
	if !d.Fetchable {
		return nil, fmt.Errorf("%s %s: %w", d.Type, id, domainErrors.ErrNotFetchable)
	}
	return src.Fetch(ctx, d.Type, id, d.Expand)
}

// Dependency returns the declared dependency on target, if any.
func (d *Definition) Dependency(target entity.EntityType) (Dependency, bool) {
	for _, dep := range d.Dependencies {
		if dep.Target == target {
			return dep, true
		}
	}
	return Dependency{}, false
}

// Registry is the closed, validated set of entity definitions. It is
// immutable after New returns.
type Registry struct {
	defs  map[entity.EntityType]*Definition
	order []entity.EntityType
}

// New validates the definitions and builds a registry. Declaration order is
// the order of defs.
func New(defs []*Definition) (*Registry, error) {
	r := &Registry{defs: make(map[entity.EntityType]*Definition, len(defs))}
	for _, def := range defs {
		if !def.Type.Valid() {
			return nil, domainErrors.NewUnknownEntityTypeError(def.Type)
		}
		if _, dup := r.defs[def.Type]; dup {
			return nil, &domainErrors.ConfigurationError{Reason: "entity type declared twice", EntityType: def.Type}
		}
		if def.Convert == nil {
			return nil, &domainErrors.ConfigurationError{Reason: "entity type has no converter", EntityType: def.Type}
		}
		if def.Listable && !def.Fetchable {
			return nil, &domainErrors.ConfigurationError{Reason: "listable entity type must be fetchable", EntityType: def.Type}
		}
		r.defs[def.Type] = def
		r.order = append(r.order, def.Type)
	}

	for _, def := range defs {
		for _, dep := range def.Dependencies {
			if _, ok := r.defs[dep.Target]; !ok {
				return nil, &domainErrors.ConfigurationError{
					Reason:     fmt.Sprintf("dependency %s is not registered", dep.Target),
					EntityType: def.Type,
					Cause:      domainErrors.ErrUnknownEntityType,
				}
			}
			if dep.ExtractID == nil {
				return nil, &domainErrors.ConfigurationError{
					Reason:     fmt.Sprintf("dependency %s has no extractor", dep.Target),
					EntityType: def.Type,
				}
			}
		}
		for _, child := range def.Children {
			if _, ok := r.defs[child.Type]; !ok {
				return nil, &domainErrors.ConfigurationError{
					Reason:     fmt.Sprintf("child %s is not registered", child.Type),
					EntityType: def.Type,
					Cause:      domainErrors.ErrUnknownEntityType,
				}
			}
		}
	}

	if _, err := r.TopoSort(); err != nil {
		return nil, err
	}
	return r, nil
}

// Lookup returns the definition of t. An undeclared type is a configuration error.
func (r *Registry) Lookup(t entity.EntityType) (*Definition, error) {
	def, ok := r.defs[t]
	if !ok {
		return nil, domainErrors.NewUnknownEntityTypeError(t)
	}
	return def, nil
}

// Types returns every registered type in declaration order.
func (r *Registry) Types() []entity.EntityType {
	out := make([]entity.EntityType, len(r.order))
	copy(out, r.order)
	return out
}

// Listable returns the listable types in declaration order.
func (r *Registry) Listable() []entity.EntityType {
	var out []entity.EntityType
	for _, t := range r.order {
		if r.defs[t].Listable {
			out = append(out, t)
		}
	}
	return out
}

// CheckComplete compares the declared listable set against the registry. Every
// declared type needs a listable definition and nothing else may be listable.
func (r *Registry) CheckComplete(listable []entity.EntityType) error {
	declared := make(map[entity.EntityType]bool, len(listable))
	for _, t := range listable {
		declared[t] = true
		def, ok := r.defs[t]
		if !ok {
			return &domainErrors.ConfigurationError{
				Reason:     "listable entity type has no definition",
				EntityType: t,
				Cause:      domainErrors.ErrUnknownEntityType,
			}
		}
		if !def.Listable {
			return &domainErrors.ConfigurationError{Reason: "declared listable but definition is not", EntityType: t}
		}
	}
	for _, t := range r.order {
		if r.defs[t].Listable && !declared[t] {
			return &domainErrors.ConfigurationError{Reason: "definition is listable but not declared listable", EntityType: t}
		}
	}
	return nil
}

// TopoSort orders types so dependencies come strictly before dependents. With
// no start types it covers the whole registry. Siblings keep declaration order.
func (r *Registry) TopoSort(start ...entity.EntityType) ([]entity.EntityType, error) {
	if len(start) == 0 {
		start = r.order
	}
	for _, t := range start {
		if _, ok := r.defs[t]; !ok {
			return nil, domainErrors.NewUnknownEntityTypeError(t)
		}
	}
	return topoSort(start, r.dependencyTargets)
}

// Plan lists the types that must be upserted before a record of type t, in
// execution order. t itself is excluded.
func (r *Registry) Plan(t entity.EntityType) ([]entity.EntityType, error) {
	order, err := r.TopoSort(t)
	if err != nil {
		return nil, err
	}
	return order[:len(order)-1], nil
}

func (r *Registry) dependencyTargets(t entity.EntityType) []entity.EntityType {
	def := r.defs[t]
	out := make([]entity.EntityType, 0, len(def.Dependencies))
	for _, dep := range def.Dependencies {
		out = append(out, dep.Target)
	}
	return out
}
