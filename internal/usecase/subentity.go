package usecase

import (
	"context"
	"fmt"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/registry"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/resolver"
	pkgerrors "github.com/wekeepgrowing/stripe-notion-sync/pkg/errors"
	"go.uber.org/zap"
)

// ChildStats counts the embedded records processed after a parent write.
type ChildStats struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// embedded extracts the child records of one declared child from the parent
// payload. Children without an ID get one derived from the parent.
func embedded(parent *entity.Record, child registry.Child) []*entity.Record {
	var objects []map[string]interface{}
	if child.Single {
		if obj := parent.Object(child.Path); obj != nil {
			objects = append(objects, obj)
		}
	} else {
		objects = parent.Objects(child.Path)
	}

	records := make([]*entity.Record, 0, len(objects))
	for i, obj := range objects {
		data := make(map[string]interface{}, len(obj)+1)
		for k, v := range obj {
			data[k] = v
		}
		if child.ParentField != "" && data[child.ParentField] == nil {
			data[child.ParentField] = parent.ID
		}
		if id, _ := data["id"].(string); id == "" {
			if child.Single {
				data["id"] = fmt.Sprintf("%s_%s", parent.ID, child.Type)
			} else {
				data["id"] = fmt.Sprintf("%s_%s_%d", parent.ID, child.Type, i)
			}
		}
		records = append(records, entity.NewRecord(child.Type, data))
	}
	return records
}

// processChildren writes every embedded child of a committed parent with the
// parent's destination ID injected for the parent relation. A failing child
// is logged and counted and never affects the parent.
func (rt *tenantRuntime) processChildren(ctx context.Context, def *registry.Definition, parent *entity.Record, parentDestinationID string, visited *resolver.Visited, force bool) ChildStats {
	var stats ChildStats
	overrides := map[entity.EntityType]string{def.Type: parentDestinationID}

	for _, child := range def.Children {
		if _, ok := rt.tenant.DatabaseFor(child.Type); !ok {
			continue
		}
		childDef, err := rt.registry.Lookup(child.Type)
		if err != nil {
			rt.logger.Error("Child type not registered", zap.String("entity_type", string(child.Type)), zap.Error(err))
			continue
		}

		for _, rec := range embedded(parent, child) {
			out, err := rt.upsert(ctx, childDef, rec.ID, rec, visited, overrides, force)
			if err != nil {
				stats.Failed++
				pkgerrors.LogWarn(rt.logger, err, "Child entity sync failed",
					zap.String("parent_type", string(def.Type)),
					zap.String("parent_id", parent.ID),
					zap.String("entity_type", string(child.Type)),
					zap.String("source_id", rec.ID))
				continue
			}
			stats.Processed++
			rt.logger.Debug("Child entity synchronized",
				zap.String("parent_id", parent.ID),
				zap.String("entity_type", string(child.Type)),
				zap.String("source_id", rec.ID),
				zap.String("destination_id", out.result.Mapping.DestinationID))
		}
	}

	if stats.Failed > 0 {
		rt.logger.Warn("Some child entities failed",
			zap.String("entity_type", string(def.Type)),
			zap.String("source_id", parent.ID),
			zap.Int("processed", stats.Processed),
			zap.Int("failed", stats.Failed))
	}
	return stats
}
