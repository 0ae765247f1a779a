package repository

import (
	"context"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
)

// BackfillRepository persists backfill status and per-type cursors.
type BackfillRepository interface {
	// Load returns the stored state, or a fresh pending state when none exists.
	Load(ctx context.Context, tenantID string) (*entity.BackfillState, error)
	// SaveProgress stores the status record and the cursor of t atomically.
	SaveProgress(ctx context.Context, state *entity.BackfillState, t entity.EntityType) error
	// SaveStatus stores only the status record.
	SaveStatus(ctx context.Context, state *entity.BackfillState) error
	// Reset drops the status record and every cursor of the tenant.
	Reset(ctx context.Context, tenantID string) error
}
