package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/model"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type backfillRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewBackfillRepository creates a gorm backed backfill progress store
func NewBackfillRepository(db *gorm.DB, logger *zap.Logger) repository.BackfillRepository {
	return &backfillRepository{
		db:     db,
		logger: logger,
	}
}

func (r *backfillRepository) Load(ctx context.Context, tenantID string) (*entity.BackfillState, error) {
	state := &entity.BackfillState{TenantID: tenantID, Status: entity.BackfillPending}

	var run model.BackfillRun
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&run).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return state, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load backfill run: %w", err)
	}

	state.RunID = run.RunID
	state.Status = entity.BackfillStatus(run.Status)
	state.RecordsProcessed = run.RecordsProcessed
	state.CurrentEntity = entity.EntityType(run.CurrentEntity)
	state.StartedAt = run.StartedAt
	state.FinishedAt = run.FinishedAt

	var progress []model.BackfillProgress
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("id ASC").
		Find(&progress).Error; err != nil {
		return nil, fmt.Errorf("failed to load backfill cursors: %w", err)
	}
	for _, p := range progress {
		state.Cursors = append(state.Cursors, entity.BackfillCursor{
			EntityType: entity.EntityType(p.EntityType),
			Started:    p.Started,
			Completed:  p.Completed,
			Cursor:     p.Cursor,
			Processed:  p.Processed,
		})
	}
	return state, nil
}

func saveRun(tx *gorm.DB, state *entity.BackfillState, now time.Time) error {
	run := &model.BackfillRun{
		TenantID:         state.TenantID,
		RunID:            state.RunID,
		Status:           string(state.Status),
		RecordsProcessed: state.RecordsProcessed,
		CurrentEntity:    string(state.CurrentEntity),
		StartedAt:        state.StartedAt,
		FinishedAt:       state.FinishedAt,
		UpdatedAt:        now,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"run_id", "status", "records_processed", "current_entity", "started_at", "finished_at", "updated_at",
		}),
	}).Create(run).Error
}

func (r *backfillRepository) SaveStatus(ctx context.Context, state *entity.BackfillState) error {
	if err := saveRun(r.db.WithContext(ctx), state, time.Now()); err != nil {
		return fmt.Errorf("failed to save backfill status: %w", err)
	}
	return nil
}

func (r *backfillRepository) SaveProgress(ctx context.Context, state *entity.BackfillState, t entity.EntityType) error {
	cursor := *state.Cursor(t)
	now := time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveRun(tx, state, now); err != nil {
			return err
		}
		progress := &model.BackfillProgress{
			TenantID:   state.TenantID,
			EntityType: string(t),
			Started:    cursor.Started,
			Completed:  cursor.Completed,
			Cursor:     cursor.Cursor,
			Processed:  cursor.Processed,
			UpdatedAt:  now,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "entity_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"started", "completed", "cursor", "processed", "updated_at"}),
		}).Create(progress).Error
	})
	if err != nil {
		r.logger.Error("Failed to persist backfill progress",
			zap.String("tenant_id", state.TenantID),
			zap.String("entity_type", string(t)),
			zap.Error(err))
		return fmt.Errorf("failed to save backfill progress: %w", err)
	}
	return nil
}

func (r *backfillRepository) Reset(ctx context.Context, tenantID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ?", tenantID).Delete(&model.BackfillProgress{}).Error; err != nil {
			return fmt.Errorf("failed to reset backfill cursors: %w", err)
		}
		if err := tx.Where("tenant_id = ?", tenantID).Delete(&model.BackfillRun{}).Error; err != nil {
			return fmt.Errorf("failed to reset backfill run: %w", err)
		}
		return nil
	})
}
