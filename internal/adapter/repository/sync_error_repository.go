package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/model"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type syncErrorRepository struct {
	db *gorm.DB
}

// NewSyncErrorRepository creates a gorm backed sync error store
func NewSyncErrorRepository(db *gorm.DB) repository.SyncErrorRepository {
	return &syncErrorRepository{db: db}
}

func (r *syncErrorRepository) modelToEntity(m *model.SyncError) *entity.SyncError {
	return &entity.SyncError{
		TenantID:   m.TenantID,
		EntityType: entity.EntityType(m.EntityType),
		Kind:       entity.SyncErrorKind(m.Kind),
		Message:    m.Message,
		Count:      m.Count,
		UpdatedAt:  m.UpdatedAt,
	}
}

func (r *syncErrorRepository) Record(ctx context.Context, syncErr *entity.SyncError) error {
	row := &model.SyncError{
		TenantID:   syncErr.TenantID,
		EntityType: string(syncErr.EntityType),
		Kind:       string(syncErr.Kind),
		Message:    syncErr.Message,
		Count:      1,
		UpdatedAt:  syncErr.UpdatedAt,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "entity_type"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"kind":       row.Kind,
				"message":    row.Message,
				"updated_at": row.UpdatedAt,
				"count":      gorm.Expr("sync_errors.count + 1"),
			}),
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to record sync error: %w", err)
	}
	return nil
}

func (r *syncErrorRepository) Clear(ctx context.Context, tenantID string, t entity.EntityType) error {
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ?", tenantID, string(t)).
		Delete(&model.SyncError{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear sync error: %w", err)
	}
	return nil
}

func (r *syncErrorRepository) Get(ctx context.Context, tenantID string, t entity.EntityType) (*entity.SyncError, error) {
	var row model.SyncError
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ?", tenantID, string(t)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sync error: %w", err)
	}
	return r.modelToEntity(&row), nil
}

func (r *syncErrorRepository) List(ctx context.Context, tenantID string) ([]*entity.SyncError, error) {
	var rows []*model.SyncError
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("entity_type ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sync errors: %w", err)
	}

	out := make([]*entity.SyncError, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.modelToEntity(row))
	}
	return out, nil
}
