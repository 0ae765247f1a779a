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

type mappingRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewMappingRepository creates a gorm backed mapping store
func NewMappingRepository(db *gorm.DB, logger *zap.Logger) repository.MappingRepository {
	return &mappingRepository{
		db:     db,
		logger: logger,
	}
}

// modelToEntity converts a model.EntityMapping to entity.EntityMapping
func (r *mappingRepository) modelToEntity(m *model.EntityMapping) *entity.EntityMapping {
	if m == nil {
		return nil
	}
	return &entity.EntityMapping{
		TenantID:      m.TenantID,
		EntityType:    entity.EntityType(m.EntityType),
		SourceID:      m.SourceID,
		DestinationID: m.DestinationID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func (r *mappingRepository) Get(ctx context.Context, tenantID string, t entity.EntityType, sourceID string) (*entity.EntityMapping, error) {
	var mapping model.EntityMapping
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND source_id = ?", tenantID, string(t), sourceID).
		First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get mapping %s: %w", entity.MappingKey(t, sourceID), err)
	}
	return r.modelToEntity(&mapping), nil
}

func (r *mappingRepository) Save(ctx context.Context, mapping *entity.EntityMapping) error {
	row := &model.EntityMapping{
		TenantID:      mapping.TenantID,
		EntityType:    string(mapping.EntityType),
		SourceID:      mapping.SourceID,
		DestinationID: mapping.DestinationID,
		CreatedAt:     mapping.CreatedAt,
		UpdatedAt:     mapping.UpdatedAt,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "entity_type"}, {Name: "source_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"destination_id", "updated_at"}),
		}).
		Create(row).Error
	if err != nil {
		r.logger.Error("Failed to save entity mapping",
			zap.String("tenant_id", mapping.TenantID),
			zap.String("key", entity.MappingKey(mapping.EntityType, mapping.SourceID)),
			zap.Error(err))
		return fmt.Errorf("failed to save mapping: %w", err)
	}
	return nil
}

func (r *mappingRepository) Touch(ctx context.Context, tenantID string, t entity.EntityType, sourceID string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.EntityMapping{}).
		Where("tenant_id = ? AND entity_type = ? AND source_id = ? AND updated_at < ?", tenantID, string(t), sourceID, at).
		Update("updated_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to touch mapping %s: %w", entity.MappingKey(t, sourceID), err)
	}
	return nil
}

func (r *mappingRepository) scope(tenantID string, t entity.EntityType) *gorm.DB {
	query := r.db.Model(&model.EntityMapping{}).Where("tenant_id = ?", tenantID)
	if t != "" {
		query = query.Where("entity_type = ?", string(t))
	}
	return query
}

func (r *mappingRepository) List(ctx context.Context, tenantID string, t entity.EntityType, limit, offset int) ([]*entity.EntityMapping, error) {
	var rows []*model.EntityMapping
	query := r.scope(tenantID, t).WithContext(ctx).Order("entity_type ASC, source_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}

	mappings := make([]*entity.EntityMapping, 0, len(rows))
	for _, row := range rows {
		mappings = append(mappings, r.modelToEntity(row))
	}
	return mappings, nil
}

func (r *mappingRepository) Count(ctx context.Context, tenantID string, t entity.EntityType) (int64, error) {
	var count int64
	if err := r.scope(tenantID, t).WithContext(ctx).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count mappings: %w", err)
	}
	return count, nil
}

func (r *mappingRepository) DeleteAll(ctx context.Context, tenantID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Delete(&model.EntityMapping{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reset mappings: %w", result.Error)
	}

	r.logger.Warn("Entity mappings reset",
		zap.String("tenant_id", tenantID),
		zap.Int64("deleted", result.RowsAffected))
	return result.RowsAffected, nil
}
