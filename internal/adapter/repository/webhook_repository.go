package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WebhookEventInput describes an inbound event before it is stored
type WebhookEventInput struct {
	TenantID   string
	EventID    string
	EventType  string
	EntityType string
	ObjectID   string
	Data       json.RawMessage
}

// WebhookRepository handles webhook event storage and processing
type WebhookRepository interface {
	// SaveEvent stores the event and reports whether it was new.
	SaveEvent(ctx context.Context, in WebhookEventInput) (bool, error)
	GetEvent(ctx context.Context, tenantID, eventID string) (*model.StripeWebhookEvent, error)
	MarkProcessed(ctx context.Context, tenantID, eventID string) error
	MarkIgnored(ctx context.Context, tenantID, eventID string) error
	MarkFailed(ctx context.Context, tenantID, eventID string, err error) error
	GetPendingEvents(ctx context.Context, limit int) ([]*model.StripeWebhookEvent, error)
}

type webhookRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewWebhookRepository creates a new webhook repository
func NewWebhookRepository(db *gorm.DB, logger *zap.Logger) WebhookRepository {
	return &webhookRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// SaveEvent saves a new webhook event
func (r *webhookRepository) SaveEvent(ctx context.Context, in WebhookEventInput) (bool, error) {
	// Parse created timestamp from event data
	data := datatypes.JSON(in.Data)
	var eventData map[string]interface{}
	if err := json.Unmarshal(in.Data, &eventData); err != nil {
		r.logger.Warn("Failed to parse event data for timestamp",
			zap.String("event_id", in.EventID),
			zap.Error(err))
		data = datatypes.JSON("{}")
	}

	var stripeCreatedAt *time.Time
	if created, ok := eventData["created"].(float64); ok {
		t := time.Unix(int64(created), 0).UTC()
		stripeCreatedAt = &t
	}

	event := &model.StripeWebhookEvent{
		TenantID:        in.TenantID,
		StripeEventID:   in.EventID,
		EventType:       in.EventType,
		EntityType:      in.EntityType,
		ObjectID:        in.ObjectID,
		Status:          model.WebhookStatusPending,
		Data:            data,
		CreatedAt:       r.now(),
		StripeCreatedAt: stripeCreatedAt,
	}

	// Redelivered events hit the unique key and are dropped
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event)

	if result.Error != nil {
		r.logger.Error("Failed to save webhook event",
			zap.String("tenant_id", in.TenantID),
			zap.String("event_id", in.EventID),
			zap.String("event_type", in.EventType),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to save webhook event: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// GetEvent retrieves a webhook event by ID
func (r *webhookRepository) GetEvent(ctx context.Context, tenantID, eventID string) (*model.StripeWebhookEvent, error) {
	var event model.StripeWebhookEvent

	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND stripe_event_id = ?", tenantID, eventID).
		First(&event).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}

	return &event, nil
}

func (r *webhookRepository) markDone(ctx context.Context, tenantID, eventID string, status model.WebhookStatus) error {
	now := r.now()

	result := r.db.WithContext(ctx).
		Model(&model.StripeWebhookEvent{}).
		Where("tenant_id = ? AND stripe_event_id = ?", tenantID, eventID).
		Updates(map[string]interface{}{
			"status":        status,
			"processed_at":  &now,
			"next_retry_at": nil,
		})

	if result.Error != nil {
		r.logger.Error("Failed to update webhook status",
			zap.String("event_id", eventID),
			zap.String("status", string(status)),
			zap.Error(result.Error))
		return fmt.Errorf("failed to mark webhook as %s: %w", status, result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("webhook event not found: %s", eventID)
	}

	return nil
}

// MarkProcessed marks a webhook event as processed
func (r *webhookRepository) MarkProcessed(ctx context.Context, tenantID, eventID string) error {
	return r.markDone(ctx, tenantID, eventID, model.WebhookStatusCompleted)
}

// MarkIgnored marks an event whose object type is not synchronized
func (r *webhookRepository) MarkIgnored(ctx context.Context, tenantID, eventID string) error {
	return r.markDone(ctx, tenantID, eventID, model.WebhookStatusIgnored)
}

// retryDelay grows 5, 10, 20, 40 minutes and caps at 24 hours
func retryDelay(attempts int) time.Duration {
	if attempts > 10 {
		return 24 * time.Hour
	}
	retryMinutes := 5 * (1 << (attempts - 1))
	if retryMinutes > 1440 {
		retryMinutes = 1440
	}
	return time.Duration(retryMinutes) * time.Minute
}

// MarkFailed marks a webhook event as failed
func (r *webhookRepository) MarkFailed(ctx context.Context, tenantID, eventID string, err error) error {
	var event model.StripeWebhookEvent
	if dbErr := r.db.WithContext(ctx).
		Where("tenant_id = ? AND stripe_event_id = ?", tenantID, eventID).
		First(&event).Error; dbErr != nil {
		r.logger.Error("Failed to get webhook event for failure update",
			zap.String("event_id", eventID),
			zap.Error(dbErr))
		return fmt.Errorf("failed to get webhook event: %w", dbErr)
	}

	attempts := event.ProcessingAttempts + 1
	nextRetry := r.now().Add(retryDelay(attempts))
	errorMsg := err.Error()

	result := r.db.WithContext(ctx).
		Model(&model.StripeWebhookEvent{}).
		Where("id = ?", event.ID).
		Updates(map[string]interface{}{
			"status":              model.WebhookStatusFailed,
			"processing_attempts": attempts,
			"last_error":          &errorMsg,
			"next_retry_at":       &nextRetry,
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark webhook as failed",
			zap.String("event_id", eventID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to mark webhook as failed: %w", result.Error)
	}

	return nil
}

// GetPendingEvents retrieves pending webhook events for processing
func (r *webhookRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.StripeWebhookEvent, error) {
	var events []*model.StripeWebhookEvent

	query := r.db.WithContext(ctx).
		Where("status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)",
			model.WebhookStatusPending,
			model.WebhookStatusFailed,
			r.now()).
		Order("created_at ASC, id ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&events).Error; err != nil {
		r.logger.Error("Failed to get pending webhook events", zap.Error(err))
		return nil, fmt.Errorf("failed to get pending webhook events: %w", err)
	}

	return events, nil
}
