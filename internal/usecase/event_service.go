package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/adapter/repository"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/config"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/model"
	"go.uber.org/zap"
)

// ErrInvalidSignature is returned for webhook payloads that fail verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// EventResult describes how an inbound event was handled.
type EventResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// EventService stores verified Stripe events and drives them through the
// sync pipeline. Failed events are retried by RunRetryWorker.
type EventService struct {
	sync      *SyncService
	tenants   *config.TenantSet
	repo      repository.WebhookRepository
	tolerance time.Duration
	logger    *zap.Logger
}

func NewEventService(syncService *SyncService, tenants *config.TenantSet, repo repository.WebhookRepository, tolerance time.Duration, logger *zap.Logger) *EventService {
	return &EventService{
		sync:      syncService,
		tenants:   tenants,
		repo:      repo,
		tolerance: tolerance,
		logger:    logger,
	}
}

// eventObject is the part of data.object every Stripe object carries.
type eventObject struct {
	ID     string `json:"id"`
	Object string `json:"object"`
}

// HandleWebhook verifies the payload with the tenant's signing secret, stores
// the event and processes it. A redelivered event is processed again only if
// its earlier attempt did not complete.
func (s *EventService) HandleWebhook(ctx context.Context, tenantID string, payload []byte, signature string) (*EventResult, error) {
	tenant, err := s.tenants.Get(tenantID)
	if err != nil {
		return nil, err
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, tenant.StripeWebhookSecret,
		webhook.ConstructEventOptions{
			Tolerance:                s.tolerance,
			IgnoreAPIVersionMismatch: true,
		})
	if err != nil {
		s.logger.Warn("Webhook signature verification failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if event.Data == nil {
		return nil, fmt.Errorf("event %s has no data", event.ID)
	}

	var obj eventObject
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return nil, fmt.Errorf("failed to parse event object: %w", err)
	}
	entityType, _ := entity.FromStripeObject(obj.Object)

	s.logger.Info("Webhook event received",
		zap.String("tenant_id", tenantID),
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("object_id", obj.ID))

	result := &EventResult{EventID: event.ID, EventType: string(event.Type)}
	saved, err := s.repo.SaveEvent(ctx, repository.WebhookEventInput{
		TenantID:   tenantID,
		EventID:    event.ID,
		EventType:  string(event.Type),
		EntityType: string(entityType),
		ObjectID:   obj.ID,
		Data:       payload,
	})
	if err != nil {
		return nil, err
	}

	if !saved {
		stored, err := s.repo.GetEvent(ctx, tenantID, event.ID)
		if err != nil {
			return nil, err
		}
		result.Duplicate = true
		if stored != nil && stored.Status != model.WebhookStatusPending && stored.Status != model.WebhookStatusFailed {
			result.Status = string(stored.Status)
			s.logger.Info("Duplicate webhook event ignored",
				zap.String("tenant_id", tenantID),
				zap.String("event_id", event.ID),
				zap.String("status", result.Status))
			return result, nil
		}
	}

	inbox := &model.StripeWebhookEvent{
		TenantID:      tenantID,
		StripeEventID: event.ID,
		EventType:     string(event.Type),
		EntityType:    string(entityType),
		ObjectID:      obj.ID,
	}
	status, err := s.process(ctx, inbox, event.Data.Raw)
	result.Status = string(status)
	return result, err
}

// process syncs the object of one stored event and records the outcome.
func (s *EventService) process(ctx context.Context, event *model.StripeWebhookEvent, object json.RawMessage) (model.WebhookStatus, error) {
	logger := s.logger.With(
		zap.String("tenant_id", event.TenantID),
		zap.String("event_id", event.StripeEventID),
		zap.String("event_type", event.EventType))

	t := entity.EntityType(event.EntityType)
	def, lookupErr := s.sync.registry.Lookup(t)
	if event.EntityType == "" || lookupErr != nil || strings.HasSuffix(event.EventType, ".deleted") {
		logger.Debug("Event not synchronized")
		if err := s.repo.MarkIgnored(ctx, event.TenantID, event.StripeEventID); err != nil {
			return model.WebhookStatusFailed, err
		}
		return model.WebhookStatusIgnored, nil
	}

	var err error
	if def.Fetchable {
		// refetch so the write reflects the current expanded object
		_, err = s.sync.SyncEntity(ctx, event.TenantID, t, event.ObjectID, true)
	} else {
		var rec *entity.Record
		rec, err = entity.DecodeRecord(t, object)
		if err == nil {
			_, err = s.sync.SyncRecord(ctx, event.TenantID, rec, true)
		}
	}

	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, event.TenantID, event.StripeEventID, err); markErr != nil {
			logger.Error("Failed to mark event as failed", zap.Error(markErr))
		}
		return model.WebhookStatusFailed, err
	}

	if err := s.repo.MarkProcessed(ctx, event.TenantID, event.StripeEventID); err != nil {
		return model.WebhookStatusFailed, err
	}
	logger.Info("Webhook event processed", zap.String("object_id", event.ObjectID))
	return model.WebhookStatusCompleted, nil
}

// storedObject extracts data.object from a stored event payload.
func storedObject(event *model.StripeWebhookEvent) json.RawMessage {
	var payload struct {
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return nil
	}
	return payload.Data.Object
}

// RetryPending reprocesses stored events that are pending or due for retry.
// It returns the number of events that completed.
func (s *EventService) RetryPending(ctx context.Context, limit int) (int, error) {
	events, err := s.repo.GetPendingEvents(ctx, limit)
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, event := range events {
		if ctx.Err() != nil {
			return completed, ctx.Err()
		}
		if _, err := s.tenants.Get(event.TenantID); err != nil {
			s.logger.Warn("Stored event belongs to unknown tenant",
				zap.String("tenant_id", event.TenantID),
				zap.String("event_id", event.StripeEventID))
			continue
		}
		status, err := s.process(ctx, event, storedObject(event))
		if err != nil {
			s.logger.Warn("Event retry failed",
				zap.String("tenant_id", event.TenantID),
				zap.String("event_id", event.StripeEventID),
				zap.Int("attempts", event.ProcessingAttempts+1),
				zap.Error(err))
			continue
		}
		if status == model.WebhookStatusCompleted {
			completed++
		}
	}
	return completed, nil
}

// RunRetryWorker calls RetryPending every interval until ctx is done.
func (s *EventService) RunRetryWorker(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Webhook retry worker started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Webhook retry worker stopped")
			return
		case <-ticker.C:
			n, err := s.RetryPending(ctx, batchSize)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("Webhook retry pass failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("Webhook events retried", zap.Int("completed", n))
			}
		}
	}
}
