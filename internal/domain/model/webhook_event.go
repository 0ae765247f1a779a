package model

import (
	"database/sql/driver"
	"time"

	"gorm.io/datatypes"
)

// WebhookStatus represents the processing status of a webhook
type WebhookStatus string

const (
	WebhookStatusPending    WebhookStatus = "pending"
	WebhookStatusProcessing WebhookStatus = "processing"
	WebhookStatusCompleted  WebhookStatus = "completed"
	WebhookStatusFailed     WebhookStatus = "failed"
	// WebhookStatusIgnored marks events whose object type is not synchronized
	WebhookStatusIgnored WebhookStatus = "ignored"
)

// Scan implements sql.Scanner interface
func (w *WebhookStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*w = WebhookStatus(v)
	case []byte:
		*w = WebhookStatus(v)
	default:
		*w = WebhookStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (w WebhookStatus) Value() (driver.Value, error) {
	return string(w), nil
}

// StripeWebhookEvent is an inbound Stripe event kept until it is processed.
// Redelivered events are deduplicated on (tenant, event ID).
type StripeWebhookEvent struct {
	ID                 int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID           string         `gorm:"column:tenant_id;not null;size:64;uniqueIndex:idx_webhook_events_key,priority:1" json:"tenant_id"`
	StripeEventID      string         `gorm:"not null;size:255;uniqueIndex:idx_webhook_events_key,priority:2" json:"stripe_event_id"`
	EventType          string         `gorm:"not null;size:100;index" json:"event_type"`
	EntityType         string         `gorm:"size:40" json:"entity_type"`
	ObjectID           string         `gorm:"size:100" json:"object_id"`
	Status             WebhookStatus  `gorm:"size:20;default:'pending';index" json:"status"`
	ProcessedAt        *time.Time     `json:"processed_at,omitempty"`
	Data               datatypes.JSON `gorm:"type:jsonb;not null" json:"data"`
	ProcessingAttempts int            `gorm:"default:0" json:"processing_attempts"`
	LastError          *string        `json:"last_error,omitempty"`
	NextRetryAt        *time.Time     `json:"next_retry_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	StripeCreatedAt    *time.Time     `json:"stripe_created_at,omitempty"`
}

// TableName specifies the table name for GORM
func (StripeWebhookEvent) TableName() string {
	return "stripe_webhook_events"
}
