package model

import "time"

// SyncError holds the last failure per tenant and entity type. The row with an
// empty entity type is the tenant-wide destination auth flag.
type SyncError struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID   string    `gorm:"column:tenant_id;not null;size:64;uniqueIndex:idx_sync_errors_key,priority:1" json:"tenant_id"`
	EntityType string    `gorm:"column:entity_type;not null;size:40;uniqueIndex:idx_sync_errors_key,priority:2" json:"entity_type"`
	Kind       string    `gorm:"not null;size:40" json:"kind"`
	Message    string    `gorm:"type:text" json:"message"`
	Count      int       `gorm:"not null;default:1" json:"count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (SyncError) TableName() string {
	return "sync_errors"
}
