package model

import "time"

// BackfillRun is the per-tenant backfill status record
type BackfillRun struct {
	ID               int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID         string     `gorm:"column:tenant_id;not null;size:64;uniqueIndex" json:"tenant_id"`
	RunID            string     `gorm:"column:run_id;size:36" json:"run_id"`
	Status           string     `gorm:"not null;size:20;default:'pending'" json:"status"`
	RecordsProcessed int64      `gorm:"not null;default:0" json:"records_processed"`
	CurrentEntity    string     `gorm:"size:40" json:"current_entity"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (BackfillRun) TableName() string {
	return "backfill_runs"
}

// BackfillProgress is the cursor of one entity type within a tenant's backfill
type BackfillProgress struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID   string    `gorm:"column:tenant_id;not null;size:64;uniqueIndex:idx_backfill_progress_key,priority:1" json:"tenant_id"`
	EntityType string    `gorm:"column:entity_type;not null;size:40;uniqueIndex:idx_backfill_progress_key,priority:2" json:"entity_type"`
	Started    bool      `gorm:"not null;default:false" json:"started"`
	Completed  bool      `gorm:"not null;default:false" json:"completed"`
	Cursor     string    `gorm:"size:100" json:"cursor"`
	Processed  int64     `gorm:"not null;default:0" json:"processed"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (BackfillProgress) TableName() string {
	return "backfill_progress"
}
