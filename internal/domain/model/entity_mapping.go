package model

import "time"

// EntityMapping maps a Stripe object ID to the Notion page ID it was written to
type EntityMapping struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID      string    `gorm:"column:tenant_id;not null;size:64;uniqueIndex:idx_entity_mappings_key,priority:1" json:"tenant_id"`
	EntityType    string    `gorm:"column:entity_type;not null;size:40;uniqueIndex:idx_entity_mappings_key,priority:2" json:"entity_type"`
	SourceID      string    `gorm:"column:source_id;not null;size:100;uniqueIndex:idx_entity_mappings_key,priority:3" json:"source_id"`
	DestinationID string    `gorm:"column:destination_id;not null;size:100" json:"destination_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (EntityMapping) TableName() string {
	return "entity_mappings"
}
