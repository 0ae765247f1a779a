package entity

import "time"

// SyncErrorKind classifies a recorded sync failure.
type SyncErrorKind string

const (
	SyncErrorConfiguration    SyncErrorKind = "configuration"
	SyncErrorDependency       SyncErrorKind = "dependency_resolution"
	SyncErrorUpstreamAuth     SyncErrorKind = "upstream_auth"
	SyncErrorDestinationWrite SyncErrorKind = "destination_write"
	SyncErrorTransient        SyncErrorKind = "transient_network"
	SyncErrorSource           SyncErrorKind = "source"
	SyncErrorInternal         SyncErrorKind = "internal"
)

// SyncError is the last recorded failure of one entity type for a tenant.
// The tenant-wide auth flag is stored with an empty EntityType.
type SyncError struct {
	TenantID   string        `json:"tenant_id"`
	EntityType EntityType    `json:"entity_type,omitempty"`
	Kind       SyncErrorKind `json:"kind"`
	Message    string        `json:"message"`
	Count      int           `json:"count"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
