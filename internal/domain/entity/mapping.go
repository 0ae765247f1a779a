package entity

import "time"

// EntityMapping translates a source ID into the destination record ID for one
// tenant. Unique per (tenant, entity type, source ID).
type EntityMapping struct {
	TenantID      string     `json:"tenant_id"`
	EntityType    EntityType `json:"entity_type"`
	SourceID      string     `json:"source_id"`
	DestinationID string     `json:"destination_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// MappingKey is the "type:sourceId" key used by the mapping store and the
// in-flight table.
func MappingKey(t EntityType, sourceID string) string {
	return string(t) + ":" + sourceID
}

// ResolvedDependencySet holds the destination ID of each declared dependency
// of one record. A nil entry means the dependency resolved to null.
type ResolvedDependencySet struct {
	IDs    map[EntityType]*string
	Errors []error
}

func NewResolvedDependencySet() *ResolvedDependencySet {
	return &ResolvedDependencySet{IDs: make(map[EntityType]*string)}
}

// Set records a resolved destination ID.
func (s *ResolvedDependencySet) Set(t EntityType, destinationID string) {
	id := destinationID
	s.IDs[t] = &id
}

// SetNull records that the dependency resolved to nothing.
func (s *ResolvedDependencySet) SetNull(t EntityType) {
	s.IDs[t] = nil
}

// Get returns the destination ID for t, or nil.
func (s *ResolvedDependencySet) Get(t EntityType) *string {
	if s == nil {
		return nil
	}
	return s.IDs[t]
}

// AddError records a non-fatal resolution error.
func (s *ResolvedDependencySet) AddError(err error) {
	s.Errors = append(s.Errors, err)
}
