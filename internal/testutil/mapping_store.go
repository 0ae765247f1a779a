package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
)

// MemoryMappingStore is an in-memory repository.MappingRepository.
type MemoryMappingStore struct {
	mu       sync.Mutex
	mappings map[string]entity.EntityMapping
	Saves    int
}

func NewMemoryMappingStore() *MemoryMappingStore {
	return &MemoryMappingStore{mappings: make(map[string]entity.EntityMapping)}
}

func storeKey(tenantID string, t entity.EntityType, sourceID string) string {
	return tenantID + "/" + entity.MappingKey(t, sourceID)
}

func (s *MemoryMappingStore) Get(_ context.Context, tenantID string, t entity.EntityType, sourceID string) (*entity.EntityMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mappings[storeKey(tenantID, t, sourceID)]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *MemoryMappingStore) Save(_ context.Context, mapping *entity.EntityMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey(mapping.TenantID, mapping.EntityType, mapping.SourceID)
	m := *mapping
	if prev, ok := s.mappings[key]; ok {
		m.CreatedAt = prev.CreatedAt
	}
	s.mappings[key] = m
	s.Saves++
	return nil
}

func (s *MemoryMappingStore) Touch(_ context.Context, tenantID string, t entity.EntityType, sourceID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey(tenantID, t, sourceID)
	if m, ok := s.mappings[key]; ok && m.UpdatedAt.Before(at) {
		m.UpdatedAt = at
		s.mappings[key] = m
	}
	return nil
}

func (s *MemoryMappingStore) filter(tenantID string, t entity.EntityType) []*entity.EntityMapping {
	var out []*entity.EntityMapping
	for _, m := range s.mappings {
		if m.TenantID != tenantID || (t != "" && m.EntityType != t) {
			continue
		}
		m := m
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityType != out[j].EntityType {
			return out[i].EntityType < out[j].EntityType
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}

func (s *MemoryMappingStore) List(_ context.Context, tenantID string, t entity.EntityType, limit, offset int) ([]*entity.EntityMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filter(tenantID, t)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryMappingStore) Count(_ context.Context, tenantID string, t entity.EntityType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.filter(tenantID, t))), nil
}

func (s *MemoryMappingStore) DeleteAll(_ context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, m := range s.mappings {
		if m.TenantID == tenantID {
			delete(s.mappings, key)
			n++
		}
	}
	return n, nil
}
