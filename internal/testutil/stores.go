package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
)

// MemoryBackfillStore is an in-memory repository.BackfillRepository. Saved
// states are deep copies, so a caller's later edits are not persisted.
type MemoryBackfillStore struct {
	mu     sync.Mutex
	states map[string]entity.BackfillState
	Saves  int
}

func NewMemoryBackfillStore() *MemoryBackfillStore {
	return &MemoryBackfillStore{states: make(map[string]entity.BackfillState)}
}

func cloneState(s entity.BackfillState) entity.BackfillState {
	s.Cursors = append([]entity.BackfillCursor(nil), s.Cursors...)
	return s
}

func (s *MemoryBackfillStore) Load(_ context.Context, tenantID string) (*entity.BackfillState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[tenantID]
	if !ok {
		return &entity.BackfillState{TenantID: tenantID, Status: entity.BackfillPending}, nil
	}
	out := cloneState(state)
	return &out, nil
}

func (s *MemoryBackfillStore) SaveProgress(_ context.Context, state *entity.BackfillState, _ entity.EntityType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.TenantID] = cloneState(*state)
	s.Saves++
	return nil
}

func (s *MemoryBackfillStore) SaveStatus(_ context.Context, state *entity.BackfillState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.states[state.TenantID]
	next := cloneState(*state)
	next.Cursors = prev.Cursors
	s.states[state.TenantID] = next
	return nil
}

func (s *MemoryBackfillStore) Reset(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, tenantID)
	return nil
}

// MemorySyncErrorStore is an in-memory repository.SyncErrorRepository.
type MemorySyncErrorStore struct {
	mu     sync.Mutex
	errors map[string]entity.SyncError
}

func NewMemorySyncErrorStore() *MemorySyncErrorStore {
	return &MemorySyncErrorStore{errors: make(map[string]entity.SyncError)}
}

func (s *MemorySyncErrorStore) Record(_ context.Context, syncErr *entity.SyncError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := syncErr.TenantID + "/" + string(syncErr.EntityType)
	next := *syncErr
	next.Count = s.errors[key].Count + 1
	s.errors[key] = next
	return nil
}

func (s *MemorySyncErrorStore) Clear(_ context.Context, tenantID string, t entity.EntityType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errors, tenantID+"/"+string(t))
	return nil
}

func (s *MemorySyncErrorStore) Get(_ context.Context, tenantID string, t entity.EntityType) (*entity.SyncError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.errors[tenantID+"/"+string(t)]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *MemorySyncErrorStore) List(_ context.Context, tenantID string) ([]*entity.SyncError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.SyncError
	for _, e := range s.errors {
		if e.TenantID == tenantID {
			e := e
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityType < out[j].EntityType })
	return out, nil
}
