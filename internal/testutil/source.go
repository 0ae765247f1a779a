package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/stripe-notion-sync/internal/domain/errors"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/provider"
)

// FakeSource serves records from memory. Records of a type are listed in the
// order they were added.
type FakeSource struct {
	mu      sync.Mutex
	records map[entity.EntityType][]*entity.Record
	// FetchErrors fail Fetch for a "type:id" key.
	FetchErrors map[string]error
	// ListErrors fail List for a type.
	ListErrors map[entity.EntityType]error
	Fetches    []string
}

func NewFakeSource() *FakeSource {
	return &FakeSource{
		records:     make(map[entity.EntityType][]*entity.Record),
		FetchErrors: make(map[string]error),
		ListErrors:  make(map[entity.EntityType]error),
	}
}

// Add registers a record built from data.
func (s *FakeSource) Add(t entity.EntityType, data map[string]interface{}) *entity.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := entity.NewRecord(t, data)
	s.records[t] = append(s.records[t], rec)
	return rec
}

func (s *FakeSource) Fetch(_ context.Context, t entity.EntityType, id string, _ []string) (*entity.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entity.MappingKey(t, id)
	s.Fetches = append(s.Fetches, key)
	if err, ok := s.FetchErrors[key]; ok {
		return nil, err
	}
	for _, rec := range s.records[t] {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, &domainErrors.SourceError{EntityType: t, SourceID: id, Cause: domainErrors.ErrNotFound}
}

func (s *FakeSource) List(_ context.Context, t entity.EntityType, opts provider.ListOptions) (*provider.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.ListErrors[t]; ok {
		return nil, err
	}

	all := s.records[t]
	start := 0
	if opts.StartingAfter != "" {
		start = -1
		for i, rec := range all {
			if rec.ID == opts.StartingAfter {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, fmt.Errorf("unknown cursor %s", opts.StartingAfter)
		}
	}

	limit := int(opts.Limit)
	if limit <= 0 {
		limit = 10
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	page := &provider.Page{HasMore: end < len(all)}
	page.Records = append(page.Records, all[start:end]...)
	return page, nil
}

// FetchCount counts fetches of one key.
func (s *FakeSource) FetchCount(t entity.EntityType, id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, key := range s.Fetches {
		if key == entity.MappingKey(t, id) {
			n++
		}
	}
	return n
}
