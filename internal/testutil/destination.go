package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/provider"
)

// Write is one recorded destination write.
type Write struct {
	DatabaseID string
	RecordID   string
	Created    bool
	Props      entity.Properties
	Mode       provider.WriteMode
}

// FakeDestination is an in-memory destination workspace. Page IDs are
// assigned sequentially as pg_1, pg_2, ...
type FakeDestination struct {
	mu      sync.Mutex
	pages   map[string]entity.Properties
	dbOf    map[string]string
	nextID  int
	Writes  []Write
	// Err fails every call when set.
	Err error
	// FailKeys fails writes whose natural key value matches.
	FailKeys map[string]error
	// Gate, when set, blocks every Create until it is closed.
	Gate chan struct{}
}

func NewFakeDestination() *FakeDestination {
	return &FakeDestination{
		pages:    make(map[string]entity.Properties),
		dbOf:     make(map[string]string),
		FailKeys: make(map[string]error),
	}
}

func naturalValue(props entity.Properties, key string) string {
	if p, ok := props[key]; ok && p.Text != nil {
		return *p.Text
	}
	return ""
}

func (d *FakeDestination) FindByNaturalKey(_ context.Context, databaseID, key, value string) (*provider.DestinationRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	for id, props := range d.pages {
		if d.dbOf[id] == databaseID && naturalValue(props, key) == value {
			return &provider.DestinationRecord{ID: id}, nil
		}
	}
	return nil, nil
}

func (d *FakeDestination) Create(_ context.Context, databaseID string, props entity.Properties) (*provider.DestinationRecord, error) {
	if d.Gate != nil {
		<-d.Gate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	for _, p := range props {
		if p.Kind == entity.KindTitle && p.Text != nil {
			if err, ok := d.FailKeys[*p.Text]; ok {
				return nil, err
			}
		}
	}
	d.nextID++
	id := fmt.Sprintf("pg_%d", d.nextID)
	d.pages[id] = props
	d.dbOf[id] = databaseID
	d.Writes = append(d.Writes, Write{DatabaseID: databaseID, RecordID: id, Created: true, Props: props})
	return &provider.DestinationRecord{ID: id}, nil
}

func (d *FakeDestination) Update(_ context.Context, recordID string, props entity.Properties, mode provider.WriteMode) (*provider.DestinationRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	current, ok := d.pages[recordID]
	if !ok {
		return nil, fmt.Errorf("page %s not found", recordID)
	}
	for name, p := range props {
		if p.IsNull() && mode == provider.WriteMerge {
			continue
		}
		current[name] = p
	}
	d.Writes = append(d.Writes, Write{DatabaseID: d.dbOf[recordID], RecordID: recordID, Props: props, Mode: mode})
	return &provider.DestinationRecord{ID: recordID}, nil
}

// WriteCount is the number of creates and updates performed.
func (d *FakeDestination) WriteCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Writes)
}

// Page returns a copy of the stored properties of a page.
func (d *FakeDestination) Page(id string) entity.Properties {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(entity.Properties, len(d.pages[id]))
	for k, v := range d.pages[id] {
		out[k] = v
	}
	return out
}

// Find returns the page ID holding a natural key value in a database.
func (d *FakeDestination) Find(databaseID, value string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, props := range d.pages {
		for _, p := range props {
			if p.Kind == entity.KindTitle && p.Text != nil && *p.Text == value && d.dbOf[id] == databaseID {
				return id
			}
		}
	}
	return ""
}
