package provider

import (
	"context"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
)

// Source is the upstream system of record (Stripe).
type Source interface {
	// Fetch retrieves one expanded record. Returns errors.ErrNotFound (wrapped)
	// when the record does not exist.
	Fetch(ctx context.Context, t entity.EntityType, id string, expand []string) (*entity.Record, error)

	// List returns one page of records ordered as the source lists them.
	List(ctx context.Context, t entity.EntityType, opts ListOptions) (*Page, error)
}

// ListOptions selects a page after an opaque cursor.
type ListOptions struct {
	Limit         int64
	StartingAfter string
	Expand        []string
}

// Page is one page of listed records.
type Page struct {
	Records []*entity.Record
	HasMore bool
}

// WriteMode controls how Update treats null properties.
type WriteMode int

const (
	// WriteMerge skips null properties, leaving destination values untouched.
	WriteMerge WriteMode = iota
	// WriteReplace clears destination values for null properties.
	WriteReplace
)

// Destination is the workspace database receiving synchronized records (Notion).
type Destination interface {
	// FindByNaturalKey returns nil, nil when no record matches.
	FindByNaturalKey(ctx context.Context, databaseID, key, value string) (*DestinationRecord, error)
	Create(ctx context.Context, databaseID string, props entity.Properties) (*DestinationRecord, error)
	Update(ctx context.Context, recordID string, props entity.Properties, mode WriteMode) (*DestinationRecord, error)
}

// DestinationRecord identifies a written destination record.
type DestinationRecord struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}
