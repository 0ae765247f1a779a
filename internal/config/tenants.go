package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/stripe-notion-sync/internal/domain/errors"
	"gopkg.in/yaml.v3"
)

// Tenant holds the credentials and destination databases of one workspace.
type Tenant struct {
	ID                  string `yaml:"id" validate:"required"`
	StripeSecretKey     string `yaml:"stripe_secret_key" validate:"required"`
	StripeWebhookSecret string `yaml:"stripe_webhook_secret"`
	NotionToken         string `yaml:"notion_token" validate:"required"`
	// Databases maps an entity type to its destination database ID. Types
	// without an entry are not synchronized.
	Databases map[string]string `yaml:"databases"`
}

// DatabaseFor returns the destination database configured for t.
func (t *Tenant) DatabaseFor(et entity.EntityType) (string, bool) {
	id, ok := t.Databases[string(et)]
	return id, ok && id != ""
}

type tenantsFile struct {
	Tenants []Tenant `yaml:"tenants" validate:"dive"`
}

// TenantSet is the immutable set of configured tenants.
type TenantSet struct {
	byID map[string]*Tenant
}

// NewTenantSet validates tenants and indexes them by ID.
func NewTenantSet(tenants []Tenant) (*TenantSet, error) {
	validate := validator.New()
	set := &TenantSet{byID: make(map[string]*Tenant, len(tenants))}
	for i := range tenants {
		tenant := tenants[i]
		if err := validate.Struct(&tenant); err != nil {
			return nil, fmt.Errorf("invalid tenant %q: %w", tenant.ID, err)
		}
		if _, dup := set.byID[tenant.ID]; dup {
			return nil, fmt.Errorf("tenant %q declared twice", tenant.ID)
		}
		for name := range tenant.Databases {
			if !entity.EntityType(name).Valid() {
				return nil, fmt.Errorf("tenant %q: %w", tenant.ID, domainErrors.NewUnknownEntityTypeError(entity.EntityType(name)))
			}
		}
		set.byID[tenant.ID] = &tenant
	}
	return set, nil
}

// LoadTenants reads the tenants YAML file.
func LoadTenants(path string) (*TenantSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenants file: %w", err)
	}

	var file tenantsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tenants file: %w", err)
	}
	return NewTenantSet(file.Tenants)
}

func (s *TenantSet) Get(id string) (*Tenant, error) {
	t, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrUnknownTenant, id)
	}
	return t, nil
}

// IDs lists tenant IDs sorted.
func (s *TenantSet) IDs() []string {
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
