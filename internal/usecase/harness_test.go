package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/config"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/coordinator"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/provider"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/registry"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/testutil"
	"go.uber.org/zap"
)

const (
	testTenant        = "acme"
	testWebhookSecret = "whsec_test_secret"
)

type fakeProviders struct {
	source *testutil.FakeSource
	dest   *testutil.FakeDestination
}

func (f *fakeProviders) Source(*config.Tenant) (provider.Source, error) {
	return f.source, nil
}

func (f *fakeProviders) Destination(*config.Tenant) (provider.Destination, error) {
	return f.dest, nil
}

type harness struct {
	source   *testutil.FakeSource
	dest     *testutil.FakeDestination
	mappings *testutil.MemoryMappingStore
	errors   *testutil.MemorySyncErrorStore
	tenants  *config.TenantSet
	clock    *testutil.StepClock
	svc      *SyncService
}

// newHarness wires a sync service for one tenant whose databases are named
// "db-<entity type>".
func newHarness(t *testing.T, types ...string) *harness {
	t.Helper()

	databases := make(map[string]string, len(types))
	for _, et := range types {
		databases[et] = "db-" + et
	}
	tenants, err := config.NewTenantSet([]config.Tenant{{
		ID:                  testTenant,
		StripeSecretKey:     "sk_test_123",
		StripeWebhookSecret: testWebhookSecret,
		NotionToken:         "secret_notion",
		Databases:           databases,
	}})
	require.NoError(t, err)

	h := &harness{
		source:   testutil.NewFakeSource(),
		dest:     testutil.NewFakeDestination(),
		mappings: testutil.NewMemoryMappingStore(),
		errors:   testutil.NewMemorySyncErrorStore(),
		tenants:  tenants,
		clock:    testutil.NewStepClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)),
	}
	h.svc = h.newService(t)
	return h
}

// newService builds a fresh service over the harness stores, as a restarted
// process would.
func (h *harness) newService(t *testing.T, opts ...SyncOption) *SyncService {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)

	coords := coordinator.NewManager(h.mappings, zap.NewNop(), coordinator.WithClock(h.clock.Now))
	return NewSyncService(reg, h.tenants, &fakeProviders{source: h.source, dest: h.dest}, coords, h.errors, zap.NewNop(), opts...)
}

func registryChild(t *testing.T, parent, child entity.EntityType) registry.Child {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	def, err := reg.Lookup(parent)
	require.NoError(t, err)
	for _, c := range def.Children {
		if c.Type == child {
			return c
		}
	}
	t.Fatalf("%s declares no %s child", parent, child)
	return registry.Child{}
}
