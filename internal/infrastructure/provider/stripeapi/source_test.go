package stripeapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/stripe-notion-sync/internal/domain/errors"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/provider"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/registry"
	"go.uber.org/zap"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSource("sk_test_123", NewBackends(srv.URL, srv.Client()), zap.NewNop())
}

func TestSource_FetchCharge(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/charges/ch_1", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.Equal(t, []string{"customer"}, r.URL.Query()["expand[0]"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "ch_1",
			"object": "charge",
			"amount": 1999,
			"currency": "usd",
			"customer": {"id": "cus_1", "object": "customer", "email": "jane@example.com"},
			"payment_intent": "pi_1",
			"paid": true
		}`))
	})

	rec, err := src.Fetch(context.Background(), entity.Charge, "ch_1", []string{"customer"})
	require.NoError(t, err)
	assert.Equal(t, "ch_1", rec.ID)
	assert.Equal(t, entity.Charge, rec.Type)
	assert.Equal(t, "cus_1", rec.RefID("customer"))
	assert.Equal(t, "pi_1", rec.RefID("payment_intent"))
	amount, ok := rec.Int("amount")
	assert.True(t, ok)
	assert.EqualValues(t, 1999, amount)
	assert.True(t, rec.Bool("paid"))
}

func TestSource_FetchMissingIsNotFound(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": {"type": "invalid_request_error", "code": "resource_missing", "message": "No such customer: 'cus_x'"}}`))
	})

	_, err := src.Fetch(context.Background(), entity.Customer, "cus_x", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainErrors.ErrNotFound))
	assert.Equal(t, entity.SyncErrorSource, domainErrors.Classify(err))
}

func TestSource_FetchEmbeddedTypeIsRejected(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})

	_, err := src.Fetch(context.Background(), entity.LineItem, "il_1", nil)
	assert.True(t, errors.Is(err, domainErrors.ErrNotFetchable))
}

func TestSource_ListSinglePage(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/customers", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "cus_1", r.URL.Query().Get("starting_after"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"object": "list",
			"url": "/v1/customers",
			"has_more": true,
			"data": [{"id": "cus_2", "object": "customer", "name": "Globex"}]
		}`))
	})

	page, err := src.List(context.Background(), entity.Customer, provider.ListOptions{Limit: 1, StartingAfter: "cus_1"})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "cus_2", page.Records[0].ID)
	assert.Equal(t, "Globex", page.Records[0].String("name"))
	assert.True(t, page.HasMore)
}

func TestSource_ListSubscriptionsIncludesCanceled(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all", r.URL.Query().Get("status"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object": "list", "url": "/v1/subscriptions", "has_more": false, "data": []}`))
	})

	page, err := src.List(context.Background(), entity.Subscription, provider.ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.False(t, page.HasMore)
}

// expandValues returns the expand[] parameters of a request in sorted order.
func expandValues(r *http.Request) []string {
	var out []string
	for key, values := range r.URL.Query() {
		if strings.HasPrefix(key, "expand") {
			out = append(out, values...)
		}
	}
	sort.Strings(out)
	return out
}

func TestSource_ListSendsRegistryExpansions(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)

	want := map[entity.EntityType][]string{
		entity.InvoiceItem: {"data.discounts"},
	}

	for _, typ := range reg.Listable() {
		t.Run(string(typ), func(t *testing.T) {
			def, err := reg.Lookup(typ)
			require.NoError(t, err)

			var (
				mu  sync.Mutex
				got []string
			)
			src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				got = expandValues(r)
				mu.Unlock()
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"object": "list", "url": "` + r.URL.Path + `", "has_more": false, "data": []}`))
			})

			_, err = src.List(context.Background(), typ, provider.ListOptions{Limit: 1, Expand: def.Expand})
			require.NoError(t, err)

			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, want[typ], got)
		})
	}
}

func TestSource_FetchInvoiceAndSubscriptionWithoutExpansion(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)

	for _, tc := range []struct {
		typ  entity.EntityType
		id   string
		body string
	}{
		{entity.Invoice, "in_1", `{"id": "in_1", "object": "invoice", "discount": {"id": "di_1", "object": "discount"}}`},
		{entity.Subscription, "sub_1", `{"id": "sub_1", "object": "subscription", "discount": {"id": "di_2", "object": "discount"}}`},
	} {
		t.Run(string(tc.typ), func(t *testing.T) {
			src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Empty(t, expandValues(r))
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tc.body))
			})

			def, err := reg.Lookup(tc.typ)
			require.NoError(t, err)
			rec, err := def.Fetch(context.Background(), src, tc.id)
			require.NoError(t, err)
			assert.Equal(t, tc.id, rec.ID)
		})
	}
}
