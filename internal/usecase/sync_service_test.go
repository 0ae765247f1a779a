package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/coordinator"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/stripe-notion-sync/internal/domain/errors"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/registry"
	pkgerrors "github.com/wekeepgrowing/stripe-notion-sync/pkg/errors"
	"github.com/wekeepgrowing/stripe-notion-sync/pkg/messaging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func addCustomerAndCharge(h *harness) {
	h.source.Add(entity.Customer, map[string]interface{}{
		"id":     "cu_1",
		"object": "customer",
		"name":   "Jane Doe",
		"email":  "jane@example.com",
	})
	h.source.Add(entity.Charge, map[string]interface{}{
		"id":       "ch_1",
		"object":   "charge",
		"customer": "cu_1",
		"amount":   float64(1999),
		"currency": "usd",
		"status":   "succeeded",
	})
}

func TestSyncEntity_ResolvesMissingDependencyFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "customer", "charge")
	addCustomerAndCharge(h)

	result, err := h.svc.SyncEntity(ctx, testTenant, entity.Charge, "ch_1", false)
	require.NoError(t, err)
	assert.True(t, result.Written)

	customerPage := h.dest.Find("db-customer", "cu_1")
	chargePage := h.dest.Find("db-charge", "ch_1")
	require.NotEmpty(t, customerPage)
	require.NotEmpty(t, chargePage)
	assert.Equal(t, chargePage, result.DestinationID)

	// customer was written before the charge that links to it
	require.Equal(t, 2, h.dest.WriteCount())
	assert.Equal(t, customerPage, h.dest.Writes[0].RecordID)
	assert.Equal(t, []string{customerPage}, h.dest.Page(chargePage)["Customer"].Relation)
	assert.True(t, h.dest.Page(chargePage)["Payment Intent"].IsNull())

	customerMapping, err := h.mappings.Get(ctx, testTenant, entity.Customer, "cu_1")
	require.NoError(t, err)
	require.NotNil(t, customerMapping)
	assert.Equal(t, customerPage, customerMapping.DestinationID)

	chargeMapping, err := h.mappings.Get(ctx, testTenant, entity.Charge, "ch_1")
	require.NoError(t, err)
	require.NotNil(t, chargeMapping)
	assert.Equal(t, chargePage, chargeMapping.DestinationID)

	// a second unforced sync is served from the mapping cache
	again, err := h.svc.SyncEntity(ctx, testTenant, entity.Charge, "ch_1", false)
	require.NoError(t, err)
	assert.Equal(t, chargePage, again.DestinationID)
	assert.False(t, again.Written)
	assert.Equal(t, 2, h.dest.WriteCount())
	assert.Equal(t, 1, h.source.FetchCount(entity.Charge, "ch_1"))
}

func TestSyncEntity_ForceRewritesSamePage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "customer")
	addCustomerAndCharge(h)

	first, err := h.svc.SyncEntity(ctx, testTenant, entity.Customer, "cu_1", false)
	require.NoError(t, err)
	before, err := h.mappings.Get(ctx, testTenant, entity.Customer, "cu_1")
	require.NoError(t, err)

	forced, err := h.svc.SyncEntity(ctx, testTenant, entity.Customer, "cu_1", true)
	require.NoError(t, err)
	assert.True(t, forced.Written)
	assert.Equal(t, first.DestinationID, forced.DestinationID)

	require.Equal(t, 2, h.dest.WriteCount())
	assert.False(t, h.dest.Writes[1].Created)

	after, err := h.mappings.Get(ctx, testTenant, entity.Customer, "cu_1")
	require.NoError(t, err)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestSyncEntity_FindsExistingPageByNaturalKey(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "customer")
	addCustomerAndCharge(h)

	// a page written before the mapping store existed
	existing, err := h.dest.Create(ctx, "db-customer", entity.Properties{"ID": entity.Title("cu_1")})
	require.NoError(t, err)

	result, err := h.svc.SyncEntity(ctx, testTenant, entity.Customer, "cu_1", false)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, result.DestinationID)
	assert.Equal(t, 2, h.dest.WriteCount())
	assert.Equal(t, "Jane Doe", *h.dest.Page(existing.ID)["Name"].Text)
}

func TestSyncEntity_SkipsUnconfiguredType(t *testing.T) {
	h := newHarness(t, "customer")

	result, err := h.svc.SyncEntity(context.Background(), testTenant, entity.Product, "prod_1", false)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, h.source.Fetches)
	assert.Zero(t, h.dest.WriteCount())
}

func TestSyncEntity_UnknownTenantAndType(t *testing.T) {
	h := newHarness(t, "customer")

	_, err := h.svc.SyncEntity(context.Background(), "nobody", entity.Customer, "cu_1", false)
	assert.ErrorIs(t, err, domainErrors.ErrUnknownTenant)

	_, err = h.svc.SyncEntity(context.Background(), testTenant, entity.EntityType("refund"), "re_1", false)
	assert.ErrorIs(t, err, domainErrors.ErrUnknownEntityType)
}

func TestSyncEntity_OptionalDependencyFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "customer", "charge", "payment_intent")
	addCustomerAndCharge(h)
	h.source.Add(entity.Charge, map[string]interface{}{
		"id":             "ch_2",
		"object":         "charge",
		"customer":       "cu_1",
		"payment_intent": "pi_1",
	})
	h.source.FetchErrors[entity.MappingKey(entity.PaymentIntent, "pi_1")] = &domainErrors.TransientError{Op: "GET /v1/payment_intents/pi_1", Cause: context.DeadlineExceeded}

	result, err := h.svc.SyncEntity(ctx, testTenant, entity.Charge, "ch_2", false)
	require.NoError(t, err)
	assert.True(t, result.Written)
	require.Len(t, result.DependencyErrors, 1)
	assert.Contains(t, result.DependencyErrors[0], "payment_intent")

	page := h.dest.Page(result.DestinationID)
	assert.True(t, page["Payment Intent"].IsNull())
	assert.Len(t, page["Customer"].Relation, 1)

	mapping, err := h.mappings.Get(ctx, testTenant, entity.PaymentIntent, "pi_1")
	require.NoError(t, err)
	assert.Nil(t, mapping)
}

func TestSyncEntity_MissingRequiredDependencyFailsRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "price", "product")
	h.source.Add(entity.Price, map[string]interface{}{"id": "price_1", "object": "price"})

	_, err := h.svc.SyncEntity(ctx, testTenant, entity.Price, "price_1", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrMissingRequiredDependency)
	assert.Zero(t, h.dest.WriteCount())

	recorded, err := h.errors.Get(ctx, testTenant, entity.Price)
	require.NoError(t, err)
	require.NotNil(t, recorded)
	assert.Equal(t, entity.SyncErrorDependency, recorded.Kind)

	mapping, err := h.mappings.Get(ctx, testTenant, entity.Price, "price_1")
	require.NoError(t, err)
	assert.Nil(t, mapping)
}

func TestSyncEntity_ErrorFlags(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "customer", "product")
	addCustomerAndCharge(h)
	h.source.Add(entity.Product, map[string]interface{}{"id": "prod_1", "object": "product", "name": "Pro"})

	// validation failures are recorded per type
	h.dest.Err = &domainErrors.DestinationError{StatusCode: 400, APICode: "validation_error", Message: "Name is not a property"}
	_, err := h.svc.SyncEntity(ctx, testTenant, entity.Product, "prod_1", false)
	require.Error(t, err)
	productErr, err := h.errors.Get(ctx, testTenant, entity.Product)
	require.NoError(t, err)
	require.NotNil(t, productErr)
	assert.Equal(t, entity.SyncErrorDestinationWrite, productErr.Kind)

	// an auth failure sets the tenant-wide flag instead
	h.dest.Err = &domainErrors.DestinationError{StatusCode: 401, APICode: "unauthorized", Message: "API token is invalid."}
	_, err = h.svc.SyncEntity(ctx, testTenant, entity.Customer, "cu_1", false)
	require.Error(t, err)
	flag, err := h.errors.Get(ctx, testTenant, "")
	require.NoError(t, err)
	require.NotNil(t, flag)
	assert.Equal(t, entity.SyncErrorUpstreamAuth, flag.Kind)
	customerErr, err := h.errors.Get(ctx, testTenant, entity.Customer)
	require.NoError(t, err)
	assert.Nil(t, customerErr)

	// while the flag is set other failures are not recorded per type
	h.dest.Err = &domainErrors.DestinationError{StatusCode: 400, APICode: "validation_error", Message: "bad"}
	_, err = h.svc.SyncEntity(ctx, testTenant, entity.Customer, "cu_1", false)
	require.Error(t, err)
	customerErr, err = h.errors.Get(ctx, testTenant, entity.Customer)
	require.NoError(t, err)
	assert.Nil(t, customerErr)

	// a success clears the flag and the type's own error
	h.dest.Err = nil
	_, err = h.svc.SyncEntity(ctx, testTenant, entity.Product, "prod_1", false)
	require.NoError(t, err)
	list, err := h.svc.SyncErrors(ctx, testTenant)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSyncEntity_ConcurrentCallersShareOneWrite(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "customer")
	addCustomerAndCharge(h)

	const callers = 16
	var wg sync.WaitGroup
	ids := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := h.svc.SyncEntity(ctx, testTenant, entity.Customer, "cu_1", false)
			errs[i] = err
			if err == nil {
				ids[i] = result.DestinationID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, h.dest.WriteCount())
}

func TestSyncEntity_ProcessesEmbeddedChildren(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "invoice", "line_item", "discount", "coupon")
	h.source.Add(entity.Coupon, map[string]interface{}{"id": "co_1", "object": "coupon", "percent_off": float64(10)})
	h.source.Add(entity.Invoice, map[string]interface{}{
		"id":     "in_1",
		"object": "invoice",
		"status": "paid",
		"discount": map[string]interface{}{
			"id":     "di_1",
			"object": "discount",
			"coupon": map[string]interface{}{"id": "co_1", "object": "coupon"},
		},
		"lines": map[string]interface{}{
			"object": "list",
			"data": []interface{}{
				map[string]interface{}{"id": "il_1", "object": "line_item", "amount": float64(500), "currency": "usd"},
				map[string]interface{}{"id": "il_2", "object": "line_item", "amount": float64(700), "currency": "usd"},
			},
		},
	})
	h.dest.FailKeys["il_2"] = &domainErrors.DestinationError{StatusCode: 400, APICode: "validation_error", Message: "bad line"}

	result, err := h.svc.SyncEntity(ctx, testTenant, entity.Invoice, "in_1", false)
	require.NoError(t, err)
	assert.Equal(t, ChildStats{Processed: 2, Failed: 1}, result.Children)

	invoicePage := result.DestinationID
	linePage := h.dest.Find("db-line_item", "il_1")
	require.NotEmpty(t, linePage)
	assert.Equal(t, []string{invoicePage}, h.dest.Page(linePage)["Invoice"].Relation)
	assert.Empty(t, h.dest.Find("db-line_item", "il_2"))

	discountPage := h.dest.Find("db-discount", "di_1")
	require.NotEmpty(t, discountPage)
	assert.Equal(t, []string{invoicePage}, h.dest.Page(discountPage)["Invoice"].Relation)
	assert.Equal(t, []string{h.dest.Find("db-coupon", "co_1")}, h.dest.Page(discountPage)["Coupon"].Relation)

	// the parent commit stands despite the failed child
	mapping, err := h.mappings.Get(ctx, testTenant, entity.Invoice, "in_1")
	require.NoError(t, err)
	require.NotNil(t, mapping)
	assert.Equal(t, invoicePage, mapping.DestinationID)
}

func TestEmbedded_FillsParentFieldAndID(t *testing.T) {
	parent := entity.NewRecord(entity.Subscription, map[string]interface{}{
		"id": "sub_1",
		"items": map[string]interface{}{
			"data": []interface{}{
				map[string]interface{}{"object": "subscription_item", "quantity": float64(2)},
			},
		},
		"discount": map[string]interface{}{"object": "discount", "subscription": "sub_other"},
	})

	items := embedded(parent, registryChild(t, entity.Subscription, entity.SubscriptionItem))
	require.Len(t, items, 1)
	assert.Equal(t, "sub_1_subscription_item_0", items[0].ID)
	assert.Equal(t, "sub_1", items[0].String("subscription"))

	discounts := embedded(parent, registryChild(t, entity.Subscription, entity.Discount))
	require.Len(t, discounts, 1)
	assert.Equal(t, "sub_1_discount", discounts[0].ID)
	assert.Equal(t, "sub_other", discounts[0].String("subscription"))

	// the parent payload is left untouched
	_, ok := parent.Object("discount")["id"]
	assert.False(t, ok)
}

func TestSyncEntity_PublishesEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	pubsub := messaging.FromClient(client)

	messages, err := pubsub.Subscribe(ctx, EventChannel(testTenant))
	require.NoError(t, err)

	h := newHarness(t, "customer")
	addCustomerAndCharge(h)
	svc := h.newService(t, WithPublisher(pubsub))

	result, err := svc.SyncEntity(ctx, testTenant, entity.Customer, "cu_1", false)
	require.NoError(t, err)

	select {
	case msg := <-messages:
		var event SyncEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, testTenant, event.TenantID)
		assert.Equal(t, entity.Customer, event.EntityType)
		assert.Equal(t, "cu_1", event.SourceID)
		assert.Equal(t, result.DestinationID, event.DestinationID)
	case <-ctx.Done():
		t.Fatal("sync event was not published")
	}
}

func TestSyncEntity_FailureIsLoggedWithErrorCode(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "product")
	h.source.Add(entity.Product, map[string]interface{}{"id": "prod_1", "object": "product", "name": "Pro"})
	h.dest.Err = &domainErrors.DestinationError{StatusCode: 400, APICode: "validation_error", Message: "Name is not a property"}

	reg, err := registry.Default()
	require.NoError(t, err)
	core, logs := observer.New(zapcore.WarnLevel)
	coords := coordinator.NewManager(h.mappings, zap.NewNop(), coordinator.WithClock(h.clock.Now))
	svc := NewSyncService(reg, h.tenants, &fakeProviders{source: h.source, dest: h.dest}, coords, h.errors, zap.New(core))

	_, err = svc.SyncEntity(ctx, testTenant, entity.Product, "prod_1", false)
	require.Error(t, err)

	failures := logs.FilterMessage("Entity sync failed").All()
	require.Len(t, failures, 1)
	fields := failures[0].ContextMap()
	assert.Equal(t, pkgerrors.ErrDestinationWrite, fields["error_code"])
	assert.Equal(t, "product", fields["entity_type"])
	assert.Equal(t, testTenant, fields["tenant_id"])
}
