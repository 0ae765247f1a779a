package stripeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/stripe-notion-sync/internal/domain/errors"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/provider"
	"go.uber.org/zap"
)

// iterator is the shared surface of the typed stripe-go list iterators.
type iterator interface {
	Next() bool
	Current() interface{}
	Err() error
	Meta() *stripe.ListMeta
}

// Source reads Stripe objects with one tenant's secret key.
type Source struct {
	api    *client.API
	logger *zap.Logger
}

// NewSource creates a source for the given secret key. backends may be nil to
// use the default Stripe API endpoints.
func NewSource(secretKey string, backends *stripe.Backends, logger *zap.Logger) *Source {
	return &Source{
		api:    client.New(secretKey, backends),
		logger: logger,
	}
}

// NewBackends points every Stripe backend at baseURL.
func NewBackends(baseURL string, httpClient *http.Client) *stripe.Backends {
	cfg := &stripe.BackendConfig{
		URL:               stripe.String(baseURL),
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	return &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
}

func params(ctx context.Context, expand []string) stripe.Params {
	p := stripe.Params{Context: ctx}
	for _, e := range expand {
		p.AddExpand(e)
	}
	return p
}

func listParams(ctx context.Context, opts provider.ListOptions) stripe.ListParams {
	p := stripe.ListParams{Context: ctx, Single: true}
	if opts.Limit > 0 {
		p.Limit = stripe.Int64(opts.Limit)
	}
	if opts.StartingAfter != "" {
		p.StartingAfter = stripe.String(opts.StartingAfter)
	}
	for _, e := range opts.Expand {
		p.AddExpand("data." + e)
	}
	return p
}

// Fetch retrieves one object by ID.
func (s *Source) Fetch(ctx context.Context, t entity.EntityType, id string, expand []string) (*entity.Record, error) {
	obj, err := s.get(ctx, t, id, params(ctx, expand))
	if err != nil {
		return nil, s.wrap(t, id, err)
	}
	rec, err := toRecord(t, obj)
	if err != nil {
		return nil, &domainErrors.SourceError{EntityType: t, SourceID: id, Cause: err}
	}
	return rec, nil
}

func (s *Source) get(ctx context.Context, t entity.EntityType, id string, p stripe.Params) (interface{}, error) {
	switch t {
	case entity.Customer:
		return s.api.Customers.Get(id, &stripe.CustomerParams{Params: p})
	case entity.Product:
		return s.api.Products.Get(id, &stripe.ProductParams{Params: p})
	case entity.Price:
		return s.api.Prices.Get(id, &stripe.PriceParams{Params: p})
	case entity.Coupon:
		return s.api.Coupons.Get(id, &stripe.CouponParams{Params: p})
	case entity.PromotionCode:
		return s.api.PromotionCodes.Get(id, &stripe.PromotionCodeParams{Params: p})
	case entity.PaymentIntent:
		return s.api.PaymentIntents.Get(id, &stripe.PaymentIntentParams{Params: p})
	case entity.Charge:
		return s.api.Charges.Get(id, &stripe.ChargeParams{Params: p})
	case entity.Invoice:
		return s.api.Invoices.Get(id, &stripe.InvoiceParams{Params: p})
	case entity.InvoiceItem:
		return s.api.InvoiceItems.Get(id, &stripe.InvoiceItemParams{Params: p})
	case entity.Subscription:
		return s.api.Subscriptions.Get(id, &stripe.SubscriptionParams{Params: p})
	case entity.CreditNote:
		return s.api.CreditNotes.Get(id, &stripe.CreditNoteParams{Params: p})
	case entity.Dispute:
		return s.api.Disputes.Get(id, &stripe.DisputeParams{Params: p})
	}
	return nil, fmt.Errorf("%s: %w", t, domainErrors.ErrNotFetchable)
}

// List returns one page after opts.StartingAfter.
func (s *Source) List(ctx context.Context, t entity.EntityType, opts provider.ListOptions) (*provider.Page, error) {
	it, err := s.list(t, listParams(ctx, opts))
	if err != nil {
		return nil, err
	}

	page := &provider.Page{}
	for it.Next() {
		rec, err := toRecord(t, it.Current())
		if err != nil {
			return nil, &domainErrors.SourceError{EntityType: t, Cause: err}
		}
		page.Records = append(page.Records, rec)
	}
	if err := it.Err(); err != nil {
		return nil, s.wrap(t, "", err)
	}
	if meta := it.Meta(); meta != nil {
		page.HasMore = meta.HasMore
	}

	s.logger.Debug("Listed Stripe page",
		zap.String("entity_type", string(t)),
		zap.String("starting_after", opts.StartingAfter),
		zap.Int("count", len(page.Records)),
		zap.Bool("has_more", page.HasMore))
	return page, nil
}

func (s *Source) list(t entity.EntityType, p stripe.ListParams) (iterator, error) {
	switch t {
	case entity.Customer:
		return s.api.Customers.List(&stripe.CustomerListParams{ListParams: p}), nil
	case entity.Product:
		return s.api.Products.List(&stripe.ProductListParams{ListParams: p}), nil
	case entity.Price:
		return s.api.Prices.List(&stripe.PriceListParams{ListParams: p}), nil
	case entity.Coupon:
		return s.api.Coupons.List(&stripe.CouponListParams{ListParams: p}), nil
	case entity.PromotionCode:
		return s.api.PromotionCodes.List(&stripe.PromotionCodeListParams{ListParams: p}), nil
	case entity.PaymentIntent:
		return s.api.PaymentIntents.List(&stripe.PaymentIntentListParams{ListParams: p}), nil
	case entity.Charge:
		return s.api.Charges.List(&stripe.ChargeListParams{ListParams: p}), nil
	case entity.Invoice:
		return s.api.Invoices.List(&stripe.InvoiceListParams{ListParams: p}), nil
	case entity.InvoiceItem:
		return s.api.InvoiceItems.List(&stripe.InvoiceItemListParams{ListParams: p}), nil
	case entity.Subscription:
		// canceled subscriptions are only listed with status=all
		return s.api.Subscriptions.List(&stripe.SubscriptionListParams{ListParams: p, Status: stripe.String("all")}), nil
	case entity.CreditNote:
		return s.api.CreditNotes.List(&stripe.CreditNoteListParams{ListParams: p}), nil
	case entity.Dispute:
		return s.api.Disputes.List(&stripe.DisputeListParams{ListParams: p}), nil
	}
	return nil, &domainErrors.ConfigurationError{Reason: "entity type is not listable", EntityType: t}
}

// toRecord re-encodes a stripe-go object into the generic record shape.
// Unexpanded references decode as objects carrying only an ID.
func toRecord(t entity.EntityType, obj interface{}) (*entity.Record, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	return entity.DecodeRecord(t, raw)
}

func (s *Source) wrap(t entity.EntityType, id string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return &domainErrors.SourceError{EntityType: t, SourceID: id, Cause: fmt.Errorf("%w: %s", domainErrors.ErrNotFound, stripeErr.Msg)}
		}
		s.logger.Warn("Stripe request failed",
			zap.String("entity_type", string(t)),
			zap.String("source_id", id),
			zap.Int("status", stripeErr.HTTPStatusCode),
			zap.String("code", string(stripeErr.Code)),
			zap.String("request_id", stripeErr.RequestID))
	}
	return &domainErrors.SourceError{EntityType: t, SourceID: id, Cause: err}
}
