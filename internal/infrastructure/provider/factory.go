package provider

import (
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/config"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/provider"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/infrastructure/provider/notion"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/infrastructure/provider/stripeapi"
	"github.com/wekeepgrowing/stripe-notion-sync/pkg/logger"
	"go.uber.org/zap"
)

// Factory creates the source and destination clients of a tenant
type Factory struct {
	notion   config.NotionConfig
	backends *stripe.Backends
	logger   *zap.Logger
}

// NewFactory creates a new provider factory. backends may be nil to use the
// default Stripe endpoints.
func NewFactory(cfg config.NotionConfig, backends *stripe.Backends, logger *zap.Logger) *Factory {
	return &Factory{
		notion:   cfg,
		backends: backends,
		logger:   logger,
	}
}

// Source returns a Stripe source using the tenant's secret key
func (f *Factory) Source(tenant *config.Tenant) (provider.Source, error) {
	if tenant.StripeSecretKey == "" {
		return nil, fmt.Errorf("tenant %s: Stripe secret key not configured", tenant.ID)
	}

	return stripeapi.NewSource(
		tenant.StripeSecretKey,
		f.backends,
		logger.ForTenant(f.logger, tenant.ID).With(zap.String("provider", "stripe")),
	), nil
}

// Destination returns a Notion client using the tenant's integration token
func (f *Factory) Destination(tenant *config.Tenant) (provider.Destination, error) {
	if tenant.NotionToken == "" {
		return nil, fmt.Errorf("tenant %s: Notion token not configured", tenant.ID)
	}

	return notion.NewClient(notion.Config{
		BaseURL:     f.notion.BaseURL,
		Token:       tenant.NotionToken,
		Version:     f.notion.Version,
		MinInterval: f.notion.MinInterval,
		MaxRetries:  f.notion.MaxRetries,
		Timeout:     f.notion.Timeout,
	}, logger.ForTenant(f.logger, tenant.ID).With(zap.String("provider", "notion"))), nil
}
