package registry

import (
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
)

// ref extracts an expandable reference at path.
func ref(path string) func(*entity.Record) string {
	return func(rec *entity.Record) string {
		return rec.RefID(path)
	}
}

func required(target entity.EntityType, path string) Dependency {
	return Dependency{Target: target, ExtractID: ref(path), Required: true}
}

func optional(target entity.EntityType, path string) Dependency {
	return Dependency{Target: target, ExtractID: ref(path)}
}

// discountChild attaches the single discount object of a parent payload.
func discountChild(parentField string) Child {
	return Child{Type: entity.Discount, Path: "discount", Single: true, ParentField: parentField}
}

// Definitions returns the Stripe entity definitions in declaration order.
func Definitions() []*Definition {
	return []*Definition{
		{
			Type:       entity.Customer,
			Fetchable:  true,
			Listable:   true,
			NaturalKey: NaturalKey,
			Convert:    convertCustomer,
			Children:   []Child{discountChild("customer")},
		},
		{
			Type:       entity.Product,
			Fetchable:  true,
			Listable:   true,
			NaturalKey: NaturalKey,
			Convert:    convertProduct,
		},
		{
			Type:         entity.Price,
			Dependencies: []Dependency{required(entity.Product, "product")},
			Fetchable:    true,
			Listable:     true,
			NaturalKey:   NaturalKey,
			Convert:      convertPrice,
		},
		{
			Type:       entity.Coupon,
			Fetchable:  true,
			Listable:   true,
			NaturalKey: NaturalKey,
			Convert:    convertCoupon,
		},
		{
			Type: entity.PromotionCode,
			Dependencies: []Dependency{
				required(entity.Coupon, "coupon"),
				optional(entity.Customer, "customer"),
			},
			Fetchable:  true,
			Listable:   true,
			NaturalKey: NaturalKey,
			Convert:    convertPromotionCode,
		},
		{
			Type:         entity.PaymentIntent,
			Dependencies: []Dependency{optional(entity.Customer, "customer")},
			Fetchable:    true,
			Listable:     true,
			NaturalKey:   NaturalKey,
			Convert:      convertPaymentIntent,
		},
		{
			Type: entity.Charge,
			Dependencies: []Dependency{
				optional(entity.Customer, "customer"),
				optional(entity.PaymentIntent, "payment_intent"),
			},
			Fetchable:  true,
			Listable:   true,
			NaturalKey: NaturalKey,
			Convert:    convertCharge,
		},
		{
			Type: entity.Invoice,
			Dependencies: []Dependency{
				optional(entity.Customer, "customer"),
				optional(entity.Subscription, "subscription"),
			},
			Fetchable:  true,
			Listable:   true,
			NaturalKey: NaturalKey,
			Convert:    convertInvoice,
			Children: []Child{
				{Type: entity.LineItem, Path: "lines.data", ParentField: "invoice"},
				discountChild("invoice"),
			},
		},
		{
			Type: entity.InvoiceItem,
			Dependencies: []Dependency{
				required(entity.Customer, "customer"),
				optional(entity.Invoice, "invoice"),
				optional(entity.Price, "price"),
				optional(entity.Subscription, "subscription"),
			},
			Fetchable:  true,
			Listable:   true,
			Expand:     []string{"discounts"},
			NaturalKey: NaturalKey,
			Convert:    convertInvoiceItem,
			Children:   []Child{{Type: entity.Discount, Path: "discounts", ParentField: "invoice_item"}},
		},
		{
			Type:         entity.Subscription,
			Dependencies: []Dependency{required(entity.Customer, "customer")},
			Fetchable:    true,
			Listable:     true,
			NaturalKey:   NaturalKey,
			Convert:      convertSubscription,
			Children: []Child{
				{Type: entity.SubscriptionItem, Path: "items.data", ParentField: "subscription"},
				discountChild("subscription"),
			},
		},
		{
			Type: entity.SubscriptionItem,
			Dependencies: []Dependency{
				required(entity.Subscription, "subscription"),
				optional(entity.Price, "price"),
			},
			NaturalKey: NaturalKey,
			Convert:    convertSubscriptionItem,
		},
		{
			Type: entity.CreditNote,
			Dependencies: []Dependency{
				required(entity.Invoice, "invoice"),
				optional(entity.Customer, "customer"),
			},
			Fetchable:  true,
			Listable:   true,
			NaturalKey: NaturalKey,
			Convert:    convertCreditNote,
		},
		{
			Type: entity.Dispute,
			Dependencies: []Dependency{
				required(entity.Charge, "charge"),
				optional(entity.PaymentIntent, "payment_intent"),
			},
			Fetchable:  true,
			Listable:   true,
			NaturalKey: NaturalKey,
			Convert:    convertDispute,
		},
		{
			Type: entity.Discount,
			Dependencies: []Dependency{
				required(entity.Coupon, "coupon"),
				optional(entity.Customer, "customer"),
				optional(entity.PromotionCode, "promotion_code"),
				optional(entity.Subscription, "subscription"),
				optional(entity.Invoice, "invoice"),
				optional(entity.InvoiceItem, "invoice_item"),
			},
			NaturalKey: NaturalKey,
			Convert:    convertDiscount,
		},
		{
			Type: entity.LineItem,
			Dependencies: []Dependency{
				required(entity.Invoice, "invoice"),
				optional(entity.Price, "price"),
				optional(entity.Subscription, "subscription"),
			},
			NaturalKey: NaturalKey,
			Convert:    convertLineItem,
		},
	}
}

// Default builds the registry of every Stripe entity type and checks it
// against the declared listable set.
func Default() (*Registry, error) {
	r, err := New(Definitions())
	if err != nil {
		return nil, err
	}
	if err := r.CheckComplete(entity.ListableTypes); err != nil {
		return nil, err
	}
	return r, nil
}
