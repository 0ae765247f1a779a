package entity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// EntityType identifies a kind of synchronized Stripe object.
type EntityType string

const (
	Customer         EntityType = "customer"
	Product          EntityType = "product"
	Price            EntityType = "price"
	Coupon           EntityType = "coupon"
	PromotionCode    EntityType = "promotion_code"
	PaymentIntent    EntityType = "payment_intent"
	Charge           EntityType = "charge"
	Invoice          EntityType = "invoice"
	InvoiceItem      EntityType = "invoice_item"
	Subscription     EntityType = "subscription"
	SubscriptionItem EntityType = "subscription_item"
	CreditNote       EntityType = "credit_note"
	Dispute          EntityType = "dispute"
	Discount         EntityType = "discount"
	LineItem         EntityType = "line_item"
)

// AllTypes is the closed set of entity types in declaration order.
var AllTypes = []EntityType{
	Customer,
	Product,
	Price,
	Coupon,
	PromotionCode,
	PaymentIntent,
	Charge,
	Invoice,
	InvoiceItem,
	Subscription,
	SubscriptionItem,
	CreditNote,
	Dispute,
	Discount,
	LineItem,
}

// ListableTypes are the types the backfill can page through, in backfill order.
// Everything else only exists embedded in a parent payload.
var ListableTypes = []EntityType{
	Customer,
	Product,
	Price,
	Coupon,
	PromotionCode,
	PaymentIntent,
	Charge,
	Invoice,
	InvoiceItem,
	Subscription,
	CreditNote,
	Dispute,
}

// stripeObjectNames maps the "object" field of a Stripe payload to its type.
var stripeObjectNames = map[string]EntityType{
	"customer":          Customer,
	"product":           Product,
	"price":             Price,
	"coupon":            Coupon,
	"promotion_code":    PromotionCode,
	"payment_intent":    PaymentIntent,
	"charge":            Charge,
	"invoice":           Invoice,
	"invoiceitem":       InvoiceItem,
	"subscription":      Subscription,
	"subscription_item": SubscriptionItem,
	"credit_note":       CreditNote,
	"dispute":           Dispute,
	"discount":          Discount,
	"line_item":         LineItem,
}

var titleCaser = cases.Title(language.English)

func (t EntityType) String() string {
	return string(t)
}

// Valid reports whether t belongs to the closed set.
func (t EntityType) Valid() bool {
	for _, known := range AllTypes {
		if known == t {
			return true
		}
	}
	return false
}

// Title is the human readable name, e.g. "Promotion Code".
func (t EntityType) Title() string {
	return titleCaser.String(strings.ReplaceAll(string(t), "_", " "))
}

// ParseEntityType accepts both entity type names and Stripe object names.
func ParseEntityType(s string) (EntityType, bool) {
	if t := EntityType(s); t.Valid() {
		return t, true
	}
	t, ok := stripeObjectNames[s]
	return t, ok
}

// FromStripeObject maps a Stripe "object" value to an entity type.
func FromStripeObject(object string) (EntityType, bool) {
	t, ok := stripeObjectNames[object]
	return t, ok
}
