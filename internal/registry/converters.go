package registry

import (
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
)

func base(rec *entity.Record) entity.Properties {
	return entity.Properties{
		NaturalKey: entity.Title(rec.ID),
		"Livemode": checkbox(rec, "livemode"),
	}
}

func convertCustomer(rec *entity.Record, _ *entity.ResolvedDependencySet) entity.Properties {
	props := base(rec)
	props["Name"] = entity.Text(rec.String("name"))
	props["Email"] = entity.EmailAddress(rec.String("email"))
	props["Phone"] = entity.Phone(rec.String("phone"))
	props["Description"] = entity.Text(rec.String("description"))
	props["Currency"] = currency(rec)
	props["Balance"] = money(rec, "balance")
	props["Delinquent"] = checkbox(rec, "delinquent")
	props["Created"] = date(rec, "created")
	return props
}

func convertProduct(rec *entity.Record, _ *entity.ResolvedDependencySet) entity.Properties {
	props := base(rec)
	props["Name"] = entity.Text(rec.String("name"))
	props["Description"] = entity.Text(rec.String("description"))
	props["Active"] = checkbox(rec, "active")
	props["URL"] = entity.URL(rec.String("url"))
	props["Created"] = date(rec, "created")
	return props
}

func convertPrice(rec *entity.Record, deps *entity.ResolvedDependencySet) entity.Properties {
	props := base(rec)
	props["Product"] = entity.Relation(deps.Get(entity.Product))
	props["Nickname"] = entity.Text(rec.String("nickname"))
	props["Currency"] = currency(rec)
	props["Unit Amount"] = money(rec, "unit_amount")
	props["Type"] = entity.Select(rec.String("type"))
	props["Interval"] = entity.Select(rec.String("recurring.interval"))
	props["Active"] = checkbox(rec, "active")
	props["Created"] = date(rec, "created")
	return props
}

func convertCoupon(rec *entity.Record, _ *entity.ResolvedDependencySet) entity.Properties {
	props := base(rec)
	props["Name"] = entity.Text(rec.String("name"))
	props["Percent Off"] = number(rec, "percent_off")
	props["Amount Off"] = money(rec, "amount_off")
	props["Currency"] = currency(rec)
	props["Duration"] = entity.Select(rec.String("duration"))
	props["Duration In Months"] = number(rec, "duration_in_months")
	props["Times Redeemed"] = number(rec, "times_redeemed")
	props["Valid"] = checkbox(rec, "valid")
	props["Created"] = date(rec, "created")
	return props
}

func convertPromotionCode(rec *entity.Record, deps *entity.ResolvedDependencySet) entity.Properties {
	props := base(rec)
	props["Code"] = entity.Text(rec.String("code"))
	props["Coupon"] = entity.Relation(deps.Get(entity.Coupon))
	props["Customer"] = entity.Relation(deps.Get(entity.Customer))
	props["Active"] = checkbox(rec, "active")
	props["Times Redeemed"] = number(rec, "times_redeemed")
	props["Expires At"] = date(rec, "expires_at")
	props["Created"] = date(rec, "created")
	return props
}

func convertPaymentIntent(rec *entity.Record, deps *entity.ResolvedDependencySet) entity.Properties {
	props := base(rec)
	props["Customer"] = entity.Relation(deps.Get(entity.Customer))
	props["Amount"] = money(rec, "amount")
	props["Amount Received"] = money(rec, "amount_received")
	props["Currency"] = currency(rec)
	props["Status"] = entity.Select(rec.String("status"))
	props["Description"] = entity.Text(rec.String("description"))
	props["Created"] = date(rec, "created")
	return props
}

func convertCharge(rec *entity.Record, deps *entity.ResolvedDependencySet) entity.Properties {
	props := base(rec)
	props["Customer"] = entity.Relation(deps.Get(entity.Customer))
	props["Payment Intent"] = entity.Relation(deps.Get(entity.PaymentIntent))
	props["Amount"] = money(rec, "amount")
	props["Amount Refunded"] = money(rec, "amount_refunded")
	props["Currency"] = currency(rec)
	props["Status"] = entity.Select(rec.String("status"))
	props["Paid"] = checkbox(rec, "paid")
	props["Refunded"] = checkbox(rec, "refunded")
	props["Receipt URL"] = entity.URL(rec.String("receipt_url"))
	props["Description"] = entity.Text(rec.String("description"))
	props["Created"] = date(rec, "created")
	return props
}

func convertInvoice(rec *entity.Record, deps *entity.ResolvedDependencySet) entity.Properties {
	props := base(rec)
	props["Number"] = entity.Text(rec.String("number"))
	props["Customer"] = entity.Relation(deps.Get(entity.Customer))
	props["Subscription"] = entity.Relation(deps.Get(entity.Subscription))
	props["Customer Email"] = entity.EmailAddress(rec.String("customer_email"))
	props["Status"] = entity.Select(rec.String("status"))
	props["Currency"] = currency(rec)
	props["Amount Due"] = money(rec, "amount_due")
	props["Amount Paid"] = money(rec, "amount_paid")
	props["Total"] = money(rec, "total")
	props["Hosted Invoice URL"] = entity.URL(rec.String("hosted_invoice_url"))
	props["Due Date"] = date(rec, "due_date")
	props["Created"] = date(rec, "created")
	return props
}

func convertInvoiceItem(rec *entity.Record, deps *entity.ResolvedDependencySet) entity.Properties {
	props := base(rec)
	props["Customer"] = entity.Relation(deps.Get(entity.Customer))
	props["Invoice"] = entity.Relation(deps.Get(entity.Invoice))
	props["Price"] = entity.Relation(deps.Get(entity.Price))
	props["Subscription"] = entity.Relation(deps.Get(entity.Subscription))
	props["Description"] = entity.Text(rec.String("description"))
	props["Amount"] = money(rec, "amount")
	props["Currency"] = currency(rec)
	props["Quantity"] = number(rec, "quantity")
	props["Date"] = date(rec, "date")
	return props
}

func convertSubscription(rec *entity.Record, deps *entity.ResolvedDependencySet) entity.Properties {
	props := base(rec)
	props["Customer"] = entity.Relation(deps.Get(entity.Customer))
	props["Status"] = entity.Select(rec.String("status"))
	props["Collection Method"] = entity.Select(rec.String("collection_method"))
	props["Current Period Start"] = date(rec, "current_period_start")
	props["Current Period End"] = date(rec, "current_period_end")
	props["Cancel At Period End"] = checkbox(rec, "cancel_at_period_end")
	props["Canceled At"] = date(rec, "canceled_at")
	props["Created"] = date(rec, "created")
	return props
}

func convertSubscriptionItem(rec *entity.Record, deps *entity.ResolvedDependencySet) entity.Properties {
	props := base(rec)
	props["Subscription"] = entity.Relation(deps.Get(entity.Subscription))
	props["Price"] = entity.Relation(deps.Get(entity.Price))
	props["Quantity"] = number(rec, "quantity")
	props["Created"] = date(rec, "created")
	return props
}

func convertCreditNote(rec *entity.Record, deps *entity.ResolvedDependencySet) entity.Properties {
	props := base(rec)
	props["Number"] = entity.Text(rec.String("number"))
	props["Invoice"] = entity.Relation(deps.Get(entity.Invoice))
	props["Customer"] = entity.Relation(deps.Get(entity.Customer))
	props["Amount"] = money(rec, "amount")
	props["Currency"] = currency(rec)
	props["Status"] = entity.Select(rec.String("status"))
	props["Reason"] = entity.Select(rec.String("reason"))
	props["Created"] = date(rec, "created")
	return props
}

func convertDispute(rec *entity.Record, deps *entity.ResolvedDependencySet) entity.Properties {
	props := base(rec)
	props["Charge"] = entity.Relation(deps.Get(entity.Charge))
	props["Payment Intent"] = entity.Relation(deps.Get(entity.PaymentIntent))
	props["Amount"] = money(rec, "amount")
	props["Currency"] = currency(rec)
	props["Status"] = entity.Select(rec.String("status"))
	props["Reason"] = entity.Select(rec.String("reason"))
	props["Created"] = date(rec, "created")
	return props
}

func convertDiscount(rec *entity.Record, deps *entity.ResolvedDependencySet) entity.Properties {
	props := entity.Properties{NaturalKey: entity.Title(rec.ID)}
	props["Coupon"] = entity.Relation(deps.Get(entity.Coupon))
	props["Customer"] = entity.Relation(deps.Get(entity.Customer))
	props["Promotion Code"] = entity.Relation(deps.Get(entity.PromotionCode))
	props["Subscription"] = entity.Relation(deps.Get(entity.Subscription))
	props["Invoice"] = entity.Relation(deps.Get(entity.Invoice))
	props["Invoice Item"] = entity.Relation(deps.Get(entity.InvoiceItem))
	props["Start"] = date(rec, "start")
	props["End"] = date(rec, "end")
	return props
}

func convertLineItem(rec *entity.Record, deps *entity.ResolvedDependencySet) entity.Properties {
	props := base(rec)
	props["Invoice"] = entity.Relation(deps.Get(entity.Invoice))
	props["Price"] = entity.Relation(deps.Get(entity.Price))
	props["Subscription"] = entity.Relation(deps.Get(entity.Subscription))
	props["Description"] = entity.Text(rec.String("description"))
	props["Amount"] = money(rec, "amount")
	props["Currency"] = currency(rec)
	props["Quantity"] = number(rec, "quantity")
	props["Period Start"] = date(rec, "period.start")
	props["Period End"] = date(rec, "period.end")
	return props
}
