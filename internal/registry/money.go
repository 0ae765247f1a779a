package registry

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
)

// zeroDecimalCurrencies are charged in whole units by Stripe.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// toMajorUnits converts a Stripe minor-unit amount into the currency's major unit.
func toMajorUnits(minor int64, currency string) decimal.Decimal {
	amount := decimal.NewFromInt(minor)
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return amount
	}
	return amount.Shift(-2)
}

// money reads a minor-unit amount at path using the record's currency.
func money(rec *entity.Record, path string) entity.Property {
	minor, ok := rec.Int(path)
	if !ok {
		return entity.NumberIf(0, false)
	}
	f, _ := toMajorUnits(minor, rec.String("currency")).Float64()
	return entity.Number(f)
}

func currency(rec *entity.Record) entity.Property {
	return entity.Select(strings.ToUpper(rec.String("currency")))
}

func number(rec *entity.Record, path string) entity.Property {
	f, ok := rec.Float(path)
	return entity.NumberIf(f, ok)
}

func date(rec *entity.Record, path string) entity.Property {
	return entity.DateUnix(rec.Int(path))
}

func checkbox(rec *entity.Record, path string) entity.Property {
	return entity.Checkbox(rec.Bool(path))
}
