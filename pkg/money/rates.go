package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ReferenceCurrency is the currency all amounts are normalized into for
// aggregate spend comparisons.
const ReferenceCurrency = INR

// ratesToReference maps an ISO currency code to its multiplier into the
// reference currency. Static approximations: spend figures built on these are
// informational, not transactional. Live FX would replace this table.
var ratesToReference = map[string]decimal.Decimal{
	INR: decimal.NewFromInt(1),
	USD: decimal.NewFromInt(83),
	EUR: decimal.NewFromInt(90),
	GBP: decimal.NewFromInt(105),
	JPY: decimal.RequireFromString("0.55"),
	AUD: decimal.NewFromInt(55),
	CAD: decimal.NewFromInt(60),
	SGD: decimal.NewFromInt(62),
}

// RateToReference returns the multiplier converting the given currency into
// the reference currency. Unknown codes get rate 1: the amount is treated as
// already being in the reference currency rather than rejected.
func RateToReference(currencyCode string) decimal.Decimal {
	if rate, ok := ratesToReference[strings.ToUpper(currencyCode)]; ok {
		return rate
	}
	return decimal.NewFromInt(1)
}

// ToReference converts a Money value into the reference currency using the
// static rate table. A nil value converts to zero.
func ToReference(m *Money) *Money {
	if m == nil || m.m == nil {
		return Zero(ReferenceCurrency)
	}
	return m.Convert(ReferenceCurrency, RateToReference(m.Currency()))
}

// ToReferenceMinor converts an amount in minor units of the given currency
// into minor units of the reference currency.
func ToReferenceMinor(amountMinor int64, currencyCode string) int64 {
	return ToReference(New(amountMinor, currencyCode)).Amount()
}
