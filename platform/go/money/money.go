// Package money holds currency metadata and the rounding rules used for every
// amount handled by the rental engine. Amounts are decimal.Decimal values; the
// minor-unit precision comes from the currency, never from a hardcoded constant.
package money

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency describes an ISO 4217 currency and how many decimals its minor unit carries.
type Currency struct {
	Code     string
	Decimals int32
}

// Known currencies. The CFA franc zones (XOF, XAF) have no minor unit.
var (
	XOF = Currency{Code: "XOF", Decimals: 0}
	XAF = Currency{Code: "XAF", Decimals: 0}
	EUR = Currency{Code: "EUR", Decimals: 2}
	USD = Currency{Code: "USD", Decimals: 2}
	MAD = Currency{Code: "MAD", Decimals: 2}
)

var registry = map[string]Currency{
	XOF.Code: XOF,
	XAF.Code: XAF,
	EUR.Code: EUR,
	USD.Code: USD,
	MAD.Code: MAD,
}

// ErrUnknownCurrency is returned by Lookup for codes outside the registry.
var ErrUnknownCurrency = errors.New("unknown currency")

// Lookup resolves a currency code (case-insensitive).
func Lookup(code string) (Currency, error) {
	c, ok := registry[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Currency{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return c, nil
}

// Codes lists the registered currency codes in alphabetical order.
func Codes() []string {
	out := make([]string, 0, len(registry))
	for code := range registry {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Round rounds half away from zero to the currency's minor unit.
func (c Currency) Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(c.Decimals)
}

// Percent returns round(amount * rate).
func (c Currency) Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return c.Round(amount.Mul(rate))
}

// ClampZero floors negative values at zero.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Format renders an amount with the currency code, e.g. "100000 XOF".
func (c Currency) Format(d decimal.Decimal) string {
	return c.Round(d).StringFixed(c.Decimals) + " " + c.Code
}

func (c Currency) String() string { return c.Code }
