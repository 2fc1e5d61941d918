// Package money holds the decimal helpers shared by the cart, checkout and
// order relay. Amounts are rupees with paisa precision.
package money

import "github.com/shopspring/decimal"

const currency = "PKR"

// Cents rounds to two decimal places, half away from zero.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Whole renders an amount the way the kitchen relay shows it: currency code
// and whole rupees, e.g. "PKR 1250".
func Whole(d decimal.Decimal) string {
	return currency + " " + d.StringFixed(0)
}

// Display renders an amount with two decimals for terminal output.
func Display(d decimal.Decimal) string {
	return currency + " " + d.StringFixed(2)
}

// Amount is a decimal that travels as a bare JSON number. Decoding accepts
// numbers and numeric strings.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount { return Amount{Decimal: d} }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	return a.Decimal.UnmarshalJSON(b)
}
