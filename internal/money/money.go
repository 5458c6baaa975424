// Package money implements fixed-point currency amounts.
//
// A Money value is an integer count of minor units (cents) tagged with an
// ISO 4217 currency code. Arithmetic between two values requires the same
// currency; mixing currencies fails with ErrCurrencyMismatch.
package money

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when no currency is known, e.g. for a line item
// whose sellable has no price.
const DefaultCurrency = "USD"

// ErrCurrencyMismatch is returned when two Money values with different
// currencies are combined.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// CurrencyMismatchError names the currencies of a failed operation.
type CurrencyMismatchError struct {
	Left  string
	Right string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: %s and %s", e.Left, e.Right)
}

// Is reports whether target is ErrCurrencyMismatch.
func (e *CurrencyMismatchError) Is(target error) bool {
	return target == ErrCurrencyMismatch
}

var hundred = decimal.NewFromInt(100)

// Money is an amount in minor units of Currency.
type Money struct {
	Amount   int64  `json:"cents"`
	Currency string `json:"currency"`
}

// New returns a Money of cents minor units in currency.
func New(cents int64, currency string) Money {
	return Money{Amount: cents, Currency: normalize(currency)}
}

// Zero returns a zero amount in currency.
func Zero(currency string) Money {
	return Money{Currency: normalize(currency)}
}

// Parse converts a major-unit string such as "29.95" into Money. Amounts with
// more precision than the currency allows are rounded half away from zero.
func Parse(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, errors.Wrapf(err, "parse amount %q", s)
	}
	return FromDecimal(d, currency), nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(s, currency string) Money {
	m, err := Parse(s, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// FromDecimal converts a major-unit decimal into Money.
func FromDecimal(d decimal.Decimal, currency string) Money {
	currency = normalize(currency)
	scale := decimal.New(1, Exponent(currency))
	return Money{Amount: d.Mul(scale).Round(0).IntPart(), Currency: currency}
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -Exponent(m.Currency))
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// Add returns m + o.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + o.Amount, Currency: m.Currency}, nil
}

// Sub returns m - o.
func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - o.Amount, Currency: m.Currency}, nil
}

// Mul multiplies the amount by factor, rounding to the nearest minor unit
// (half away from zero).
func (m Money) Mul(factor decimal.Decimal) Money {
	cents := decimal.NewFromInt(m.Amount).Mul(factor).Round(0)
	return Money{Amount: cents.IntPart(), Currency: m.Currency}
}

// Percent returns round(cents * rate / 100), rate being a percentage.
func (m Money) Percent(rate decimal.Decimal) Money {
	cents := decimal.NewFromInt(m.Amount).Mul(rate).Div(hundred).Round(0)
	return Money{Amount: cents.IntPart(), Currency: m.Currency}
}

// ExcludePercent treats m as a gross amount that includes rate percent and
// returns the net part, round(cents * 100 / (100 + rate)).
func (m Money) ExcludePercent(rate decimal.Decimal) Money {
	cents := decimal.NewFromInt(m.Amount).Mul(hundred).Div(hundred.Add(rate)).Round(0)
	return Money{Amount: cents.IntPart(), Currency: m.Currency}
}

// Equal reports whether m and o have the same currency and amount.
func (m Money) Equal(o Money) bool {
	return m.Currency == o.Currency && m.Amount == o.Amount
}

// Cmp compares m and o: -1 if m < o, 0 if equal, +1 if m > o.
func (m Money) Cmp(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}
	switch {
	case m.Amount < o.Amount:
		return -1, nil
	case m.Amount > o.Amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// String formats the amount in major units followed by the currency code,
// e.g. "33.94 USD".
func (m Money) String() string {
	return m.Decimal().StringFixed(Exponent(m.Currency)) + " " + m.Currency
}

func (m Money) sameCurrency(o Money) error {
	if m.Currency != o.Currency {
		return &CurrencyMismatchError{Left: m.Currency, Right: o.Currency}
	}
	return nil
}

// Sum adds all values. The result of an empty sum is Zero(currency).
func Sum(currency string, values ...Money) (Money, error) {
	total := Zero(currency)
	if len(values) > 0 {
		total = Zero(values[0].Currency)
	}
	for _, v := range values {
		var err error
		if total, err = total.Add(v); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

func normalize(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return DefaultCurrency
	}
	return currency
}
