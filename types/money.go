// Package types provides value types shared across rentledger.
package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the billing currency used when none is configured.
const DefaultCurrency = "inr"

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// Money is a monetary value in the smallest currency unit (paise for INR).
// Arithmetic is integer-only.
type Money struct {
	Amount   int64  `json:"amount"`   // Smallest unit
	Currency string `json:"currency"` // ISO 4217 lowercase: "inr"
}

// INR creates a Money value in Indian Rupees (paise).
func INR(paise int64) Money { return Money{Amount: paise, Currency: "inr"} }

// New creates a Money value in the given currency.
func New(minor int64, currency string) Money {
	return Money{Amount: minor, Currency: strings.ToLower(currency)}
}

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return Money{Currency: strings.ToLower(currency)} }

// ParseMoney parses a major-unit decimal string such as "5000.00" into Money.
// More fractional digits than the currency allows is an error; nothing is rounded.
func ParseMoney(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return FromDecimal(d, currency)
}

// FromDecimal converts a major-unit decimal into Money.
func FromDecimal(d decimal.Decimal, currency string) (Money, error) {
	places := int32(currencyDecimals(currency))
	minor := d.Shift(places)
	if !minor.IsInteger() {
		return Money{}, fmt.Errorf("money: %s has more than %d decimal places", d, places)
	}
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return Money{}, fmt.Errorf("money: %s is out of range", d)
	}
	return New(minor.IntPart(), currency), nil
}

// MustParseMoney is like ParseMoney but panics on error.
func MustParseMoney(s, currency string) Money {
	m, err := ParseMoney(s, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Decimal returns the value in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -int32(currencyDecimals(m.Currency)))
}

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Subtract subtracts another Money value. Panics if currencies don't match.
func (m Money) Subtract(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both amount and currency match.
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// FormatMajor returns the major unit string without currency symbol,
// e.g. "5200.00" for INR(520000).
func (m Money) FormatMajor() string {
	return m.Decimal().StringFixed(int32(currencyDecimals(m.Currency)))
}

// String returns a human-readable string with currency symbol, e.g. "₹5200.00".
func (m Money) String() string {
	return currencySymbol(m.Currency) + m.FormatMajor()
}

// Code returns the uppercase ISO currency code, e.g. "INR".
func (m Money) Code() string {
	return strings.ToUpper(m.Currency)
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

func currencySymbol(currency string) string {
	switch strings.ToLower(currency) {
	case "inr":
		return "₹"
	case "usd":
		return "$"
	case "eur":
		return "€"
	case "gbp":
		return "£"
	}
	return strings.ToUpper(currency) + " "
}

func currencyDecimals(currency string) int {
	switch strings.ToLower(currency) {
	case "jpy", "krw", "vnd", "clp", "pyg", "idr":
		return 0
	}
	return 2
}
