package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrCurrencyMismatch is returned when two amounts in different currencies are combined.
var ErrCurrencyMismatch = errors.New("currency mismatch")

var hundred = decimal.NewFromInt(100)

// Money represents a monetary value stored in minor units with its ISO-4217 currency.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// New returns an amount of minor units in the given currency.
func New(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: NormalizeCurrency(currency)}
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return New(0, currency)
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckCurrency reports ErrCurrencyMismatch when m is not denominated in currency.
// An empty currency on m is treated as "same as the cart".
func (m Money) CheckCurrency(currency string) error {
	if m.Currency == "" || m.Currency == NormalizeCurrency(currency) {
		return nil
	}
	return fmt.Errorf("%w: %s != %s", ErrCurrencyMismatch, m.Currency, NormalizeCurrency(currency))
}

// In returns m re-tagged with currency. It is used for amounts whose currency was left implicit.
func (m Money) In(currency string) Money {
	return New(m.Amount, currency)
}

// Add returns m + o. Both operands are expected to share m's currency.
func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount + o.Amount, Currency: m.Currency}
}

// Sub returns m - o. Both operands are expected to share m's currency.
func (m Money) Sub(o Money) Money {
	return Money{Amount: m.Amount - o.Amount, Currency: m.Currency}
}

// Mul returns m multiplied by an integer factor.
func (m Money) Mul(n int64) Money {
	return Money{Amount: m.Amount * n, Currency: m.Currency}
}

// Min returns the smaller of m and o.
func (m Money) Min(o Money) Money {
	if o.Amount < m.Amount {
		return Money{Amount: o.Amount, Currency: m.Currency}
	}
	return m
}

// NonNegative clamps negative amounts to zero.
func (m Money) NonNegative() Money {
	if m.Amount < 0 {
		return Money{Currency: m.Currency}
	}
	return m
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// LessThan compares amounts, ignoring currency.
func (m Money) LessThan(o Money) bool { return m.Amount < o.Amount }

// Decimal returns the amount in minor units as a decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount)
}

// String formats the amount in major units, e.g. "121.00 EUR".
func (m Money) String() string {
	s := m.Decimal().Shift(-2).StringFixed(2)
	if m.Currency == "" {
		return s
	}
	return s + " " + m.Currency
}
