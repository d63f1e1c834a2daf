package pricing

import (
	"errors"
	"fmt"

	"github.com/noah-isme/toko-pricing/internal/discount"
	"github.com/noah-isme/toko-pricing/internal/money"
	"github.com/noah-isme/toko-pricing/internal/promotion"
)

// ErrorKind classifies why an order could not be priced. Every kind is recoverable by the caller.
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "invalid_input"
	KindInvalidRule         ErrorKind = "invalid_rule"
	KindCouponNotApplicable ErrorKind = "coupon_not_applicable"
	KindCouponMinimumNotMet ErrorKind = "coupon_minimum_not_met"
	KindGiftCardUnusable    ErrorKind = "gift_card_unusable"
	KindCurrencyMismatch    ErrorKind = "currency_mismatch"
)

// ErrInvalidInput is returned for structurally invalid requests.
var ErrInvalidInput = errors.New("invalid pricing input")

// Error is returned by ComputeOrderTotal. Line is the index of the offending
// line item, or -1 when the failure is not tied to a line.
type Error struct {
	Kind ErrorKind
	Line int
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Line >= 0 {
		return fmt.Sprintf("pricing: line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("pricing: %v", e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the ErrorKind carried by err, or "" when err is not a pricing error.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func wrap(line int, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: classify(err), Line: line, Err: err}
}

// classify checks the more specific promotion sentinels before the currency one,
// since a gift card in a foreign currency matches both.
func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, discount.ErrInvalidRule):
		return KindInvalidRule
	case errors.Is(err, promotion.ErrCouponNotApplicable):
		return KindCouponNotApplicable
	case errors.Is(err, promotion.ErrCouponMinimumNotMet):
		return KindCouponMinimumNotMet
	case errors.Is(err, promotion.ErrGiftCardUnusable):
		return KindGiftCardUnusable
	case errors.Is(err, money.ErrCurrencyMismatch):
		return KindCurrencyMismatch
	default:
		return KindInvalidInput
	}
}
