package promotion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/money"
)

var (
	// ErrCouponNotApplicable is returned when the coupon does not cover the cart's scope.
	ErrCouponNotApplicable = errors.New("coupon not applicable")
	// ErrCouponMinimumNotMet indicates the cart subtotal is below the coupon's minimum purchase.
	ErrCouponMinimumNotMet = errors.New("coupon minimum purchase not met")
	// ErrGiftCardUnusable is returned for inactive gift cards or cards in another currency.
	ErrGiftCardUnusable = errors.New("gift card unusable")
)

// Scope is the cart category a coupon is restricted to.
type Scope string

const (
	ScopeTickets Scope = "tickets"
	ScopeShop    Scope = "shop"
	ScopeBoth    Scope = "both"
)

// ParseScope normalises a scope string. Empty input maps to ScopeBoth.
func ParseScope(value string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(value))) {
	case ScopeTickets:
		return ScopeTickets, nil
	case ScopeShop:
		return ScopeShop, nil
	case ScopeBoth, "":
		return ScopeBoth, nil
	default:
		return "", fmt.Errorf("unknown scope %q", value)
	}
}

// Merge combines two cart scopes: mixing tickets and shop items yields ScopeBoth.
func (s Scope) Merge(other Scope) Scope {
	switch {
	case s == "":
		return other
	case other == "" || s == other:
		return s
	default:
		return ScopeBoth
	}
}

// Covers reports whether a coupon restricted to s may be used on a cart of the given scope.
// A mixed cart accepts coupons of either scope.
func (s Scope) Covers(cart Scope) bool {
	return s == ScopeBoth || cart == ScopeBoth || s == cart
}

// DiscountType selects how a coupon value is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon captures a coupon already checked for existence and validity by its store.
type Coupon struct {
	Code         string
	DiscountType DiscountType
	// DiscountValue is a percentage for DiscountPercentage and minor units for DiscountFixed.
	DiscountValue decimal.Decimal
	MinPurchase   money.Money
	AppliesTo     Scope
	Valid         bool
}

// GiftCard is a read-only view of a stored-value card.
type GiftCard struct {
	Code     string
	Currency string
	Balance  money.Money
	Usable   bool
}

// ApplyCoupon returns the coupon discount for the subtotal. A nil coupon yields zero.
func ApplyCoupon(subtotal money.Money, c *Coupon, scope Scope) (money.Money, error) {
	zero := money.Zero(subtotal.Currency)
	if c == nil {
		return zero, nil
	}
	if !c.Valid {
		return zero, fmt.Errorf("%w: coupon %s is not valid", ErrCouponNotApplicable, c.Code)
	}
	appliesTo := c.AppliesTo
	if appliesTo == "" {
		appliesTo = ScopeBoth
	}
	if !appliesTo.Covers(scope) {
		return zero, fmt.Errorf("%w: coupon %s is limited to %s", ErrCouponNotApplicable, c.Code, appliesTo)
	}
	if err := c.MinPurchase.CheckCurrency(subtotal.Currency); err != nil {
		return zero, fmt.Errorf("coupon %s minimum purchase: %w", c.Code, err)
	}
	if subtotal.LessThan(c.MinPurchase) {
		return zero, fmt.Errorf("%w: requires %d, subtotal %d", ErrCouponMinimumNotMet, c.MinPurchase.Amount, subtotal.Amount)
	}
	if subtotal.Amount <= 0 || c.DiscountValue.Sign() <= 0 {
		return zero, nil
	}

	var discount money.Money
	switch c.DiscountType {
	case DiscountPercentage:
		discount = money.Percent(subtotal, c.DiscountValue)
	case DiscountFixed:
		discount = money.Units(c.DiscountValue, subtotal.Currency)
	default:
		return zero, fmt.Errorf("%w: unknown discount type %q", ErrCouponNotApplicable, c.DiscountType)
	}
	return discount.Min(subtotal).NonNegative(), nil
}

// ApplyGiftCard returns how much of the card's balance covers the remaining amount.
func ApplyGiftCard(remaining money.Money, g *GiftCard) (money.Money, error) {
	zero := money.Zero(remaining.Currency)
	if g == nil {
		return zero, nil
	}
	if !g.Usable {
		return zero, fmt.Errorf("%w: gift card %s is inactive", ErrGiftCardUnusable, g.Code)
	}
	currency := g.Currency
	if currency == "" {
		currency = g.Balance.Currency
	}
	if currency != "" && money.NormalizeCurrency(currency) != remaining.Currency {
		return zero, fmt.Errorf("%w: %w: card %s, cart %s", ErrGiftCardUnusable, money.ErrCurrencyMismatch, money.NormalizeCurrency(currency), remaining.Currency)
	}
	if remaining.Amount <= 0 {
		return zero, nil
	}
	return money.New(g.Balance.Amount, remaining.Currency).NonNegative().Min(remaining), nil
}
