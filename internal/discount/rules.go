package discount

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/money"
)

// ErrInvalidRule is returned for malformed bulk discount configuration.
var ErrInvalidRule = errors.New("invalid discount rule")

// Kind names a bulk discount rule variant.
type Kind string

const (
	KindBuyXGetY           Kind = "buy_x_get_y"
	KindAmountOffPerTicket Kind = "amount_off_per_ticket"
	KindPercentOff         Kind = "percent_off"
)

// Rule is a bulk discount rule. The set of implementations is closed to this package.
type Rule interface {
	Kind() Kind
	Validate() error
	// candidate returns the line total under this rule and whether the rule's threshold is met.
	candidate(unit money.Money, qty uint32) (money.Money, bool)
}

// BuyXGetY grants GetQty free units for every complete group of BuyQty units.
type BuyXGetY struct {
	BuyQty uint32
	GetQty uint32
}

func (BuyXGetY) Kind() Kind { return KindBuyXGetY }

func (r BuyXGetY) Validate() error {
	if r.BuyQty == 0 {
		return fmt.Errorf("%w: buy_qty must be positive", ErrInvalidRule)
	}
	return nil
}

func (r BuyXGetY) candidate(unit money.Money, qty uint32) (money.Money, bool) {
	if qty < r.BuyQty {
		return money.Money{}, false
	}
	free := uint64(qty/r.BuyQty) * uint64(r.GetQty)
	paid := int64(0)
	if free < uint64(qty) {
		paid = int64(uint64(qty) - free)
	}
	return unit.Mul(paid), true
}

// AmountOffPerTicket subtracts AmountOff from every unit once MinQty is reached.
type AmountOffPerTicket struct {
	MinQty    uint32
	AmountOff money.Money
}

func (AmountOffPerTicket) Kind() Kind { return KindAmountOffPerTicket }

func (r AmountOffPerTicket) Validate() error {
	if r.AmountOff.IsNegative() {
		return fmt.Errorf("%w: amount_off cannot be negative", ErrInvalidRule)
	}
	return nil
}

func (r AmountOffPerTicket) candidate(unit money.Money, qty uint32) (money.Money, bool) {
	if qty < r.MinQty {
		return money.Money{}, false
	}
	// Subtract per unit so a huge AmountOff floors at zero instead of overflowing.
	if r.AmountOff.Amount >= unit.Amount {
		return money.Zero(unit.Currency), true
	}
	return money.New(unit.Amount-r.AmountOff.Amount, unit.Currency).Mul(int64(qty)), true
}

// PercentOff scales the line total by (1 - Percent/100) once MinQty is reached.
type PercentOff struct {
	MinQty  uint32
	Percent decimal.Decimal
}

func (PercentOff) Kind() Kind { return KindPercentOff }

var maxPercent = decimal.NewFromInt(100)

func (r PercentOff) Validate() error {
	if r.Percent.IsNegative() || r.Percent.GreaterThan(maxPercent) {
		return fmt.Errorf("%w: percent_off must be within 0..100, got %s", ErrInvalidRule, r.Percent)
	}
	return nil
}

func (r PercentOff) candidate(unit money.Money, qty uint32) (money.Money, bool) {
	if qty < r.MinQty {
		return money.Money{}, false
	}
	return money.ApplyPercentOff(unit.Mul(int64(qty)), r.Percent), true
}
