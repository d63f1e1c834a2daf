package discount

import (
	"fmt"

	"github.com/noah-isme/toko-pricing/internal/money"
)

// Outcome describes the best total found for a line and the rule that produced it.
type Outcome struct {
	Naive money.Money
	Total money.Money
	// Applied is empty when no rule beat the undiscounted total.
	Applied Kind
}

// Discount returns the amount saved against the undiscounted total.
func (o Outcome) Discount() money.Money {
	return o.Naive.Sub(o.Total)
}

// BestLineTotal returns the lowest line total achievable by applying at most one rule.
func BestLineTotal(unit money.Money, qty uint32, rules []Rule) (money.Money, error) {
	out, err := Evaluate(unit, qty, rules)
	if err != nil {
		return money.Money{}, err
	}
	return out.Total, nil
}

// Evaluate considers every rule whose threshold is met and keeps the most favourable
// one for the buyer. Rules never stack.
func Evaluate(unit money.Money, qty uint32, rules []Rule) (Outcome, error) {
	for i, rule := range rules {
		if rule == nil {
			return Outcome{}, fmt.Errorf("%w: rule %d is empty", ErrInvalidRule, i)
		}
		if err := rule.Validate(); err != nil {
			return Outcome{}, err
		}
		if r, ok := rule.(AmountOffPerTicket); ok {
			if err := r.AmountOff.CheckCurrency(unit.Currency); err != nil {
				return Outcome{}, fmt.Errorf("amount_off_per_ticket: %w", err)
			}
		}
	}
	naive := unit.Mul(int64(qty))
	out := Outcome{Naive: naive, Total: naive}
	if qty == 0 {
		return out, nil
	}
	for _, rule := range rules {
		candidate, ok := rule.candidate(unit, qty)
		if !ok {
			continue
		}
		candidate = candidate.NonNegative()
		if candidate.LessThan(out.Total) {
			out.Total = candidate
			out.Applied = rule.Kind()
		}
	}
	return out, nil
}
