package discount

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/money"
)

// Spec is the loosely-typed representation of a rule as stored by catalog
// configuration: a rule_type discriminator plus the fields of every variant.
type Spec struct {
	RuleType   string          `json:"rule_type"`
	BuyQty     uint32          `json:"buy_qty,omitempty"`
	GetQty     uint32          `json:"get_qty,omitempty"`
	MinQty     uint32          `json:"min_qty,omitempty"`
	AmountOff  int64           `json:"amount_off,omitempty"`
	PercentOff decimal.Decimal `json:"percent_off"`
}

// Decode converts a Spec into a validated Rule. Unknown rule types are rejected
// instead of silently matching nothing.
func Decode(spec Spec, currency string) (Rule, error) {
	var rule Rule
	switch Kind(strings.ToLower(strings.TrimSpace(spec.RuleType))) {
	case KindBuyXGetY:
		rule = BuyXGetY{BuyQty: spec.BuyQty, GetQty: spec.GetQty}
	case KindAmountOffPerTicket:
		rule = AmountOffPerTicket{MinQty: spec.MinQty, AmountOff: money.New(spec.AmountOff, currency)}
	case KindPercentOff:
		rule = PercentOff{MinQty: spec.MinQty, Percent: spec.PercentOff}
	default:
		return nil, fmt.Errorf("%w: unknown rule_type %q", ErrInvalidRule, spec.RuleType)
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// DecodeAll decodes every spec, failing on the first invalid one.
func DecodeAll(specs []Spec, currency string) ([]Rule, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	rules := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		rule, err := Decode(spec, currency)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
