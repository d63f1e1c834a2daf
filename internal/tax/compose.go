package tax

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/money"
)

// DefaultVATName labels the synthesized VAT line for VAT payers without an explicit VAT row.
const DefaultVATName = "VAT"

// BreakdownLine is one computed tax in the order breakdown.
type BreakdownLine struct {
	Name         string          `json:"name"`
	Value        decimal.Decimal `json:"value"`
	ValueType    ValueType       `json:"valueType"`
	TaxAmount    money.Money     `json:"taxAmount"`
	AddedToPrice bool            `json:"addedToPrice"`
	IsVAT        bool            `json:"isVat"`
	Source       Source          `json:"source"`
}

// Composition aggregates the taxes computed for a base amount.
type Composition struct {
	Breakdown  []BreakdownLine
	TaxesToAdd money.Money
	VATAmount  money.Money
	VATRate    decimal.Decimal
}

// Compose computes every entry against the same base; taxes never compound.
// VAT is extracted from the base for display and never added to the payable total.
func Compose(base money.Money, entries []Entry, vatPayer bool, standardRate decimal.Decimal) Composition {
	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(a, b int) bool { return ordered[a].Priority > ordered[b].Priority })

	out := Composition{
		TaxesToAdd: money.Zero(base.Currency),
		VATAmount:  money.Zero(base.Currency),
		VATRate:    decimal.Zero,
	}
	var vatLines, otherLines []BreakdownLine
	for _, e := range ordered {
		if e.IsVAT {
			if !vatPayer {
				continue
			}
			vatLines = append(vatLines, extractVAT(base, e))
			continue
		}
		amount := amountFor(base, e)
		if e.AddedToPrice {
			out.TaxesToAdd = out.TaxesToAdd.Add(amount)
		}
		otherLines = append(otherLines, BreakdownLine{
			Name:         e.Name,
			Value:        e.Value,
			ValueType:    e.ValueType,
			TaxAmount:    amount,
			AddedToPrice: e.AddedToPrice,
			Source:       e.Source,
		})
	}
	if vatPayer && len(vatLines) == 0 {
		vatLines = append(vatLines, extractVAT(base, Entry{
			Name:      DefaultVATName,
			Value:     standardRate,
			ValueType: ValuePercent,
			IsVAT:     true,
			Source:    SourceDefault,
		}))
	}

	rateSet := false
	for _, line := range vatLines {
		out.VATAmount = out.VATAmount.Add(line.TaxAmount)
		if !rateSet && line.ValueType == ValuePercent {
			out.VATRate = line.Value
			rateSet = true
		}
	}
	out.Breakdown = make([]BreakdownLine, 0, len(vatLines)+len(otherLines))
	out.Breakdown = append(out.Breakdown, vatLines...)
	out.Breakdown = append(out.Breakdown, otherLines...)
	return out
}

func amountFor(base money.Money, e Entry) money.Money {
	if e.ValueType == ValueFixed {
		return money.Units(e.Value, base.Currency)
	}
	return money.Percent(base, e.Value)
}

func extractVAT(base money.Money, e Entry) BreakdownLine {
	var amount money.Money
	if e.ValueType == ValueFixed {
		amount = money.Units(e.Value, base.Currency).Min(base).NonNegative()
	} else {
		amount = money.ExtractInclusive(base, e.Value)
	}
	return BreakdownLine{
		Name:      e.Name,
		Value:     e.Value,
		ValueType: e.ValueType,
		TaxAmount: amount,
		IsVAT:     true,
		Source:    e.Source,
	}
}
