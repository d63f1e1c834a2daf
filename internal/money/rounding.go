package money

import "github.com/shopspring/decimal"

// Rounding rules used by the pricing engine. Each helper documents its mode so
// totals can be reconciled across implementations.

// Percent returns floor(m * pct / 100). Used for coupon and added-tax percentages.
func Percent(m Money, pct decimal.Decimal) Money {
	amount := m.Decimal().Mul(pct).Shift(-2).Floor()
	return Money{Amount: amount.IntPart(), Currency: m.Currency}
}

// ApplyPercentOff returns m * (1 - pct/100) truncated toward zero.
func ApplyPercentOff(m Money, pct decimal.Decimal) Money {
	factor := hundred.Sub(pct)
	amount := m.Decimal().Mul(factor).Shift(-2).Truncate(0)
	return Money{Amount: amount.IntPart(), Currency: m.Currency}
}

// ExtractInclusive returns the share of a gross amount that an inclusive rate
// represents: gross - gross/(1 + rate/100), rounded half-up to minor units.
func ExtractInclusive(gross Money, rate decimal.Decimal) Money {
	if gross.Amount == 0 || rate.Sign() <= 0 {
		return Money{Currency: gross.Currency}
	}
	num := gross.Decimal().Mul(rate)
	den := hundred.Add(rate)
	return Money{Amount: num.DivRound(den, 0).IntPart(), Currency: gross.Currency}
}

// Units converts a decimal count of minor units to Money, rounding toward negative infinity.
func Units(value decimal.Decimal, currency string) Money {
	return New(value.Floor().IntPart(), currency)
}
