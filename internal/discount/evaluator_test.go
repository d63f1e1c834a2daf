package discount

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/money"
)

func eur(v int64) money.Money { return money.New(v, "EUR") }

func TestBuyXGetY(t *testing.T) {
	total, err := BestLineTotal(eur(1000), 9, []Rule{BuyXGetY{BuyQty: 3, GetQty: 1}})
	require.NoError(t, err)
	require.Equal(t, eur(6000), total)
}

func TestBuyXGetYBelowThreshold(t *testing.T) {
	total, err := BestLineTotal(eur(1000), 2, []Rule{BuyXGetY{BuyQty: 3, GetQty: 1}})
	require.NoError(t, err)
	require.Equal(t, eur(2000), total)
}

func TestBuyXGetYNeverNegative(t *testing.T) {
	total, err := BestLineTotal(eur(1000), 4, []Rule{BuyXGetY{BuyQty: 1, GetQty: 5}})
	require.NoError(t, err)
	require.Equal(t, eur(0), total)
}

func TestPercentOff(t *testing.T) {
	total, err := BestLineTotal(eur(2000), 5, []Rule{PercentOff{MinQty: 5, Percent: decimal.NewFromInt(20)}})
	require.NoError(t, err)
	require.Equal(t, eur(8000), total)
}

func TestAmountOffFlooredAtZero(t *testing.T) {
	total, err := BestLineTotal(eur(500), 3, []Rule{AmountOffPerTicket{MinQty: 2, AmountOff: eur(800)}})
	require.NoError(t, err)
	require.Equal(t, eur(0), total)
}

func TestAmountOffHugeValueFloorsAtZero(t *testing.T) {
	total, err := BestLineTotal(eur(1000), 4, []Rule{AmountOffPerTicket{AmountOff: eur(1 << 62)}})
	require.NoError(t, err)
	require.Equal(t, eur(0), total)

	total, err = BestLineTotal(eur(1000), 4, []Rule{AmountOffPerTicket{AmountOff: eur(1000)}})
	require.NoError(t, err)
	require.Equal(t, eur(0), total)
}

func TestPicksMostFavourableRule(t *testing.T) {
	rules := []Rule{
		PercentOff{MinQty: 5, Percent: decimal.NewFromInt(10)},
		AmountOffPerTicket{MinQty: 5, AmountOff: eur(150)},
		BuyXGetY{BuyQty: 4, GetQty: 1},
		PercentOff{MinQty: 50, Percent: decimal.NewFromInt(90)},
	}
	out, err := Evaluate(eur(1000), 8, rules)
	require.NoError(t, err)
	// naive 8000; 10% -> 7200; 150 off -> 6800; buy 4 get 1 -> 6000; 90% not reached.
	require.Equal(t, eur(6000), out.Total)
	require.Equal(t, KindBuyXGetY, out.Applied)
	require.Equal(t, eur(2000), out.Discount())
}

func TestNoRuleMatchesKeepsNaive(t *testing.T) {
	out, err := Evaluate(eur(1000), 2, []Rule{PercentOff{MinQty: 3, Percent: decimal.NewFromInt(50)}})
	require.NoError(t, err)
	require.Equal(t, eur(2000), out.Total)
	require.Empty(t, out.Applied)
}

func TestZeroQuantity(t *testing.T) {
	total, err := BestLineTotal(eur(1000), 0, []Rule{BuyXGetY{BuyQty: 2, GetQty: 1}})
	require.NoError(t, err)
	require.Equal(t, eur(0), total)
}

func TestZeroBuyQtyRejected(t *testing.T) {
	_, err := BestLineTotal(eur(1000), 0, []Rule{BuyXGetY{BuyQty: 0, GetQty: 1}})
	require.True(t, errors.Is(err, ErrInvalidRule))
}

func TestPercentOutOfRangeRejected(t *testing.T) {
	_, err := BestLineTotal(eur(1000), 1, []Rule{PercentOff{Percent: decimal.NewFromInt(101)}})
	require.True(t, errors.Is(err, ErrInvalidRule))
}

func TestAmountOffCurrencyMismatch(t *testing.T) {
	_, err := BestLineTotal(eur(1000), 1, []Rule{AmountOffPerTicket{MinQty: 1, AmountOff: money.New(10, "USD")}})
	require.True(t, errors.Is(err, money.ErrCurrencyMismatch))
}

func TestPerUnitPriceNonIncreasingForThresholdRules(t *testing.T) {
	rules := []Rule{
		PercentOff{MinQty: 5, Percent: decimal.NewFromInt(15)},
		AmountOffPerTicket{MinQty: 10, AmountOff: eur(250)},
	}
	prevTotal, err := BestLineTotal(eur(1000), 1, rules)
	require.NoError(t, err)
	prev := decimal.NewFromInt(prevTotal.Amount)
	for qty := uint32(2); qty <= 40; qty++ {
		total, err := BestLineTotal(eur(1000), qty, rules)
		require.NoError(t, err)
		perUnit := decimal.NewFromInt(total.Amount).Div(decimal.NewFromInt(int64(qty)))
		require.Truef(t, perUnit.LessThanOrEqual(prev), "qty %d: %s > %s", qty, perUnit, prev)
		prev = perUnit
	}
}

func TestDecode(t *testing.T) {
	rules, err := DecodeAll([]Spec{
		{RuleType: "buy_x_get_y", BuyQty: 3, GetQty: 1},
		{RuleType: "AMOUNT_OFF_PER_TICKET", MinQty: 2, AmountOff: 100},
		{RuleType: "percent_off", MinQty: 5, PercentOff: decimal.NewFromInt(20)},
	}, "eur")
	require.NoError(t, err)
	require.Equal(t, []Rule{
		BuyXGetY{BuyQty: 3, GetQty: 1},
		AmountOffPerTicket{MinQty: 2, AmountOff: eur(100)},
		PercentOff{MinQty: 5, Percent: decimal.NewFromInt(20)},
	}, rules)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode(Spec{RuleType: "mystery"}, "EUR")
	require.True(t, errors.Is(err, ErrInvalidRule))
}
