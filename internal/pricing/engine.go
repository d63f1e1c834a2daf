package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/discount"
	"github.com/noah-isme/toko-pricing/internal/money"
	"github.com/noah-isme/toko-pricing/internal/promotion"
	"github.com/noah-isme/toko-pricing/internal/tax"
)

// DefaultStandardVATRate is used for VAT payers whose pool has no explicit VAT row.
var DefaultStandardVATRate = decimal.NewFromInt(21)

// LineItem describes a cart entry whose unit price is already resolved by the catalog.
type LineItem struct {
	ID            string
	Category      promotion.Scope
	UnitPrice     money.Money
	Quantity      uint32
	DiscountRules []discount.Rule
}

// Request carries everything needed to price one order. Callers load coupon,
// gift card and tax pool from one consistent snapshot.
type Request struct {
	Currency     string
	Items        []LineItem
	Coupon       *promotion.Coupon
	GiftCard     *promotion.GiftCard
	Jurisdiction tax.Jurisdiction
	AsOf         time.Time
	VATPayer     bool
	Taxes        tax.Pool
}

// LineResult is the priced view of a single line.
type LineResult struct {
	ID          string          `json:"id"`
	Category    promotion.Scope `json:"category,omitempty"`
	Quantity    uint32          `json:"quantity"`
	UnitPrice   money.Money     `json:"unitPrice"`
	NaiveTotal  money.Money     `json:"naiveTotal"`
	Discount    money.Money     `json:"discount"`
	Total       money.Money     `json:"total"`
	AppliedRule discount.Kind   `json:"appliedRule,omitempty"`
}

// Result is the full order pricing breakdown. It is never mutated after being returned.
type Result struct {
	Currency        string              `json:"currency"`
	Scope           promotion.Scope     `json:"scope"`
	Lines           []LineResult        `json:"lines"`
	Subtotal        money.Money         `json:"subtotal"`
	LineDiscounts   []money.Money       `json:"lineDiscounts"`
	CouponDiscount  money.Money         `json:"couponDiscount"`
	GiftCardApplied money.Money         `json:"giftCardApplied"`
	TaxableBase     money.Money         `json:"taxableBase"`
	TaxBreakdown    []tax.BreakdownLine `json:"taxBreakdown"`
	TaxesToAdd      money.Money         `json:"taxesToAdd"`
	VATAmount       money.Money         `json:"vatAmount"`
	VATRate         decimal.Decimal     `json:"vatRate"`
	GrandTotal      money.Money         `json:"grandTotal"`
}

// Engine composes bulk discounts, promotions and taxes into an order total.
// It holds no mutable state and may be shared between goroutines.
type Engine struct {
	StandardVATRate decimal.Decimal
}

// NewEngine returns an engine using rate as the default VAT rate; a non-positive rate selects DefaultStandardVATRate.
func NewEngine(rate decimal.Decimal) *Engine {
	if rate.Sign() <= 0 {
		rate = DefaultStandardVATRate
	}
	return &Engine{StandardVATRate: rate}
}

// ComputeOrderTotal prices the order in a fixed order: bulk discounts per line,
// coupon on the subtotal, gift card on the remainder, then taxes on what is left.
// Either the whole breakdown or an *Error is returned.
func (e *Engine) ComputeOrderTotal(req Request) (Result, error) {
	currency, err := requestCurrency(req)
	if err != nil {
		return Result{}, wrap(-1, err)
	}
	if req.AsOf.IsZero() {
		return Result{}, wrap(-1, fmt.Errorf("%w: as-of date is required", ErrInvalidInput))
	}

	// (a) bulk discounts per line.
	subtotal := money.Zero(currency)
	var scope promotion.Scope
	lines := make([]LineResult, 0, len(req.Items))
	lineDiscounts := make([]money.Money, 0, len(req.Items))
	for i, item := range req.Items {
		if err := validateItem(item, currency); err != nil {
			return Result{}, wrap(i, err)
		}
		unit := item.UnitPrice.In(currency)
		out, err := discount.Evaluate(unit, item.Quantity, item.DiscountRules)
		if err != nil {
			return Result{}, wrap(i, err)
		}
		if out.Total.Amount > 0 && subtotal.Amount > math.MaxInt64-out.Total.Amount {
			return Result{}, wrap(i, fmt.Errorf("%w: subtotal overflow", ErrInvalidInput))
		}
		subtotal = subtotal.Add(out.Total)
		scope = scope.Merge(item.Category)
		lineDiscounts = append(lineDiscounts, out.Discount())
		lines = append(lines, LineResult{
			ID:          item.ID,
			Category:    item.Category,
			Quantity:    item.Quantity,
			UnitPrice:   unit,
			NaiveTotal:  out.Naive,
			Discount:    out.Discount(),
			Total:       out.Total,
			AppliedRule: out.Applied,
		})
	}
	if scope == "" {
		scope = promotion.ScopeBoth
	}

	// (b) coupon on the subtotal.
	couponDiscount, err := promotion.ApplyCoupon(subtotal, req.Coupon, scope)
	if err != nil {
		return Result{}, wrap(-1, err)
	}

	// (c) gift card on what the coupon left.
	afterCoupon := subtotal.Sub(couponDiscount).NonNegative()
	giftCard, err := promotion.ApplyGiftCard(afterCoupon, req.GiftCard)
	if err != nil {
		return Result{}, wrap(-1, err)
	}

	// (d) + (e) taxes on the post-discount base.
	base := afterCoupon.Sub(giftCard).NonNegative()
	applicable := tax.Resolve(req.Jurisdiction, req.AsOf, req.Taxes)
	composition := tax.Compose(base, applicable.Entries(), req.VATPayer, e.vatRate())

	// (f) VAT is already inside base; only added taxes raise the total.
	grand := base.Add(composition.TaxesToAdd).NonNegative()

	return Result{
		Currency:        currency,
		Scope:           scope,
		Lines:           lines,
		Subtotal:        subtotal,
		LineDiscounts:   lineDiscounts,
		CouponDiscount:  couponDiscount,
		GiftCardApplied: giftCard,
		TaxableBase:     base,
		TaxBreakdown:    composition.Breakdown,
		TaxesToAdd:      composition.TaxesToAdd,
		VATAmount:       composition.VATAmount,
		VATRate:         composition.VATRate,
		GrandTotal:      grand,
	}, nil
}

func (e *Engine) vatRate() decimal.Decimal {
	if e == nil || e.StandardVATRate.Sign() <= 0 {
		return DefaultStandardVATRate
	}
	return e.StandardVATRate
}

func requestCurrency(req Request) (string, error) {
	currency := money.NormalizeCurrency(req.Currency)
	if currency == "" {
		for _, item := range req.Items {
			if c := money.NormalizeCurrency(item.UnitPrice.Currency); c != "" {
				currency = c
				break
			}
		}
	}
	if currency == "" {
		return "", fmt.Errorf("%w: cart currency is required", ErrInvalidInput)
	}
	return currency, nil
}

func validateItem(item LineItem, currency string) error {
	if item.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: unit price cannot be negative", ErrInvalidInput)
	}
	if err := item.UnitPrice.CheckCurrency(currency); err != nil {
		return err
	}
	if item.Quantity > 0 && item.UnitPrice.Amount > math.MaxInt64/int64(item.Quantity) {
		return fmt.Errorf("%w: line total overflow", ErrInvalidInput)
	}
	return nil
}
