package quote

import (
	"context"
	"fmt"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-pricing/internal/discount"
	"github.com/noah-isme/toko-pricing/internal/money"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/promotion"
	"github.com/noah-isme/toko-pricing/internal/repo"
	"github.com/noah-isme/toko-pricing/internal/tax"
)

// Loader reads tenant pricing data. *repo.Repository satisfies it.
type Loader interface {
	LoadSnapshot(ctx context.Context, q repo.Query) (repo.Snapshot, error)
	LoadTaxPool(ctx context.Context, tenantID uuid.UUID, country string) (tax.Pool, error)
}

// PoolCache stores unresolved tax pools per tenant and country. PutIfAbsent
// leaves an existing entry alone since a refresh may have warmed it meanwhile.
type PoolCache interface {
	Get(ctx context.Context, tenantID uuid.UUID, country string) (tax.Pool, bool, error)
	PutIfAbsent(ctx context.Context, tenantID uuid.UUID, country string, pool tax.Pool) (bool, error)
}

// Service prices carts for a tenant.
type Service struct {
	Loader          Loader
	Taxes           PoolCache
	Engine          *pricing.Engine
	Validate        *validator.Validate
	DefaultCurrency string
	Logger          zerolog.Logger
	Now             func() time.Time

	tracer trace.Tracer
}

// NewService wires a Service. taxes may be nil to always read pools from the database.
func NewService(loader Loader, taxes PoolCache, engine *pricing.Engine, logger zerolog.Logger) *Service {
	if engine == nil {
		engine = pricing.NewEngine(pricing.DefaultStandardVATRate)
	}
	return &Service{
		Loader:          loader,
		Taxes:           taxes,
		Engine:          engine,
		Validate:        NewValidator(),
		DefaultCurrency: "EUR",
		Logger:          logger,
		Now:             time.Now,
		tracer:          otel.Tracer("pricing.quote"),
	}
}

// Quote validates in, loads a consistent snapshot for the tenant and returns
// the engine result unchanged.
func (s *Service) Quote(ctx context.Context, tenantID uuid.UUID, in Input) (pricing.Result, error) {
	if s == nil || s.Loader == nil {
		return pricing.Result{}, fmt.Errorf("quote service not configured")
	}
	tracer := s.tracer
	if tracer == nil {
		tracer = otel.Tracer("pricing.quote")
	}
	ctx, span := tracer.Start(ctx, "quote.compute", trace.WithAttributes(
		attribute.String("tenant.id", tenantID.String()),
		attribute.Int("cart.items", len(in.Items)),
	))
	defer span.End()

	res, err := s.quote(ctx, tenantID, in)
	if err != nil {
		kind := string(pricing.KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if kind != "" {
			obs.RecordQuote("rejected", kind, "", 0)
		} else {
			obs.RecordQuote("error", "", "", 0)
		}
		s.log(ctx).Info().Err(err).Str("kind", kind).Msg("quote_failed")
		return pricing.Result{}, err
	}

	span.SetAttributes(
		attribute.String("quote.currency", res.Currency),
		attribute.Int64("quote.grand_total", res.GrandTotal.Amount),
	)
	obs.RecordQuote("ok", "", res.Currency, res.GrandTotal.Amount)
	return res, nil
}

func (s *Service) quote(ctx context.Context, tenantID uuid.UUID, in Input) (pricing.Result, error) {
	v := s.Validate
	if v == nil {
		v = NewValidator()
	}
	if err := validate(v, in); err != nil {
		return pricing.Result{}, err
	}

	asOf := s.now().UTC()
	if in.AsOf != "" {
		parsed, err := time.Parse(asOfLayout, in.AsOf)
		if err != nil {
			return pricing.Result{}, fmt.Errorf("%w: asOf: %v", pricing.ErrInvalidInput, err)
		}
		asOf = parsed
	}
	country := strings.ToUpper(strings.TrimSpace(in.Jurisdiction.Country))

	pool, cached := s.cachedPool(ctx, tenantID, country)
	snap, err := s.Loader.LoadSnapshot(ctx, repo.Query{
		TenantID:     tenantID,
		Country:      country,
		CouponCode:   in.CouponCode,
		GiftCardCode: in.GiftCardCode,
		AsOf:         asOf,
		IncludeTaxes: !cached,
	})
	if err != nil {
		return pricing.Result{}, err
	}
	if !cached {
		pool = snap.Taxes
		s.storePool(ctx, tenantID, country, pool)
	}

	currency := money.NormalizeCurrency(in.Currency)
	if currency == "" {
		currency = money.NormalizeCurrency(snap.Tenant.Currency)
	}
	if currency == "" {
		currency = money.NormalizeCurrency(s.DefaultCurrency)
	}

	req, err := buildRequest(in, currency, asOf, tenantID, country)
	if err != nil {
		return pricing.Result{}, err
	}
	req.Coupon = snap.Coupon
	req.GiftCard = snap.GiftCard
	req.VATPayer = snap.Tenant.VATPayer
	req.Taxes = pool

	engine := s.Engine
	if engine == nil {
		engine = pricing.NewEngine(pricing.DefaultStandardVATRate)
	}
	return engine.ComputeOrderTotal(req)
}

func buildRequest(in Input, currency string, asOf time.Time, tenantID uuid.UUID, country string) (pricing.Request, error) {
	req := pricing.Request{
		Currency: currency,
		Items:    make([]pricing.LineItem, 0, len(in.Items)),
		AsOf:     asOf,
		Jurisdiction: tax.Jurisdiction{
			TenantID: tenantID,
			Country:  country,
			County:   strings.TrimSpace(in.Jurisdiction.County),
			City:     strings.TrimSpace(in.Jurisdiction.City),
		},
	}
	if raw := in.Jurisdiction.EventTypeID; raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return pricing.Request{}, fmt.Errorf("%w: eventTypeId: %v", pricing.ErrInvalidInput, err)
		}
		req.Jurisdiction.EventTypeID = &id
	}
	for i, item := range in.Items {
		scope, err := promotion.ParseScope(item.Category)
		if err != nil {
			return pricing.Request{}, &pricing.Error{Kind: pricing.KindInvalidInput, Line: i, Err: err}
		}
		rules, err := discount.DecodeAll(item.DiscountRules, currency)
		if err != nil {
			return pricing.Request{}, &pricing.Error{Kind: pricing.KindInvalidRule, Line: i, Err: err}
		}
		req.Items = append(req.Items, pricing.LineItem{
			ID:            item.ID,
			Category:      scope,
			UnitPrice:     money.New(item.UnitPrice, currency),
			Quantity:      item.Quantity,
			DiscountRules: rules,
		})
	}
	return req, nil
}

// cachedPool never fails the quote: cache errors are logged and treated as misses.
func (s *Service) cachedPool(ctx context.Context, tenantID uuid.UUID, country string) (tax.Pool, bool) {
	if s.Taxes == nil {
		return tax.Pool{}, false
	}
	pool, ok, err := s.Taxes.Get(ctx, tenantID, country)
	switch {
	case err != nil:
		obs.RecordTaxPoolCache("error")
		s.log(ctx).Warn().Err(err).Str("country", country).Msg("tax_pool_cache_get_failed")
		return tax.Pool{}, false
	case ok:
		obs.RecordTaxPoolCache("hit")
		return pool, true
	default:
		obs.RecordTaxPoolCache("miss")
		return tax.Pool{}, false
	}
}

func (s *Service) storePool(ctx context.Context, tenantID uuid.UUID, country string, pool tax.Pool) {
	if s.Taxes == nil {
		return
	}
	stored, err := s.Taxes.PutIfAbsent(ctx, tenantID, country, pool)
	if err != nil {
		s.log(ctx).Warn().Err(err).Str("country", country).Msg("tax_pool_cache_put_failed")
		return
	}
	if !stored {
		s.log(ctx).Debug().Str("country", country).Msg("tax_pool_cache_already_warm")
	}
}

// log prefers the request-scoped logger attached by the HTTP middleware.
func (s *Service) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
