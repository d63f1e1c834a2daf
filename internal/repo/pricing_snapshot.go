package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/toko-pricing/internal/money"
	"github.com/noah-isme/toko-pricing/internal/promotion"
	"github.com/noah-isme/toko-pricing/internal/tax"
)

// DB is the subset of pgxpool.Pool used by Repository.
type DB interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository reads the data the pricing engine depends on.
type Repository struct {
	DB DB
}

// New returns a repository backed by db.
func New(db DB) *Repository {
	return &Repository{DB: db}
}

// Tenant is the pricing-relevant view of a tenant.
type Tenant struct {
	ID       uuid.UUID `json:"id"`
	Slug     string    `json:"slug"`
	VATPayer bool      `json:"vatPayer"`
	Currency string    `json:"currency"`
}

// Query selects what LoadSnapshot reads. Empty codes skip the coupon or gift card lookup.
type Query struct {
	TenantID     uuid.UUID
	Country      string
	CouponCode   string
	GiftCardCode string
	AsOf         time.Time
	// IncludeTaxes loads the tax pool in the same transaction. Callers holding
	// a cached pool leave it false.
	IncludeTaxes bool
}

// Snapshot is a consistent read of tenant, promotions and taxes.
type Snapshot struct {
	Tenant   Tenant
	Coupon   *promotion.Coupon
	GiftCard *promotion.GiftCard
	Taxes    tax.Pool
}

// LoadSnapshot reads everything in one repeatable-read, read-only transaction.
func (r *Repository) LoadSnapshot(ctx context.Context, q Query) (Snapshot, error) {
	var snap Snapshot
	err := r.readOnly(ctx, func(tx pgx.Tx) error {
		t, err := loadTenant(ctx, tx, q.TenantID)
		if err != nil {
			return err
		}
		snap.Tenant = t

		if code := strings.TrimSpace(q.CouponCode); code != "" {
			c, err := loadCoupon(ctx, tx, q.TenantID, code, q.AsOf)
			if err != nil {
				return err
			}
			snap.Coupon = &c
		}
		if code := strings.TrimSpace(q.GiftCardCode); code != "" {
			g, err := loadGiftCard(ctx, tx, q.TenantID, code, q.AsOf)
			if err != nil {
				return err
			}
			snap.GiftCard = &g
		}
		if q.IncludeTaxes {
			pool, err := loadTaxPool(ctx, tx, q.TenantID, q.Country)
			if err != nil {
				return err
			}
			snap.Taxes = pool
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// LoadTaxPool returns every general tax visible to the tenant and every local tax of the country.
// Validity windows are left to tax.Resolve so the pool can be cached across days.
func (r *Repository) LoadTaxPool(ctx context.Context, tenantID uuid.UUID, country string) (tax.Pool, error) {
	var pool tax.Pool
	err := r.readOnly(ctx, func(tx pgx.Tx) error {
		var err error
		pool, err = loadTaxPool(ctx, tx, tenantID, country)
		return err
	})
	return pool, err
}

func (r *Repository) readOnly(ctx context.Context, fn func(pgx.Tx) error) error {
	if r == nil || r.DB == nil {
		return errors.New("repo: database not configured")
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const selectTenant = `SELECT id, slug, vat_payer, currency FROM tenants WHERE id = $1`

func loadTenant(ctx context.Context, q queryer, id uuid.UUID) (Tenant, error) {
	var (
		pid      pgtype.UUID
		t        Tenant
		currency string
	)
	if err := q.QueryRow(ctx, selectTenant, uuidValue(id)).Scan(&pid, &t.Slug, &t.VATPayer, &currency); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, fmt.Errorf("%w: %s", ErrTenantNotFound, id)
		}
		return Tenant{}, fmt.Errorf("load tenant: %w", err)
	}
	t.ID = uuid.UUID(pid.Bytes)
	t.Currency = money.NormalizeCurrency(currency)
	return t, nil
}

const selectCoupon = `
SELECT code, discount_type, discount_value::text, min_purchase, currency, applies_to,
       active, valid_from, valid_to, usage_limit, used_count
FROM coupons
WHERE tenant_id = $1 AND upper(code) = upper($2)`

type couponRow struct {
	Code          string
	DiscountType  string
	DiscountValue string
	MinPurchase   int64
	Currency      pgtype.Text
	AppliesTo     string
	Active        bool
	ValidFrom     pgtype.Date
	ValidTo       pgtype.Date
	UsageLimit    pgtype.Int4
	UsedCount     int32
}

func loadCoupon(ctx context.Context, q queryer, tenantID uuid.UUID, code string, asOf time.Time) (promotion.Coupon, error) {
	var row couponRow
	err := q.QueryRow(ctx, selectCoupon, uuidValue(tenantID), code).Scan(
		&row.Code, &row.DiscountType, &row.DiscountValue, &row.MinPurchase, &row.Currency, &row.AppliesTo,
		&row.Active, &row.ValidFrom, &row.ValidTo, &row.UsageLimit, &row.UsedCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return promotion.Coupon{}, fmt.Errorf("%w: %s", ErrCouponNotFound, code)
		}
		return promotion.Coupon{}, fmt.Errorf("load coupon: %w", err)
	}
	return row.toDomain(asOf)
}

func (r couponRow) toDomain(asOf time.Time) (promotion.Coupon, error) {
	value, err := numericValue("discount_value", r.DiscountValue)
	if err != nil {
		return promotion.Coupon{}, err
	}
	scope, err := promotion.ParseScope(r.AppliesTo)
	if err != nil {
		return promotion.Coupon{}, fmt.Errorf("coupon %s: %w", r.Code, err)
	}
	valid := r.Active && activeOn(asOf, datePtr(r.ValidFrom), datePtr(r.ValidTo))
	if r.UsageLimit.Valid && r.UsedCount >= r.UsageLimit.Int32 {
		valid = false
	}
	return promotion.Coupon{
		Code:          r.Code,
		DiscountType:  promotion.DiscountType(strings.ToLower(strings.TrimSpace(r.DiscountType))),
		DiscountValue: value,
		MinPurchase:   money.New(r.MinPurchase, textValue(r.Currency)),
		AppliesTo:     scope,
		Valid:         valid,
	}, nil
}

const selectGiftCard = `
SELECT code, currency, balance, active, expires_on
FROM gift_cards
WHERE tenant_id = $1 AND code = $2`

type giftCardRow struct {
	Code      string
	Currency  string
	Balance   int64
	Active    bool
	ExpiresOn pgtype.Date
}

func loadGiftCard(ctx context.Context, q queryer, tenantID uuid.UUID, code string, asOf time.Time) (promotion.GiftCard, error) {
	var row giftCardRow
	err := q.QueryRow(ctx, selectGiftCard, uuidValue(tenantID), code).Scan(
		&row.Code, &row.Currency, &row.Balance, &row.Active, &row.ExpiresOn,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return promotion.GiftCard{}, fmt.Errorf("%w: %s", ErrGiftCardNotFound, code)
		}
		return promotion.GiftCard{}, fmt.Errorf("load gift card: %w", err)
	}
	return row.toDomain(asOf), nil
}

func (r giftCardRow) toDomain(asOf time.Time) promotion.GiftCard {
	currency := money.NormalizeCurrency(r.Currency)
	return promotion.GiftCard{
		Code:     r.Code,
		Currency: currency,
		Balance:  money.New(r.Balance, currency),
		Usable:   r.Active && activeOn(asOf, nil, datePtr(r.ExpiresOn)),
	}
}

const selectGeneralTaxes = `
SELECT tenant_id, event_type_id, name, value::text, value_type, priority,
       added_to_price, is_vat, valid_from, valid_to
FROM general_taxes
WHERE tenant_id IS NULL OR tenant_id = $1
ORDER BY priority DESC, name`

const selectLocalTaxes = `
SELECT country, county, city, name, value::text, priority, valid_from, valid_to
FROM local_taxes
WHERE upper(country) = upper($1)
ORDER BY priority DESC, name`

type generalTaxRow struct {
	TenantID     pgtype.UUID
	EventTypeID  pgtype.UUID
	Name         string
	Value        string
	ValueType    string
	Priority     int32
	AddedToPrice bool
	IsVAT        bool
	ValidFrom    pgtype.Date
	ValidTo      pgtype.Date
}

func (r generalTaxRow) toDomain() (tax.GeneralTax, error) {
	value, err := numericValue("general_taxes.value", r.Value)
	if err != nil {
		return tax.GeneralTax{}, err
	}
	vt := tax.ValueType(strings.ToLower(strings.TrimSpace(r.ValueType)))
	if vt == "" {
		vt = tax.ValuePercent
	}
	return tax.GeneralTax{
		TenantID:     uuidPtr(r.TenantID),
		EventTypeID:  uuidPtr(r.EventTypeID),
		Name:         r.Name,
		Value:        value,
		ValueType:    vt,
		Priority:     int(r.Priority),
		AddedToPrice: r.AddedToPrice,
		ValidFrom:    datePtr(r.ValidFrom),
		ValidTo:      datePtr(r.ValidTo),
		IsVAT:        r.IsVAT,
	}, nil
}

type localTaxRow struct {
	Country   string
	County    pgtype.Text
	City      pgtype.Text
	Name      string
	Value     string
	Priority  int32
	ValidFrom pgtype.Date
	ValidTo   pgtype.Date
}

func (r localTaxRow) toDomain() (tax.LocalTax, error) {
	value, err := numericValue("local_taxes.value", r.Value)
	if err != nil {
		return tax.LocalTax{}, err
	}
	return tax.LocalTax{
		Country:   strings.TrimSpace(r.Country),
		County:    textValue(r.County),
		City:      textValue(r.City),
		Name:      r.Name,
		Value:     value,
		Priority:  int(r.Priority),
		ValidFrom: datePtr(r.ValidFrom),
		ValidTo:   datePtr(r.ValidTo),
	}, nil
}

func loadTaxPool(ctx context.Context, q queryer, tenantID uuid.UUID, country string) (tax.Pool, error) {
	pool := tax.Pool{General: []tax.GeneralTax{}, Local: []tax.LocalTax{}}

	rows, err := q.Query(ctx, selectGeneralTaxes, uuidValue(tenantID))
	if err != nil {
		return tax.Pool{}, fmt.Errorf("query general taxes: %w", err)
	}
	for rows.Next() {
		var row generalTaxRow
		if err := rows.Scan(&row.TenantID, &row.EventTypeID, &row.Name, &row.Value, &row.ValueType, &row.Priority,
			&row.AddedToPrice, &row.IsVAT, &row.ValidFrom, &row.ValidTo); err != nil {
			rows.Close()
			return tax.Pool{}, fmt.Errorf("scan general tax: %w", err)
		}
		g, err := row.toDomain()
		if err != nil {
			rows.Close()
			return tax.Pool{}, err
		}
		pool.General = append(pool.General, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return tax.Pool{}, fmt.Errorf("iterate general taxes: %w", err)
	}

	if strings.TrimSpace(country) == "" {
		return pool, nil
	}
	rows, err = q.Query(ctx, selectLocalTaxes, strings.TrimSpace(country))
	if err != nil {
		return tax.Pool{}, fmt.Errorf("query local taxes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var row localTaxRow
		if err := rows.Scan(&row.Country, &row.County, &row.City, &row.Name, &row.Value, &row.Priority,
			&row.ValidFrom, &row.ValidTo); err != nil {
			return tax.Pool{}, fmt.Errorf("scan local tax: %w", err)
		}
		l, err := row.toDomain()
		if err != nil {
			return tax.Pool{}, err
		}
		pool.Local = append(pool.Local, l)
	}
	if err := rows.Err(); err != nil {
		return tax.Pool{}, fmt.Errorf("iterate local taxes: %w", err)
	}
	return pool, nil
}
