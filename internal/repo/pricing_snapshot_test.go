package repo

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/money"
	"github.com/noah-isme/toko-pricing/internal/promotion"
	"github.com/noah-isme/toko-pricing/internal/tax"
)

var (
	tenantID = uuid.MustParse("5f0c3c1e-8a57-4c55-9f39-0c9d7c1f2a01")
	asOf     = time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)
)

func date(y int, m time.Month, d int) pgtype.Date {
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, v := range r.values {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

type fakeTx struct {
	pgx.Tx
	rows       map[string]fakeRow
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	for table, row := range tx.rows {
		if strings.Contains(sql, "FROM "+table) {
			return row
		}
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if !tx.committed {
		tx.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	tx   *fakeTx
	opts pgx.TxOptions
}

func (db *fakeDB) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	db.opts = opts
	return db.tx, nil
}

func tenantRow() fakeRow {
	return fakeRow{values: []any{uuidValue(tenantID), "demo", true, "eur"}}
}

func TestLoadSnapshotReadsInOneReadOnlyTransaction(t *testing.T) {
	tx := &fakeTx{rows: map[string]fakeRow{
		"tenants": tenantRow(),
		"coupons": {values: []any{
			"SPRING10", "percentage", "10.0000", int64(5_000), pgtype.Text{String: "EUR", Valid: true}, "tickets",
			true, date(2026, 5, 1), date(2026, 5, 31), pgtype.Int4{}, int32(0),
		}},
		"gift_cards": {values: []any{"GC-1", "eur", int64(2_500), true, pgtype.Date{}}},
	}}
	db := &fakeDB{tx: tx}

	snap, err := New(db).LoadSnapshot(context.Background(), Query{
		TenantID:     tenantID,
		CouponCode:   "spring10",
		GiftCardCode: "GC-1",
		AsOf:         asOf,
	})
	require.NoError(t, err)
	require.Equal(t, pgx.RepeatableRead, db.opts.IsoLevel)
	require.Equal(t, pgx.ReadOnly, db.opts.AccessMode)
	require.True(t, tx.committed)

	require.Equal(t, Tenant{ID: tenantID, Slug: "demo", VATPayer: true, Currency: "EUR"}, snap.Tenant)
	require.NotNil(t, snap.Coupon)
	require.True(t, snap.Coupon.Valid)
	require.Equal(t, promotion.ScopeTickets, snap.Coupon.AppliesTo)
	require.True(t, snap.Coupon.DiscountValue.Equal(decimal.NewFromInt(10)))
	require.Equal(t, money.New(5_000, "EUR"), snap.Coupon.MinPurchase)
	require.NotNil(t, snap.GiftCard)
	require.True(t, snap.GiftCard.Usable)
	require.Equal(t, money.New(2_500, "EUR"), snap.GiftCard.Balance)
}

func TestLoadSnapshotNotFound(t *testing.T) {
	cases := []struct {
		name string
		rows map[string]fakeRow
		q    Query
		want error
	}{
		{name: "tenant", rows: map[string]fakeRow{}, q: Query{TenantID: tenantID}, want: ErrTenantNotFound},
		{name: "coupon", rows: map[string]fakeRow{"tenants": tenantRow()}, q: Query{TenantID: tenantID, CouponCode: "NOPE"}, want: ErrCouponNotFound},
		{name: "gift card", rows: map[string]fakeRow{"tenants": tenantRow()}, q: Query{TenantID: tenantID, GiftCardCode: "NOPE"}, want: ErrGiftCardNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := &fakeTx{rows: tc.rows}
			_, err := New(&fakeDB{tx: tx}).LoadSnapshot(context.Background(), tc.q)
			require.ErrorIs(t, err, tc.want)
			require.True(t, tx.rolledBack)
			require.False(t, tx.committed)
		})
	}
}

func TestCouponRowValidity(t *testing.T) {
	base := couponRow{
		Code:          "X",
		DiscountType:  "Fixed",
		DiscountValue: "250",
		AppliesTo:     "",
		Active:        true,
	}

	c, err := base.toDomain(asOf)
	require.NoError(t, err)
	require.True(t, c.Valid)
	require.Equal(t, promotion.DiscountFixed, c.DiscountType)
	require.Equal(t, promotion.ScopeBoth, c.AppliesTo)
	require.Equal(t, "", c.MinPurchase.Currency)

	expired := base
	expired.ValidTo = date(2026, 5, 19)
	c, err = expired.toDomain(asOf)
	require.NoError(t, err)
	require.False(t, c.Valid)

	lastDay := base
	lastDay.ValidTo = date(2026, 5, 20)
	c, err = lastDay.toDomain(asOf)
	require.NoError(t, err)
	require.True(t, c.Valid, "validity window is inclusive")

	exhausted := base
	exhausted.UsageLimit = pgtype.Int4{Int32: 3, Valid: true}
	exhausted.UsedCount = 3
	c, err = exhausted.toDomain(asOf)
	require.NoError(t, err)
	require.False(t, c.Valid)

	inactive := base
	inactive.Active = false
	c, err = inactive.toDomain(asOf)
	require.NoError(t, err)
	require.False(t, c.Valid)

	broken := base
	broken.DiscountValue = "ten"
	_, err = broken.toDomain(asOf)
	require.Error(t, err)

	badScope := base
	badScope.AppliesTo = "merch"
	_, err = badScope.toDomain(asOf)
	require.Error(t, err)
}

func TestGiftCardRowExpiry(t *testing.T) {
	row := giftCardRow{Code: "GC", Currency: " ron ", Balance: 900, Active: true, ExpiresOn: date(2026, 5, 19)}
	g := row.toDomain(asOf)
	require.False(t, g.Usable)
	require.Equal(t, "RON", g.Currency)

	row.ExpiresOn = date(2026, 5, 20)
	require.True(t, row.toDomain(asOf).Usable)
}

func TestTaxRowsToDomain(t *testing.T) {
	g, err := generalTaxRow{
		TenantID:  uuidValue(tenantID),
		Name:      "Stamp duty",
		Value:     "2.5000",
		Priority:  4,
		ValidFrom: date(2026, 1, 1),
	}.toDomain()
	require.NoError(t, err)
	require.Equal(t, tax.ValuePercent, g.ValueType)
	require.NotNil(t, g.TenantID)
	require.Equal(t, tenantID, *g.TenantID)
	require.Nil(t, g.EventTypeID)
	require.True(t, g.Value.Equal(decimal.RequireFromString("2.5")))
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *g.ValidFrom)
	require.Nil(t, g.ValidTo)

	l, err := localTaxRow{
		Country: "RO ",
		County:  pgtype.Text{String: "Cluj", Valid: true},
		Name:    "County levy",
		Value:   "1",
	}.toDomain()
	require.NoError(t, err)
	require.Equal(t, "RO", l.Country)
	require.Equal(t, "Cluj", l.County)
	require.Equal(t, "", l.City)
}

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/pricing?sslmode=disable", migrateURL("postgres://u:p@db:5432/pricing?sslmode=disable"))
	require.Equal(t, "pgx5://db/pricing", migrateURL("postgresql://db/pricing"))
	require.Equal(t, "pgx5://db/pricing", migrateURL("pgx5://db/pricing"))
}
