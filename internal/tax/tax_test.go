package tax

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/money"
)

var (
	tenantA   = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	tenantB   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	concerts  = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	festivals = uuid.MustParse("44444444-4444-4444-4444-444444444444")
	asOf      = time.Date(2026, 6, 15, 18, 30, 0, 0, time.UTC)
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func pct(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestResolveGeneralScopes(t *testing.T) {
	pool := Pool{General: []GeneralTax{
		{Name: "global", Priority: 1},
		{Name: "tenant-a", TenantID: &tenantA, Priority: 5},
		{Name: "tenant-b", TenantID: &tenantB, Priority: 9},
		{Name: "concerts", EventTypeID: &concerts, Priority: 3},
		{Name: "festivals", EventTypeID: &festivals, Priority: 4},
		{Name: "expired", ValidTo: day(2026, 6, 14), Priority: 10},
		{Name: "future", ValidFrom: day(2026, 6, 16), Priority: 10},
		{Name: "ends-today", ValidFrom: day(2026, 1, 1), ValidTo: day(2026, 6, 15), Priority: 2},
	}}
	got := Resolve(Jurisdiction{TenantID: tenantA, EventTypeID: &concerts, Country: "RO"}, asOf, pool)

	names := make([]string, 0, len(got.General))
	for _, g := range got.General {
		names = append(names, g.Name)
	}
	require.Equal(t, []string{"tenant-a", "concerts", "ends-today", "global"}, names)
}

func TestResolveEventScopedRequiresEventType(t *testing.T) {
	pool := Pool{General: []GeneralTax{{Name: "concerts", EventTypeID: &concerts}}}
	got := Resolve(Jurisdiction{TenantID: tenantA}, asOf, pool)
	require.Empty(t, got.General)
}

func TestResolveLocalKeepsAllMatchingLevels(t *testing.T) {
	pool := Pool{Local: []LocalTax{
		{Country: "RO", Name: "national", Priority: 1},
		{Country: "ro", County: "Cluj", Name: "county", Priority: 2},
		{Country: "RO", County: "Cluj", City: "Cluj-Napoca", Name: "city", Priority: 3},
		{Country: "RO", County: "Ilfov", Name: "other county", Priority: 9},
		{Country: "RO", City: "Turda", Name: "other city", Priority: 9},
		{Country: "HU", Name: "other country", Priority: 9},
		{Country: "RO", Name: "expired", ValidTo: day(2025, 12, 31), Priority: 9},
	}}
	got := Resolve(Jurisdiction{TenantID: tenantA, Country: "RO", County: "cluj", City: "Cluj-Napoca"}, asOf, pool)
	names := make([]string, 0, len(got.Local))
	for _, l := range got.Local {
		names = append(names, l.Name)
	}
	require.Equal(t, []string{"city", "county", "national"}, names)
}

func TestComposeVATExtractionWithDefaultRate(t *testing.T) {
	base := money.New(12_100, "EUR")
	got := Compose(base, nil, true, pct("21"))

	require.Equal(t, money.New(2_100, "EUR"), got.VATAmount)
	require.Equal(t, money.Zero("EUR"), got.TaxesToAdd)
	require.True(t, got.VATRate.Equal(pct("21")))
	require.Len(t, got.Breakdown, 1)
	line := got.Breakdown[0]
	assert.Equal(t, DefaultVATName, line.Name)
	assert.True(t, line.IsVAT)
	assert.False(t, line.AddedToPrice)
	assert.Equal(t, SourceDefault, line.Source)
}

func TestComposeMixedTaxNonVATPayer(t *testing.T) {
	entries := Pool{General: []GeneralTax{
		{Name: "Stamp duty", Value: pct("5"), ValueType: ValuePercent, AddedToPrice: true},
		{Name: "TVA 19%", Value: pct("19"), ValueType: ValuePercent},
	}}.Entries()
	got := Compose(money.New(10_000, "EUR"), entries, false, pct("21"))

	require.Equal(t, money.New(500, "EUR"), got.TaxesToAdd)
	require.True(t, got.VATAmount.IsZero())
	require.Len(t, got.Breakdown, 1)
	for _, line := range got.Breakdown {
		require.False(t, line.IsVAT)
	}
}

func TestComposeOrdersVATFirstThenPriority(t *testing.T) {
	entries := Pool{
		General: []GeneralTax{
			{Name: "Music rights", Value: pct("2"), ValueType: ValuePercent, Priority: 1, AddedToPrice: true},
			{Name: "Cultural fund", Value: decimal.NewFromInt(150), ValueType: ValueFixed, Priority: 7, AddedToPrice: true},
			{Name: "Standard", Value: pct("19"), Priority: 3, IsVAT: true, AddedToPrice: true},
			{Name: "Included levy", Value: pct("1"), ValueType: ValuePercent, Priority: 5},
		},
		Local: []LocalTax{{Country: "RO", Name: "City tax", Value: pct("0"), Priority: 4}},
	}.Entries()
	got := Compose(money.New(11_900, "EUR"), entries, true, pct("21"))

	names := make([]string, 0, len(got.Breakdown))
	for _, line := range got.Breakdown {
		names = append(names, line.Name)
	}
	require.Equal(t, []string{"Standard", "Cultural fund", "Included levy", "City tax", "Music rights"}, names)

	vat := got.Breakdown[0]
	require.True(t, vat.IsVAT)
	require.False(t, vat.AddedToPrice, "VAT is display-only even when stored as added")
	require.Equal(t, money.New(1_900, "EUR"), vat.TaxAmount)
	require.True(t, got.VATRate.Equal(pct("19")))

	// 150 fixed + 2% of 11900 (238); the included levy (119) and VAT are not added.
	require.Equal(t, money.New(388, "EUR"), got.TaxesToAdd)
	require.Equal(t, money.New(119, "EUR"), got.Breakdown[2].TaxAmount)
	require.Equal(t, money.Zero("EUR"), got.Breakdown[3].TaxAmount)
}

func TestComposeNameSniffing(t *testing.T) {
	require.True(t, LooksLikeVAT("Standard VAT"))
	require.True(t, LooksLikeVAT("tva redusa"))
	require.False(t, LooksLikeVAT("City tax"))
}
