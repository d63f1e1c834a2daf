package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/noah-isme/toko-pricing/internal/config"
	"github.com/noah-isme/toko-pricing/internal/health"
	"github.com/noah-isme/toko-pricing/internal/money"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/quote"
	"github.com/noah-isme/toko-pricing/internal/ratelimit"
)

const tenantHeaderValue = "3c5e8d2a-6b1f-4e7a-9c0d-2f4b6a8e1c3d"

type fixedQuoter struct{}

func (fixedQuoter) Quote(context.Context, uuid.UUID, quote.Input) (pricing.Result, error) {
	return pricing.Result{Currency: "EUR", GrandTotal: money.New(100, "EUR")}, nil
}

type fixedEnqueuer struct{}

func (fixedEnqueuer) EnqueueTaxPoolRefresh(context.Context, uuid.UUID, string) (string, error) {
	return "task-9", nil
}

func testRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	lim := limiter.New(memory.NewStore(), limiter.Rate{Period: time.Minute, Limit: 2})
	return newRouter(routerConfig{
		Config:  cfg,
		Logger:  zerolog.Nop(),
		Quotes:  &quote.Handler{Svc: fixedQuoter{}, Jobs: fixedEnqueuer{}},
		Limiter: ratelimit.Handler{Limiter: lim},
		Health:  health.Handler{Probes: map[string]health.Probe{"noop": func(context.Context) error { return nil }}},
	})
}

func quoteRequest(withTenant bool) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pricing/quote", strings.NewReader(`{"items":[]}`))
	req.Header.Set("Content-Type", "application/json")
	if withTenant {
		req.Header.Set("X-Tenant-ID", tenantHeaderValue)
	}
	return req
}

func TestQuoteRouteRequiresTenant(t *testing.T) {
	h := testRouter(t, &config.Config{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, quoteRequest(false))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "TENANT_REQUIRED")
}

func TestQuoteRouteRateLimitsPerTenant(t *testing.T) {
	h := testRouter(t, &config.Config{})

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, quoteRequest(true))
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
		require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
		require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
		require.Contains(t, rr.Body.String(), `"grandTotal"`)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, quoteRequest(true))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestAdminRoutes(t *testing.T) {
	body := `{"tenantId":"` + tenantHeaderValue + `","country":"RO"}`

	disabled := testRouter(t, &config.Config{})
	rr := httptest.NewRecorder()
	disabled.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/admin/tax-pools/refresh", strings.NewReader(body)))
	require.Equal(t, http.StatusNotFound, rr.Code)

	h := testRouter(t, &config.Config{AdminUser: "ops", AdminPassword: "s3cret"})

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/admin/tax-pools/refresh", strings.NewReader(body)))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/tax-pools/refresh", strings.NewReader(body))
	req.SetBasicAuth("ops", "s3cret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, rr.Body.String(), "task-9")
}

func TestHealthRoutes(t *testing.T) {
	h := testRouter(t, &config.Config{})
	for _, path := range []string{"/health/live", "/health/ready"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestQuoteRouteBodyLimit(t *testing.T) {
	h := testRouter(t, &config.Config{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pricing/quote", strings.NewReader(strings.Repeat("a", maxQuoteBody+1)))
	req.Header.Set("X-Tenant-ID", tenantHeaderValue)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestPprofMountedBehindAdminAuth(t *testing.T) {
	t.Setenv("OBS_ENABLE_PPROF", "true")
	t.Setenv("SECURE_PPROF_BASIC_AUTH_USER", "")
	t.Setenv("SECURE_PPROF_BASIC_AUTH_PASS", "")
	h := testRouter(t, &config.Config{AdminUser: "ops", AdminPassword: "s3cret"})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/pprof/cmdline", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/cmdline", nil)
	req.SetBasicAuth("ops", "s3cret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestPprofNotMountedWithoutCredentials(t *testing.T) {
	t.Setenv("OBS_ENABLE_PPROF", "true")
	t.Setenv("SECURE_PPROF_BASIC_AUTH_USER", "")
	t.Setenv("SECURE_PPROF_BASIC_AUTH_PASS", "")
	h := testRouter(t, &config.Config{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/pprof/cmdline", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
