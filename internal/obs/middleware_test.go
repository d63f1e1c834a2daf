package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/tenant"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewHTTPMetrics("pricing", []float64{10, 1}, registry)

	r := chi.NewRouter()
	r.Use(HTTPObs{Metrics: metrics}.Middleware)
	r.Post("/api/v1/pricing/quote", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/pricing/quote", nil))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rr.Code)
	}

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodPost, "/api/v1/pricing/quote", "422"))
	if total != 1 {
		t.Fatalf("expected counter to be 1, got %v", total)
	}
	if samples := testutil.CollectAndCount(metrics.ReqDur); samples == 0 {
		t.Fatalf("expected histogram sample")
	}
	if val := testutil.ToFloat64(metrics.InFlight); val != 0 {
		t.Fatalf("expected no in-flight requests, got %v", val)
	}

	again := NewHTTPMetrics("pricing", nil, registry)
	if again.ReqTotal != metrics.ReqTotal {
		t.Fatalf("expected re-registration to reuse the existing collector")
	}
}

func TestDomainMetrics(t *testing.T) {
	MustRegisterDomainMetrics("test", prometheus.NewRegistry())

	RecordQuote("ok", "", "EUR", 12_100)
	RecordQuote("rejected", "coupon_not_applicable", "EUR", 0)
	RecordTaxPoolCache("hit")

	if v := testutil.ToFloat64(QuotesTotal.WithLabelValues("ok")); v != 1 {
		t.Fatalf("expected 1 ok quote, got %v", v)
	}
	if v := testutil.ToFloat64(QuoteErrorsTotal.WithLabelValues("coupon_not_applicable")); v != 1 {
		t.Fatalf("expected 1 coupon error, got %v", v)
	}
	if v := testutil.ToFloat64(TaxPoolCacheTotal.WithLabelValues("hit")); v != 1 {
		t.Fatalf("expected 1 cache hit, got %v", v)
	}
	if n := testutil.CollectAndCount(QuoteGrandTotal); n != 1 {
		t.Fatalf("expected one grand total series, got %d", n)
	}
}

func TestRequestLoggerIncludesTenantAndRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "debug")

	r := chi.NewRouter()
	r.Use(tenant.NewResolver("", "").Middleware)
	r.Use(RequestLogger{Logger: logger}.Middleware)
	r.Get("/health/{probe}", func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Debug().Msg("inside_handler")
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(tenant.HeaderName, "tenant-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(lines[1], &entry); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if entry["message"] != "http_request" || entry["tenant_id"] != "tenant-1" {
		t.Fatalf("unexpected log entry %v", entry)
	}
	if entry["route"] != "/health/{probe}" || entry["status"] != float64(http.StatusNoContent) {
		t.Fatalf("unexpected route/status in %v", entry)
	}
}
