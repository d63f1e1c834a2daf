package tenant_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-pricing/internal/tenant"
)

func guarded(t *testing.T, seen *uuid.UUID) http.Handler {
	t.Helper()
	resolver := tenant.NewResolver("", "")
	return resolver.Middleware(tenant.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := tenant.IDFrom(r.Context())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		*seen = id
		w.WriteHeader(http.StatusOK)
	})))
}

func TestRequireTenantMissing(t *testing.T) {
	var seen uuid.UUID
	rec := httptest.NewRecorder()
	guarded(t, &seen).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "TENANT_REQUIRED") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestRequireTenantInvalid(t *testing.T) {
	var seen uuid.UUID
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set(tenant.HeaderName, "acme")
	rec := httptest.NewRecorder()
	guarded(t, &seen).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "TENANT_INVALID") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestRequireTenantPresent(t *testing.T) {
	var seen uuid.UUID
	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set(tenant.HeaderName, " "+id.String()+" ")
	rec := httptest.NewRecorder()
	guarded(t, &seen).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen != id {
		t.Fatalf("expected tenant %s, got %s", id, seen)
	}
}

func TestPrefixKey(t *testing.T) {
	if got := tenant.PrefixKey("", "k"); got != "k" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := tenant.PrefixKey("t1", "k"); got != "tenant:t1:k" {
		t.Fatalf("unexpected key %q", got)
	}
}
