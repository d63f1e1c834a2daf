package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-pricing/internal/common"
)

// HeaderName is the default request header carrying the tenant id.
const HeaderName = "X-Tenant-ID"

var (
	// ErrTenantMissing indicates the tenant identifier was not found in context.
	ErrTenantMissing = errors.New("tenant missing")
	// ErrTenantInvalid indicates the tenant identifier is not a UUID.
	ErrTenantInvalid = errors.New("tenant invalid")
)

type contextKey string

const tenantContextKey contextKey = "tenant.id"

// Resolver reads the tenant id from a request header.
type Resolver struct {
	HeaderName    string
	DefaultTenant string
}

// NewResolver returns a resolver for headerName, falling back to defaultTenant
// when the header is absent. An empty headerName selects HeaderName.
func NewResolver(headerName, defaultTenant string) *Resolver {
	if strings.TrimSpace(headerName) == "" {
		headerName = HeaderName
	}
	return &Resolver{HeaderName: headerName, DefaultTenant: strings.TrimSpace(defaultTenant)}
}

// Middleware injects the resolved tenant id into the request context.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		tenantID := strings.TrimSpace(req.Header.Get(r.HeaderName))
		if tenantID == "" {
			tenantID = r.DefaultTenant
		}
		if tenantID != "" {
			req = req.WithContext(WithTenant(req.Context(), tenantID))
		}
		next.ServeHTTP(w, req)
	})
}

// Require rejects requests without a well-formed tenant id.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := IDFrom(r.Context()); err != nil {
			code, msg := "TENANT_REQUIRED", "tenant is required"
			if errors.Is(err, ErrTenantInvalid) {
				code, msg = "TENANT_INVALID", "tenant id must be a UUID"
			}
			common.JSONError(w, http.StatusBadRequest, code, msg, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithTenant stores the tenant identifier inside the context.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, tenantContextKey, tenantID)
}

// From extracts the raw tenant identifier from the context.
func From(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	tenantID, ok := ctx.Value(tenantContextKey).(string)
	if !ok {
		return "", false
	}
	tenantID = strings.TrimSpace(tenantID)
	return tenantID, tenantID != ""
}

// IDFrom returns the tenant id from ctx parsed as a UUID.
func IDFrom(ctx context.Context) (uuid.UUID, error) {
	raw, ok := From(ctx)
	if !ok {
		return uuid.Nil, ErrTenantMissing
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrTenantInvalid, err)
	}
	return id, nil
}
