package cache

import (
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-pricing/internal/tenant"
)

const taxPoolNamespace = "pricing:taxpool:"

// KeyTaxPool returns the tenant-scoped key of the cached tax pool for a country.
func KeyTaxPool(tenantID uuid.UUID, country string) string {
	return tenant.PrefixKey(tenantID.String(), taxPoolNamespace+strings.ToUpper(strings.TrimSpace(country)))
}

// TenantTaxPoolPrefix matches every tax pool key of a tenant.
func TenantTaxPoolPrefix(tenantID uuid.UUID) string {
	return tenant.PrefixKey(tenantID.String(), taxPoolNamespace)
}
