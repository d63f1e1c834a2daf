package cache

import (
	"context"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-pricing/internal/tax"
)

// TaxPoolCache caches the unresolved tax pool of a tenant and country. The
// pool is stored before date filtering, so an entry stays correct across days.
type TaxPoolCache struct {
	Cache *Cache
}

// Get returns the cached pool and whether it was found.
func (c TaxPoolCache) Get(ctx context.Context, tenantID uuid.UUID, country string) (tax.Pool, bool, error) {
	var pool tax.Pool
	ok, err := c.Cache.GetJSON(ctx, KeyTaxPool(tenantID, country), &pool)
	if err != nil || !ok {
		return tax.Pool{}, false, err
	}
	return pool, true, nil
}

// Put stores pool for the tenant and country.
func (c TaxPoolCache) Put(ctx context.Context, tenantID uuid.UUID, country string, pool tax.Pool) error {
	return c.Cache.SetJSON(ctx, KeyTaxPool(tenantID, country), pool)
}

// PutIfAbsent stores pool unless an entry already exists, so a pool read on
// the quote path never replaces one written by a refresh.
func (c TaxPoolCache) PutIfAbsent(ctx context.Context, tenantID uuid.UUID, country string, pool tax.Pool) (bool, error) {
	return c.Cache.SetJSONIfAbsent(ctx, KeyTaxPool(tenantID, country), pool)
}

// InvalidateTenant drops every cached pool of the tenant.
func (c TaxPoolCache) InvalidateTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	return c.Cache.DeletePrefix(ctx, TenantTaxPoolPrefix(tenantID))
}
