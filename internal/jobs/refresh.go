package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/noah-isme/toko-pricing/internal/lock"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/tax"
)

// PoolLoader reads a tenant's tax pool from the database.
type PoolLoader interface {
	LoadTaxPool(ctx context.Context, tenantID uuid.UUID, country string) (tax.Pool, error)
}

// PoolStore is the tax pool cache.
type PoolStore interface {
	Put(ctx context.Context, tenantID uuid.UUID, country string, pool tax.Pool) error
	InvalidateTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// Locker serializes refreshes across workers.
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// RefreshHandler processes TypeTaxPoolRefresh tasks: it drops every cached
// pool of the tenant and warms the requested country.
type RefreshHandler struct {
	Loader    PoolLoader
	Cache     PoolStore
	Locker    Locker
	LockTTL   time.Duration
	Logger    zerolog.Logger
	Refreshes metric.Int64Counter
}

// ProcessTask implements asynq.Handler.
func (h RefreshHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p RefreshPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if p.TenantID == uuid.Nil || p.Country == "" {
		return fmt.Errorf("%s payload missing tenant or country: %w", t.Type(), asynq.SkipRetry)
	}
	if h.Loader == nil || h.Cache == nil {
		return errors.New("refresh handler not configured")
	}
	logger := h.Logger.With().Str("tenant_id", p.TenantID.String()).Str("country", p.Country).Logger()

	err := h.withLock(ctx, lock.RefreshKey(p.TenantID, p.Country), func(ctx context.Context) error {
		dropped, err := h.Cache.InvalidateTenant(ctx, p.TenantID)
		if err != nil {
			return fmt.Errorf("invalidate tax pools: %w", err)
		}
		pool, err := h.Loader.LoadTaxPool(ctx, p.TenantID, p.Country)
		if err != nil {
			return fmt.Errorf("load tax pool: %w", err)
		}
		if err := h.Cache.Put(ctx, p.TenantID, p.Country, pool); err != nil {
			return fmt.Errorf("store tax pool: %w", err)
		}
		logger.Info().
			Int("dropped", dropped).
			Int("general", len(pool.General)).
			Int("local", len(pool.Local)).
			Msg("tax_pool_refreshed")
		return nil
	})

	switch {
	case errors.Is(err, lock.ErrHeld):
		h.record(ctx, "skipped")
		logger.Debug().Msg("tax_pool_refresh_in_progress")
		return nil
	case err != nil:
		h.record(ctx, "error")
		logger.Error().Err(err).Msg("tax_pool_refresh_failed")
		return err
	default:
		h.record(ctx, "ok")
		return nil
	}
}

func (h RefreshHandler) withLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if h.Locker == nil {
		return fn(ctx)
	}
	ttl := h.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return h.Locker.TryWithLock(ctx, key, ttl, fn)
}

func (h RefreshHandler) record(ctx context.Context, result string) {
	obs.RecordTaxPoolRefresh(result)
	if h.Refreshes != nil {
		h.Refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
}

// NewServeMux routes pricing task types to their handlers.
func NewServeMux(refresh RefreshHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeTaxPoolRefresh, refresh)
	return mux
}
