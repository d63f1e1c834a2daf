package main

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/config"
	"github.com/noah-isme/toko-pricing/internal/health"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/quote"
	"github.com/noah-isme/toko-pricing/internal/ratelimit"
	"github.com/noah-isme/toko-pricing/internal/security"
	"github.com/noah-isme/toko-pricing/internal/tenant"
)

const maxQuoteBody = 1 << 20

type routerConfig struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Tracing bool
	Metrics *obs.HTTPMetrics
	Quotes  *quote.Handler
	Limiter ratelimit.Handler
	Health  health.Handler
}

func newRouter(rc routerConfig) http.Handler {
	cfg := rc.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if rc.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if rc.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: rc.Metrics}.Middleware)
	}
	r.Use(tenant.NewResolver(tenant.HeaderName, "").Middleware)
	r.Use(obs.RequestLogger{Logger: rc.Logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production", NoStore: true}.Middleware)
	r.Use(security.CORS(cfg.CORSAllowedOrigins, tenant.HeaderName))

	if rc.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", cfg.AdminUser)
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", cfg.AdminPassword)
		if pprofHandler, ok := protectPprof(newPprofMux(), user, pass); ok {
			r.Mount("/debug/pprof", pprofHandler)
		} else {
			rc.Logger.Warn().Msg("pprof disabled: no basic auth credentials configured")
		}
	}

	r.Get("/health/live", rc.Health.Live)
	r.Get("/health/ready", rc.Health.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: maxQuoteBody}.Middleware)
		v.With(tenant.Require, rc.Limiter.Middleware).Post("/pricing/quote", rc.Quotes.Quote)

		if cfg.AdminEnabled() {
			v.Route("/admin", func(admin chi.Router) {
				admin.Use(requireBasicAuth(cfg.AdminUser, cfg.AdminPassword))
				admin.Post("/tax-pools/refresh", rc.Quotes.RefreshTaxPool)
			})
		}
	})

	return r
}

func requireBasicAuth(user, pass string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !basicAuthMatches(r, user, pass) {
				w.Header().Set("WWW-Authenticate", `Basic realm="pricing-admin"`)
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func basicAuthMatches(r *http.Request, user, pass string) bool {
	u, p, ok := r.BasicAuth()
	return ok &&
		subtle.ConstantTimeCompare([]byte(u), []byte(user)) == 1 &&
		subtle.ConstantTimeCompare([]byte(p), []byte(pass)) == 1
}

// newPprofMux matches full paths since chi's Mount leaves r.URL.Path untouched
// and pprof.Index reads profile names from it.
func newPprofMux() http.Handler {
	const prefix = "/debug/pprof"
	mux := http.NewServeMux()
	mux.HandleFunc(prefix+"/", pprof.Index)
	mux.HandleFunc(prefix+"/cmdline", pprof.Cmdline)
	mux.HandleFunc(prefix+"/profile", pprof.Profile)
	mux.HandleFunc(prefix+"/symbol", pprof.Symbol)
	mux.HandleFunc(prefix+"/trace", pprof.Trace)
	return mux
}

// protectPprof reports false when credentials are missing; pprof is never served unauthenticated.
func protectPprof(handler http.Handler, user, pass string) (http.Handler, bool) {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" || pass == "" {
		return nil, false
	}
	return requireBasicAuth(user, pass)(handler), true
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil && parsed > 0 {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return time.Duration(fallback) * time.Millisecond
}
