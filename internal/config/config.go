package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
	limiter "github.com/ulule/limiter/v3"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	DBMaxConns         int32
	MigrateOnStart     bool

	Currency          string
	DefaultVATRate    decimal.Decimal
	TaxPoolCacheTTL   time.Duration
	QuoteRateLimit    string
	WorkerConcurrency int

	AdminUser     string
	AdminPassword string

	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	EnablePrometheus bool
	EnableTracing    bool
	OTLPEndpoint     string
	SamplingRatio    float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		DBMaxConns:         int32(parseInt(k.String("DB_MAX_CONNS"), 10)),
		MigrateOnStart:     parseBool(k.String("MIGRATE_ON_START")),
		Currency:           strings.ToUpper(valueOrDefault(k.String("PRICING_CURRENCY"), "EUR")),
		TaxPoolCacheTTL:    parseDuration(k.String("PRICING_TAX_POOL_CACHE_TTL"), "10m"),
		QuoteRateLimit:     valueOrDefault(k.String("PRICING_QUOTE_RATE_LIMIT"), "300-M"),
		WorkerConcurrency:  parseInt(k.String("WORKER_CONCURRENCY"), 5),
		AdminUser:          strings.TrimSpace(k.String("ADMIN_BASIC_AUTH_USER")),
		AdminPassword:      k.String("ADMIN_BASIC_AUTH_PASS"),
		LogFormat:          valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace:   valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "pricing"),
		EnablePrometheus:   parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
		EnableTracing:      parseBool(k.String("OBS_ENABLE_TRACING")),
		OTLPEndpoint:       strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		SamplingRatio:      parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
	}

	rate, err := parseRate(k.String("PRICING_DEFAULT_VAT_RATE"))
	if err != nil {
		return nil, err
	}
	cfg.DefaultVATRate = rate

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if len(cfg.Currency) != 3 {
		return nil, fmt.Errorf("PRICING_CURRENCY must be a 3-letter code, got %q", cfg.Currency)
	}
	if _, err := limiter.NewRateFromFormatted(cfg.QuoteRateLimit); err != nil {
		return nil, fmt.Errorf("PRICING_QUOTE_RATE_LIMIT: %w", err)
	}
	if (cfg.AdminUser == "") != (cfg.AdminPassword == "") {
		return nil, errors.New("ADMIN_BASIC_AUTH_USER and ADMIN_BASIC_AUTH_PASS must be set together")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// AdminEnabled reports whether admin routes are mounted.
func (c *Config) AdminEnabled() bool {
	return c.AdminUser != "" && c.AdminPassword != ""
}

func parseRate(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.NewFromInt(21), nil
	}
	rate, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("PRICING_DEFAULT_VAT_RATE: %w", err)
	}
	if rate.Sign() <= 0 || rate.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return decimal.Decimal{}, fmt.Errorf("PRICING_DEFAULT_VAT_RATE must be in (0, 100), got %s", value)
	}
	return rate, nil
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f < 0 || f > 1 {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
