// Package config loads runtime settings from the environment and optional .env files.
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
)

// Document store drivers.
const (
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// GenAI configures the text generation upstream used by the assistant.
type GenAI struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Enabled reports whether a model is configured. Without one the assistant runs on rules only.
func (g GenAI) Enabled() bool {
	return strings.TrimSpace(g.APIKey) != ""
}

// Payment configures the payment link gateway.
type Payment struct {
	Endpoint          string
	Timeout           time.Duration
	SimulateOnFailure bool
	RedirectBaseURL   string
}

// Circuit configures the breakers guarding upstream HTTP calls.
type Circuit struct {
	MinRequests  int
	FailureRatio float64
	OpenFor      time.Duration
}

// Obs configures logging, metrics and tracing.
type Obs struct {
	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	EnablePrometheus bool
	EnableTracing    bool
	OTLPEndpoint     string
	SamplingRatio    float64
	EnablePprof      bool
	PprofUser        string
	PprofPass        string
}

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv                string
	Port                  string
	RedisURL              string
	DatabaseURL           string
	DocstoreDriver        string
	CatalogCacheTTL       time.Duration
	CartTTL               time.Duration
	ShippingFee           decimal.Decimal
	CurrencyCode          string
	CurrencyMinorExponent int
	AssistantRateLimit    string
	AssistantMaxResults   int
	CheckoutLockTTL       time.Duration
	IdempotencyTTL        time.Duration
	BodyLimitBytes        int64
	CORSAllowedOrigins    []string
	AdminUserIDs          []string

	GenAI   GenAI
	Payment Payment
	Circuit Circuit
	Obs     Obs
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	appEnv := valueOrDefault(k.String("APP_ENV"), "development")
	shippingFee, err := decimal.NewFromString(valueOrDefault(k.String("SHIPPING_FEE"), "30000"))
	if err != nil || shippingFee.IsNegative() {
		return nil, fmt.Errorf("SHIPPING_FEE must be a non-negative number: %q", k.String("SHIPPING_FEE"))
	}

	cfg := &Config{
		AppEnv:                appEnv,
		Port:                  valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:              strings.TrimSpace(k.String("REDIS_URL")),
		DatabaseURL:           strings.TrimSpace(k.String("DATABASE_URL")),
		DocstoreDriver:        strings.ToLower(valueOrDefault(k.String("DOCSTORE_DRIVER"), DriverRedis)),
		CatalogCacheTTL:       parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		CartTTL:               parseDuration(k.String("CART_TTL"), "168h"),
		ShippingFee:           shippingFee,
		CurrencyCode:          strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "VND")),
		CurrencyMinorExponent: parseInt(k.String("CURRENCY_MINOR_EXPONENT"), 0),
		AssistantRateLimit:    valueOrDefault(k.String("ASSISTANT_RATE_LIMIT"), "20-M"),
		AssistantMaxResults:   parseInt(k.String("ASSISTANT_MAX_RESULTS"), 5),
		CheckoutLockTTL:       parseDuration(k.String("CHECKOUT_LOCK_TTL"), "15s"),
		IdempotencyTTL:        parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		BodyLimitBytes:        int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		CORSAllowedOrigins:    splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		AdminUserIDs:          splitAndTrim(k.String("ADMIN_USER_IDS")),
		GenAI: GenAI{
			APIKey:  strings.TrimSpace(k.String("GENAI_API_KEY")),
			BaseURL: valueOrDefault(k.String("GENAI_BASE_URL"), "https://generativelanguage.googleapis.com/v1beta"),
			Model:   valueOrDefault(k.String("GENAI_MODEL"), "gemini-1.5-flash"),
			Timeout: parseDuration(k.String("GENAI_TIMEOUT"), "8s"),
		},
		Payment: Payment{
			Endpoint:          strings.TrimSpace(k.String("PAYMENT_ENDPOINT")),
			Timeout:           parseDuration(k.String("PAYMENT_TIMEOUT"), "10s"),
			SimulateOnFailure: parseBool(k.String("PAYMENT_SIMULATE_ON_FAILURE"), appEnv != "production"),
			RedirectBaseURL:   strings.TrimSpace(k.String("PAYMENT_REDIRECT_BASE_URL")),
		},
		Circuit: Circuit{
			MinRequests:  parseInt(k.String("CIRCUIT_MIN_REQUESTS"), 10),
			FailureRatio: parseFloat(k.String("CIRCUIT_FAILURE_RATIO"), 0.5),
			OpenFor:      parseDuration(k.String("CIRCUIT_OPEN_FOR"), "30s"),
		},
		Obs: Obs{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "shopmate"),
			EnablePrometheus: parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			EnableTracing:    parseBool(k.String("OBS_ENABLE_TRACING"), false),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
			EnablePprof:      parseBool(k.String("OBS_ENABLE_PPROF"), false),
			PprofUser:        strings.TrimSpace(k.String("PPROF_BASIC_AUTH_USER")),
			PprofPass:        strings.TrimSpace(k.String("PPROF_BASIC_AUTH_PASS")),
		},
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	switch cfg.DocstoreDriver {
	case DriverRedis:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when DOCSTORE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported DOCSTORE_DRIVER %q", cfg.DocstoreDriver)
	}
	if cfg.CurrencyMinorExponent < 0 {
		return nil, errors.New("CURRENCY_MINOR_EXPONENT must not be negative")
	}
	if cfg.AssistantMaxResults <= 0 {
		cfg.AssistantMaxResults = 5
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

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
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
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
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
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// LoadForTests allows tests to override environment variables without touching the real environment.
// An empty value unsets the variable for the duration of the load.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]*string, len(env))
	for key, value := range env {
		if prev, ok := os.LookupEnv(key); ok {
			original[key] = &prev
		} else {
			original[key] = nil
		}
		if err := setEnvVar(key, value); err != nil {
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

func restoreEnv(values map[string]*string) error {
	var errs []error
	for key, value := range values {
		var err error
		if value == nil {
			err = os.Unsetenv(key)
		} else {
			err = os.Setenv(key, *value)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %w", errors.Join(errs...))
	}
	return nil
}
