package config

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	API     APIConfig
	CSRF    CSRFConfig
	HTTP    HTTPConfig
	Observe ObserveConfig
}

// APIConfig locates the UpTask backend and the credentials used by the CLI.
type APIConfig struct {
	// BaseURL is the API root; relative request paths are resolved against it.
	BaseURL string `env:"UPTASK_API_URL, required"`

	Email    string `env:"UPTASK_EMAIL"`
	Password string `env:"UPTASK_PASSWORD"`

	TimeoutSeconds int `env:"HTTP_TIMEOUT_SECS, default=30"`
}

// CSRFConfig controls token acquisition and injection.
type CSRFConfig struct {
	// FieldName is the body key the token is merged into.
	FieldName string `env:"CSRF_FIELD_NAME, default=_csrf"`

	// FetchTimeoutSeconds bounds a single token fetch so a hung backend cannot
	// stall every mutating request.
	FetchTimeoutSeconds int `env:"CSRF_FETCH_TIMEOUT_SECS, default=10"`
}

type HTTPConfig struct {
	MaxIdleConns    int `env:"HTTP_MAX_IDLE_CONNS, default=100"`
	MaxConnsPerHost int `env:"HTTP_MAX_CONNS_PER_HOST, default=20"`
}

type ObserveConfig struct {
	SDKLogLevel                string `env:"OBSERVE_OTEL_LOG_LEVEL, default=info"`
	Enabled                    bool   `env:"OBSERVE_ENABLED, default=false"`
	MetricsEnabled             bool   `env:"OBSERVE_METRICS_ENABLED, default=true"`
	Type                       string `env:"OBSERVE_TYPE, default=grpc"`
	ServiceName                string `env:"OBSERVE_SERVICE_NAME, default=uptask-client"`
	TraceBatchTimeoutSeconds   int    `env:"OBSERVE_TRACE_BATCH_TIMEOUT_SECS, default=20"`
	MetricReadIntervalSeconds  int    `env:"OBSERVE_METRIC_READ_INTERVAL_SECS, default=60"`
	HTTPTransportEnabled       bool   `env:"OBSERVE_HTTP_TRANSPORT_ENABLED, default=true"`
	HTTPConnectionTraceEnabled bool   `env:"OBSERVE_CONNECTION_TRACE_ENABLED, default=true"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	err = cfg.API.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid API configuration: %w", err)
	}

	err = cfg.CSRF.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid CSRF configuration: %w", err)
	}

	err = cfg.Observe.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid observe configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the base URL is absolute and uses HTTP(S).
func (c *APIConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("UPTASK_API_URL could not be parsed: %w", err)
	}

	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("UPTASK_API_URL must be an absolute http(s) URL: %s", c.BaseURL)
	}

	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECS must not be negative")
	}

	return nil
}

func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks the token field name and fetch timeout.
func (c *CSRFConfig) Validate() error {
	if c.FieldName == "" {
		return fmt.Errorf("CSRF_FIELD_NAME must not be empty")
	}

	if c.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("CSRF_FETCH_TIMEOUT_SECS must be positive")
	}

	return nil
}

func (c CSRFConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

func (c *ObserveConfig) Validate() error {
	if c.Type != "grpc" && c.Type != "stdout" {
		return fmt.Errorf("OBSERVE_TYPE must be one of grpc or stdout, got %q", c.Type)
	}

	return nil
}
