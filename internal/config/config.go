package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/PackStore/internal/poller"
	pkgconfig "github.com/utafrali/PackStore/pkg/config"
	"github.com/utafrali/PackStore/pkg/database"
	"github.com/utafrali/PackStore/pkg/tracing"
)

// Config holds all configuration for the packstore service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	PprofAllowCIDRs []string      `env:"PPROF_ALLOW_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`
	// JWTSecret enables bearer-token identity. Empty trusts X-User-ID from
	// the gateway.
	JWTSecret string `env:"JWT_SECRET"`

	// Pricing and totals
	VATRate              decimal.Decimal `env:"VAT_RATE" envDefault:"0.20"`
	VATAppliesToShipping bool            `env:"VAT_APPLIES_TO_SHIPPING" envDefault:"true"`
	ShippingDefault      string          `env:"SHIPPING_DEFAULT_OPTION" envDefault:"standard"`

	// Order confirmation polling
	Poll            poller.Config
	PollRetention   time.Duration `env:"POLL_RETENTION" envDefault:"5m"`
	PollStatusRPS   float64       `env:"POLL_STATUS_RPS" envDefault:"2"`
	PollStatusBurst int           `env:"POLL_STATUS_BURST" envDefault:"5"`

	// Collaborators. An empty ORDER_SERVICE_URL reads orders from Postgres;
	// an empty STRIPE_SECRET_KEY uses the mock verifier.
	CatalogURL      string `env:"CATALOG_URL" envDefault:"http://localhost:8001"`
	OrderServiceURL string `env:"ORDER_SERVICE_URL"`
	StripeSecretKey string `env:"STRIPE_SECRET_KEY"`

	// Storage
	CartTTL         time.Duration `env:"CART_TTL" envDefault:"168h"`
	CatalogCacheTTL time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"5m"`
	SlowQuery       time.Duration `env:"DB_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`
	Postgres        database.PostgresConfig
	Redis           database.RedisConfig

	// Kafka
	KafkaBrokers       []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup string        `env:"KAFKA_CONSUMER_GROUP" envDefault:"packstore"`
	EventDedupTTL      time.Duration `env:"EVENT_DEDUP_TTL" envDefault:"24h"`

	Tracing tracing.Config
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load packstore config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the service runs in a local development
// environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// validate rejects settings the service cannot run with.
func (c *Config) validate() error {
	var errs []error
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	if c.VATRate.IsNegative() || c.VATRate.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("VAT_RATE must be between 0 and 1, got %s", c.VATRate))
	}
	if c.Poll.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("POLL_MAX_ATTEMPTS must be at least 1, got %d", c.Poll.MaxAttempts))
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.Poll.Deadline <= 0 {
		errs = append(errs, errors.New("POLL_DEADLINE must be positive"))
	}
	if c.PollStatusRPS <= 0 || c.PollStatusBurst < 1 {
		errs = append(errs, errors.New("POLL_STATUS_RPS and POLL_STATUS_BURST must be positive"))
	}
	if c.StripeSecretKey == "" && !c.IsDevelopment() {
		errs = append(errs, fmt.Errorf("STRIPE_SECRET_KEY is required in %s", c.Environment))
	}
	if c.CatalogURL == "" {
		errs = append(errs, errors.New("CATALOG_URL is required"))
	}
	if len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required"))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.Tracing.SampleRate))
	}
	return errors.Join(errs...)
}
