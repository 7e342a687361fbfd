package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Promo registry backends.
const (
	RegistryStatic   = "static"
	RegistryPostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (ORDERS_ prefix), flags, or YAML config files.
type Config struct {
	Addr           string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL    string        `usage:"PostgreSQL connection URL (ORDERS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RequestTimeout time.Duration `default:"10s" usage:"Per-request deadline for order creation" flag:"request-timeout"`
	Promo          PromoConfig
	Health         HealthConfig
	Graceful       GracefulConfig
}

// PromoConfig selects where promo definitions come from.
type PromoConfig struct {
	Registry string `default:"static" usage:"Promo registry backend: static or postgres"`
}

// HealthConfig controls probe scheduling.
type HealthConfig struct {
	Interval      time.Duration `default:"10s" usage:"Health check interval" flag:"health-interval"`
	MaxGoroutines int           `default:"10000" usage:"Liveness goroutine limit" flag:"health-max-goroutines"`
	FailureLimit  int           `default:"3" usage:"Consecutive failures before a check is unhealthy" flag:"health-failure-limit"`
	SuccessLimit  int           `default:"1" usage:"Consecutive successes before a check is healthy" flag:"health-success-limit"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults and validates the result.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ORDERS",
		Files:     []string{"config.yaml", "/etc/orders/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration that cannot start the server.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set ORDERS_DATABASE_URL or DATABASE_URL")
	}
	switch c.Promo.Registry {
	case RegistryStatic, RegistryPostgres:
	default:
		return errors.Errorf("unknown promo registry %q", c.Promo.Registry)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.Health.Interval <= 0 {
		return errors.New("health interval must be positive")
	}
	return nil
}

// applyPlatformDefaults maps the standard DATABASE_URL and PORT variables
// used by hosting platforms.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
