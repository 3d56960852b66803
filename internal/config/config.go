// Package config loads the service's ops knobs — the collaborator
// concerns §6 scopes out of the core pipeline: broker URL, database
// URL, cache TTLs, outbox interval and retry limits, and the request
// deadline. Grounded on the teacher's own yaml.v3 rule-pack loader
// (internal/infrastructure/yaml/yaml_loader.go), repurposed here for
// service configuration instead of rule packs, and layered with
// PRICING_-prefixed environment overrides the way the rest of the
// examples' config layers do (os.Getenv lookups applied after the
// file load, never the reverse).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every ops knob the service needs at boot. Zero values
// are replaced by Defaults before validation.
type Config struct {
	HTTP struct {
		Addr            string        `yaml:"addr"`
		RequestDeadline time.Duration `yaml:"requestDeadline"`
	} `yaml:"http"`

	Database struct {
		DSN             string        `yaml:"dsn"`
		MaxConns        int32         `yaml:"maxConns"`
		MaxConnLifetime time.Duration `yaml:"maxConnLifetime"`
	} `yaml:"database"`

	Broker struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"broker"`

	Webhooks struct {
		Endpoints []WebhookEndpointConfig `yaml:"endpoints"`
		QueueSize int                     `yaml:"queueSize"`
	} `yaml:"webhooks"`

	Cache struct {
		FrozenInputCapacity int           `yaml:"frozenInputCapacity"`
		FrozenInputTTL      time.Duration `yaml:"frozenInputTtl"`
		ResultCapacity      int           `yaml:"resultCapacity"`
		ResultTTL           time.Duration `yaml:"resultTtl"`
	} `yaml:"cache"`

	Outbox struct {
		PollInterval time.Duration `yaml:"pollInterval"`
		BatchLimit   int           `yaml:"batchLimit"`
		MaxRetries   int           `yaml:"maxRetries"`
	} `yaml:"outbox"`
}

// WebhookEndpointConfig is one subscriber entry for the webhook fan-out.
type WebhookEndpointConfig struct {
	URL        string   `yaml:"url"`
	Secret     string   `yaml:"secret"`
	EventTypes []string `yaml:"eventTypes"`
}

// Defaults returns a Config with every ops knob set to a production-safe
// default, so a deployment only needs to override what it cares about.
func Defaults() Config {
	var c Config
	c.HTTP.Addr = ":8080"
	c.HTTP.RequestDeadline = 10 * time.Second
	c.Database.MaxConns = 10
	c.Database.MaxConnLifetime = time.Hour
	c.Webhooks.QueueSize = 256
	c.Cache.FrozenInputCapacity = 10_000
	c.Cache.FrozenInputTTL = 5 * time.Minute
	c.Cache.ResultCapacity = 10_000
	c.Cache.ResultTTL = 30 * time.Minute
	c.Outbox.PollInterval = 5 * time.Second
	c.Outbox.BatchLimit = 100
	c.Outbox.MaxRetries = 5
	return c
}

// Load reads path as YAML over Defaults(), applies PRICING_-prefixed
// environment overrides, and validates the result. A malformed file,
// unparseable override, or validation failure returns a non-nil error;
// the caller's cmd/* main is expected to exit 1 on that error per §6.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v, ok := os.LookupEnv("PRICING_HTTP_ADDR"); ok {
		cfg.HTTP.Addr = v
	}
	if v, ok := os.LookupEnv("PRICING_REQUEST_DEADLINE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: PRICING_REQUEST_DEADLINE: %w", err)
		}
		cfg.HTTP.RequestDeadline = d
	}
	if v, ok := os.LookupEnv("PRICING_DATABASE_DSN"); ok {
		cfg.Database.DSN = v
	}
	if v, ok := os.LookupEnv("PRICING_DATABASE_MAX_CONNS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: PRICING_DATABASE_MAX_CONNS: %w", err)
		}
		cfg.Database.MaxConns = int32(n)
	}
	if v, ok := os.LookupEnv("PRICING_BROKER_ENDPOINT"); ok {
		cfg.Broker.Endpoint = v
	}
	if v, ok := os.LookupEnv("PRICING_OUTBOX_POLL_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: PRICING_OUTBOX_POLL_INTERVAL: %w", err)
		}
		cfg.Outbox.PollInterval = d
	}
	if v, ok := os.LookupEnv("PRICING_OUTBOX_MAX_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: PRICING_OUTBOX_MAX_RETRIES: %w", err)
		}
		cfg.Outbox.MaxRetries = n
	}
	if v, ok := os.LookupEnv("PRICING_CACHE_RESULT_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: PRICING_CACHE_RESULT_TTL: %w", err)
		}
		cfg.Cache.ResultTTL = d
	}
	return nil
}

// Validate rejects a config that would leave the service unable to
// start: no database DSN, non-positive pool/cache/outbox sizes, or a
// non-positive deadline.
func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("config: database.dsn is required")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("config: database.maxConns must be positive")
	}
	if c.HTTP.RequestDeadline <= 0 {
		return fmt.Errorf("config: http.requestDeadline must be positive")
	}
	if c.Outbox.PollInterval <= 0 {
		return fmt.Errorf("config: outbox.pollInterval must be positive")
	}
	if c.Outbox.MaxRetries <= 0 {
		return fmt.Errorf("config: outbox.maxRetries must be positive")
	}
	if c.Cache.FrozenInputCapacity <= 0 || c.Cache.ResultCapacity <= 0 {
		return fmt.Errorf("config: cache capacities must be positive")
	}
	return nil
}
