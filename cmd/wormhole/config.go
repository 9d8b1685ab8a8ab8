package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/xraph/wormhole"
)

// Config is the configuration of the wormhole binary. File values are read
// first; environment variables named in env tags override them.
type Config struct {
	// Listen is the HTTP listen address for the API and /metrics.
	Listen string `yaml:"listen" env:"WORMHOLE_LISTEN"`

	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Transport TransportConfig `yaml:"transport"`
	Ingress   IngressConfig   `yaml:"ingress"`
	Relay     RelayConfig     `yaml:"relay"`
	Tracing   TracingConfig   `yaml:"tracing"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"WORMHOLE_LOG_LEVEL"` // debug, info, warn, error
	Format string `yaml:"format"`                         // json or text
}

// StoreConfig selects the record store.
type StoreConfig struct {
	// Driver is "memory", "redis", "sqlite" or "postgres".
	Driver string `yaml:"driver" env:"WORMHOLE_STORE_DRIVER"`

	// URL is the connection URL or, for sqlite, the database file path.
	URL string `yaml:"url" env:"WORMHOLE_STORE_URL"`
}

// TransportConfig configures the chat gateway client.
type TransportConfig struct {
	BaseURL string        `yaml:"base_url" env:"WORMHOLE_GATEWAY_URL"`
	Token   string        `yaml:"token" env:"WORMHOLE_GATEWAY_TOKEN"`
	Secret  string        `yaml:"secret" env:"WORMHOLE_SIGNING_SECRET"`
	Timeout time.Duration `yaml:"timeout"`
}

// IngressConfig configures the event routes.
type IngressConfig struct {
	Secret    string        `yaml:"secret" env:"WORMHOLE_SIGNING_SECRET"`
	Tolerance time.Duration `yaml:"tolerance"`

	// Announce broadcasts admin changes to the affected beam.
	Announce bool `yaml:"announce"`
}

// RelayConfig mirrors wormhole.Config.
type RelayConfig struct {
	CommandPrefix        string        `yaml:"command_prefix"`
	OwnerID              int64         `yaml:"owner_id"`
	LaneBuffer           int           `yaml:"lane_buffer"`
	DestinationRateLimit int           `yaml:"destination_rate_limit"`
	MaxLength            int           `yaml:"max_length"`
	MentionFormat        string        `yaml:"mention_format"`
	EmphasisFormat       string        `yaml:"emphasis_format"`
	AnnouncePrefix       string        `yaml:"announce_prefix"`
	ResolverCacheTTL     time.Duration `yaml:"resolver_cache_ttl"`
}

// TracingConfig enables OTLP trace export. An empty endpoint leaves the
// global no-op provider in place.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint" env:"WORMHOLE_OTEL_ENDPOINT"`
	ServiceName string `yaml:"service_name"`
}

func defaultConfig() Config {
	rc := wormhole.DefaultConfig()
	return Config{
		Listen: ":8080",
		Log:    LogConfig{Level: "info", Format: "json"},
		Store:  StoreConfig{Driver: "memory"},
		Relay: RelayConfig{
			CommandPrefix:        rc.CommandPrefix,
			OwnerID:              rc.OwnerID,
			LaneBuffer:           rc.LaneBuffer,
			DestinationRateLimit: rc.DestinationRateLimit,
			MaxLength:            rc.MaxLength,
			MentionFormat:        rc.MentionFormat,
			EmphasisFormat:       rc.EmphasisFormat,
			AnnouncePrefix:       rc.AnnouncePrefix,
			ResolverCacheTTL:     rc.ResolverCacheTTL,
		},
		Tracing:         TracingConfig{ServiceName: "wormhole"},
		ShutdownTimeout: 30 * time.Second,
	}
}

// loadConfig reads path over the defaults, then applies the environment.
// An empty path uses the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	}
	switch c.Store.Driver {
	case "memory":
	case "redis", "sqlite", "postgres":
		if c.Store.URL == "" {
			errs = append(errs, fmt.Errorf("store.url is required for the %s driver", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Transport.BaseURL == "" {
		errs = append(errs, errors.New("transport.base_url is required"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
