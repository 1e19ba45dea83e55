// Package config loads the server and proxy settings from YAML.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap/zapcore"

	"github.com/deepaksharma/otel-trace-access/internal/proxy/opensearch"
	"github.com/deepaksharma/otel-trace-access/internal/proxy/rest"
	"github.com/deepaksharma/otel-trace-access/internal/snapshot"
)

// Proxy kinds.
const (
	KindStatic     = "static"
	KindOpenSearch = "opensearch"
	KindREST       = "rest"
)

// Config is the top level configuration.
type Config struct {
	// LogLevel is one of debug, info, warn or error
	LogLevel string `mapstructure:"log_level"`

	Server ServerConfig `mapstructure:"server"`
	Proxy  ProxyConfig  `mapstructure:"proxy"`
}

// ServerConfig defines the HTTP front-end listener.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// ShutdownTimeout bounds how long in-flight requests may run on shutdown
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

// ProxyConfig selects and configures the span source.
type ProxyConfig struct {
	Kind       string            `mapstructure:"kind"`
	Static     StaticConfig      `mapstructure:"static"`
	OpenSearch opensearch.Config `mapstructure:"opensearch"`
	REST       rest.Config       `mapstructure:"rest"`
}

// StaticConfig points the static proxy at a snapshot file.
type StaticConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`

	// ReloadSchedule is an optional cron expression for reloading Path
	ReloadSchedule string `mapstructure:"reload_schedule"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            12345,
			ShutdownTimeout: "10s",
		},
		Proxy: ProxyConfig{
			Kind: KindStatic,
			Static: StaticConfig{
				Format: string(snapshot.FormatOTLPJSON),
			},
			OpenSearch: opensearch.DefaultConfig(),
			REST:       rest.DefaultConfig(),
		},
	}
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(b)
}

// Parse reads YAML bytes on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(b), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "mapstructure"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if _, err := cfg.ShutdownTimeout(); err != nil {
		return err
	}

	switch cfg.Proxy.Kind {
	case KindStatic:
		return cfg.Proxy.Static.Validate()
	case KindOpenSearch:
		if err := cfg.Proxy.OpenSearch.Client.Validate(); err != nil {
			return fmt.Errorf("invalid proxy.opensearch.client: %w", err)
		}
		if err := cfg.Proxy.OpenSearch.Validate(); err != nil {
			return fmt.Errorf("invalid proxy.opensearch: %w", err)
		}
	case KindREST:
		if err := cfg.Proxy.REST.Validate(); err != nil {
			return fmt.Errorf("invalid proxy.rest: %w", err)
		}
	default:
		return fmt.Errorf("proxy.kind must be one of %s, %s or %s, got %q", KindStatic, KindOpenSearch, KindREST, cfg.Proxy.Kind)
	}
	return nil
}

// Validate checks the static proxy settings. An empty path serves no spans.
func (c *StaticConfig) Validate() error {
	if _, err := snapshot.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("invalid proxy.static.format: %w", err)
	}
	if c.ReloadSchedule != "" && c.Path == "" {
		return fmt.Errorf("proxy.static.reload_schedule requires proxy.static.path")
	}
	return nil
}

// Address returns the host:port the server listens on.
func (cfg *Config) Address() string {
	return net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
}

// ShutdownTimeout parses server.shutdown_timeout.
func (cfg *Config) ShutdownTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(cfg.Server.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid server.shutdown_timeout format: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("server.shutdown_timeout must be positive, got %s", cfg.Server.ShutdownTimeout)
	}
	return d, nil
}
