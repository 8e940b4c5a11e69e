// Package config loads the datafeed's TOML configuration: which venue
// adapters to enable, which one is the default route, endpoint overrides,
// and the shared HTTP/stream tuning knobs.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/veiloq/chart-datafeed/pkg/exchanges/interfaces"
)

// Duration wraps time.Duration so TOML values can be written as "15s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// VenueConfig configures one exchange adapter.
type VenueConfig struct {
	Enabled bool   `toml:"enabled"`
	RESTURL string `toml:"rest_url"`
	WSURL   string `toml:"ws_url"`
}

// HTTPConfig tunes the shared REST client.
type HTTPConfig struct {
	Timeout           Duration `toml:"timeout"`
	RequestsPerSecond int      `toml:"requests_per_second"`
}

// StreamConfig tunes the websocket layer.
type StreamConfig struct {
	ReconnectInterval Duration `toml:"reconnect_interval"`
	HeartbeatInterval Duration `toml:"heartbeat_interval"`
}

// Config is the root configuration document.
type Config struct {
	// DefaultAdapter is the adapter ID that receives requests whose
	// symbol carries no recognizable prefix.
	DefaultAdapter string `toml:"default_adapter"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	// FreshnessWindow bounds how long cached symbol discovery stays
	// authoritative.
	FreshnessWindow Duration `toml:"freshness_window"`

	HTTP   HTTPConfig   `toml:"http"`
	Stream StreamConfig `toml:"stream"`

	// Exchanges maps adapter IDs (lower-cased in the file) to their
	// per-venue settings.
	Exchanges map[string]VenueConfig `toml:"exchanges"`
}

// Default returns the configuration used when no file is given: all six
// adapters enabled, Binance spot as the default route.
func Default() *Config {
	cfg := &Config{
		DefaultAdapter: "BINANCE",
		LogLevel:       "info",
		Exchanges: map[string]VenueConfig{
			"binance":         {Enabled: true},
			"binance_futures": {Enabled: true},
			"bybit":           {Enabled: true},
			"bybit_futures":   {Enabled: true},
			"okx":             {Enabled: true},
			"okx_swap":        {Enabled: true},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates a TOML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates raw TOML.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	defaults := interfaces.NewOptions()
	if c.DefaultAdapter == "" {
		c.DefaultAdapter = "BINANCE"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.FreshnessWindow.Duration <= 0 {
		c.FreshnessWindow.Duration = defaults.FreshnessWindow
	}
	if c.HTTP.Timeout.Duration <= 0 {
		c.HTTP.Timeout.Duration = defaults.HTTPTimeout
	}
	if c.HTTP.RequestsPerSecond <= 0 {
		c.HTTP.RequestsPerSecond = defaults.MaxRequestsPerSecond
	}
	if c.Stream.ReconnectInterval.Duration <= 0 {
		c.Stream.ReconnectInterval.Duration = defaults.WSReconnectInterval
	}
	if c.Stream.HeartbeatInterval.Duration <= 0 {
		c.Stream.HeartbeatInterval.Duration = defaults.WSHeartbeatInterval
	}
	if c.Exchanges == nil {
		c.Exchanges = map[string]VenueConfig{}
	}
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}

	enabled := 0
	for _, venue := range c.Exchanges {
		if venue.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("no exchange enabled")
	}
	return nil
}

// Venue returns the settings for an adapter ID, matching case-insensitively
// against the lower-cased keys used in the file.
func (c *Config) Venue(adapterID string) VenueConfig {
	for key, venue := range c.Exchanges {
		if strings.EqualFold(key, adapterID) {
			return venue
		}
	}
	return VenueConfig{}
}

// Options builds the adapter options for one venue from the shared tuning
// sections plus that venue's endpoint overrides.
func (c *Config) Options(adapterID string) *interfaces.Options {
	venue := c.Venue(adapterID)
	opts := interfaces.NewOptions()
	opts.HTTPTimeout = c.HTTP.Timeout.Duration
	opts.MaxRequestsPerSecond = c.HTTP.RequestsPerSecond
	opts.WSReconnectInterval = c.Stream.ReconnectInterval.Duration
	opts.WSHeartbeatInterval = c.Stream.HeartbeatInterval.Duration
	opts.FreshnessWindow = c.FreshnessWindow.Duration
	opts.RESTBaseURL = venue.RESTURL
	opts.WSBaseURL = venue.WSURL
	return opts
}
