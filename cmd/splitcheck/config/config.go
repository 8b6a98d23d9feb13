// Package config provides configuration structures for the splitcheck CLI.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Profiling engines.
const (
	EngineMemory = "memory"
	EngineDuckDB = "duckdb"
)

// Config represents the CLI configuration.
type Config struct {
	Dataset   string   `mapstructure:"dataset" yaml:"dataset" json:"dataset"`
	Revision  string   `mapstructure:"revision" yaml:"revision" json:"revision"`
	Splits    []string `mapstructure:"splits" yaml:"splits" json:"splits"`
	Engine    string   `mapstructure:"engine" yaml:"engine" json:"engine"`
	LogLevel  string   `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat string   `mapstructure:"log_format" yaml:"log_format" json:"log_format"`
	Color     bool     `mapstructure:"color" yaml:"color" json:"color"`
	HeadRows  int      `mapstructure:"head_rows" yaml:"head_rows" json:"head_rows"`

	// Hub client configuration
	Hub HubConfig `mapstructure:"hub" yaml:"hub" json:"hub"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// HubConfig represents dataset hub client configuration.
type HubConfig struct {
	Endpoint        string        `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	Token           string        `mapstructure:"token" yaml:"token" json:"token"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	MaxFileSize     int64         `mapstructure:"max_file_size" yaml:"max_file_size" json:"max_file_size"`
	ListingCacheTTL time.Duration `mapstructure:"listing_cache_ttl" yaml:"listing_cache_ttl" json:"listing_cache_ttl"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	// Textfile is written in the node-exporter textfile format after the run.
	Textfile string `mapstructure:"textfile" yaml:"textfile" json:"textfile"`
}

// Validate fills defaults and validates the configuration.
func (c *Config) Validate() error {
	c.Dataset = strings.TrimSpace(c.Dataset)
	if c.Dataset == "" {
		return fmt.Errorf("dataset is required")
	}

	if c.Revision == "" {
		c.Revision = "main"
	}

	splits := c.Splits[:0]
	for _, s := range c.Splits {
		if s = strings.TrimSpace(s); s != "" {
			splits = append(splits, s)
		}
	}
	c.Splits = splits
	if len(c.Splits) == 0 {
		c.Splits = []string{"train", "validation", "test"}
	}

	switch c.Engine {
	case "":
		c.Engine = EngineMemory
	case EngineMemory, EngineDuckDB:
	default:
		return fmt.Errorf("unsupported engine: %s", c.Engine)
	}

	switch c.LogLevel {
	case "":
		c.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", c.LogLevel)
	}

	switch c.LogFormat {
	case "":
		c.LogFormat = "console"
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log format: %s", c.LogFormat)
	}

	if c.HeadRows <= 0 {
		c.HeadRows = 5
	}

	if c.Hub.Endpoint == "" {
		c.Hub.Endpoint = "https://huggingface.co"
	}
	if !strings.HasPrefix(c.Hub.Endpoint, "http://") && !strings.HasPrefix(c.Hub.Endpoint, "https://") {
		return fmt.Errorf("hub endpoint must be an http(s) URL: %s", c.Hub.Endpoint)
	}
	if c.Hub.Timeout <= 0 {
		c.Hub.Timeout = 60 * time.Second
	}
	if c.Hub.MaxFileSize <= 0 {
		c.Hub.MaxFileSize = 512 * 1024 * 1024 // 512MB
	}
	if c.Hub.ListingCacheTTL <= 0 {
		c.Hub.ListingCacheTTL = 5 * time.Minute
	}

	if c.Metrics.Textfile != "" {
		c.Metrics.Enabled = true
	}

	return nil
}

// Load reads the configuration from v. Keys missing from v take their
// DefaultConfig values. If v has a "config" key, that file is read first.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v, DefaultConfig())

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML, JSON, or TOML file.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.Set("config", path)
	return Load(v)
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("dataset", d.Dataset)
	v.SetDefault("revision", d.Revision)
	v.SetDefault("splits", d.Splits)
	v.SetDefault("engine", d.Engine)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("color", d.Color)
	v.SetDefault("head_rows", d.HeadRows)
	v.SetDefault("hub.endpoint", d.Hub.Endpoint)
	v.SetDefault("hub.token", d.Hub.Token)
	v.SetDefault("hub.timeout", d.Hub.Timeout)
	v.SetDefault("hub.max_file_size", d.Hub.MaxFileSize)
	v.SetDefault("hub.listing_cache_ttl", d.Hub.ListingCacheTTL)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Revision:  "main",
		Splits:    []string{"train", "validation", "test"},
		Engine:    EngineMemory,
		LogLevel:  "info",
		LogFormat: "console",
		Color:     true,
		HeadRows:  5,
		Hub: HubConfig{
			Endpoint:        "https://huggingface.co",
			Timeout:         60 * time.Second,
			MaxFileSize:     512 * 1024 * 1024, // 512MB
			ListingCacheTTL: 5 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}
