// Package config loads the server configuration from a YAML file with env
// overrides for credentials.
package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr      string   `yaml:"http_addr"`
	Symbols       []string `yaml:"symbols"`
	FeeRate       string   `yaml:"fee_rate"`
	CommandBuffer int      `yaml:"command_buffer"`

	Feed    Feed    `yaml:"feed"`
	Journal Journal `yaml:"journal"`
}

type Feed struct {
	URL string `yaml:"url"`
}

type Journal struct {
	// Backend is one of "none", "postgres", "kafka".
	Backend     string   `yaml:"backend"`
	DatabaseURL string   `yaml:"database_url"`
	Brokers     []string `yaml:"brokers"`
	Topic       string   `yaml:"topic"`
}

func Default() *Config {
	return &Config{
		HTTPAddr:      ":8080",
		Symbols:       []string{"BTCUSDT"},
		FeeRate:       "0",
		CommandBuffer: 1024,
		Journal:       Journal{Backend: "none"},
	}
}

// Load reads path over the defaults. DATABASE_URL in the environment wins
// over the file so credentials stay out of it.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Journal.DatabaseURL = url
	}

	if _, err := cfg.ParsedFeeRate(); err != nil {
		return nil, err
	}
	switch cfg.Journal.Backend {
	case "", "none", "postgres", "kafka":
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Journal.Backend)
	}
	return cfg, nil
}

// ParsedFeeRate returns the flat fee rate as a decimal.
func (c *Config) ParsedFeeRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.FeeRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fee_rate %q: %w", c.FeeRate, err)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("fee_rate %q: must not be negative", c.FeeRate)
	}
	return rate, nil
}
