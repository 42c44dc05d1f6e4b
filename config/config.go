package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/HKUDS/AI-Trader-sub000/date"
	"github.com/HKUDS/AI-Trader-sub000/market"
)

// Config represents the complete engine configuration
type Config struct {
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Portfolio  PortfolioConfig  `json:"portfolio" yaml:"portfolio"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Pricefeed  PricefeedConfig  `json:"pricefeed" yaml:"pricefeed"`
	Settlement SettlementConfig `json:"settlement" yaml:"settlement"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// StorageConfig locates the ledger and order files
type StorageConfig struct {
	Root       string `json:"root" yaml:"root"`
	Backend    string `json:"backend" yaml:"backend"` // "jsonl" or "sqlite"
	SQLitePath string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
}

// PortfolioConfig identifies the portfolio being operated on
type PortfolioConfig struct {
	ID          string `json:"id" yaml:"id"`
	InitialCash string `json:"initial_cash" yaml:"initial_cash"`
	Market      string `json:"market" yaml:"market"`
}

// SimulationConfig pins the simulated clock
type SimulationConfig struct {
	CurrentDate string `json:"current_date" yaml:"current_date"`
}

// PricefeedConfig selects and parameterizes the price source
type PricefeedConfig struct {
	Source  string `json:"source" yaml:"source"` // "csv" or "http"
	CSVDir  string `json:"csv_dir,omitempty" yaml:"csv_dir,omitempty"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Token   string `json:"token,omitempty" yaml:"token,omitempty"`
}

// SettlementConfig contains settlement run parameters
type SettlementConfig struct {
	ClearQueue  bool   `json:"clear_queue" yaml:"clear_queue"`
	LockTimeout string `json:"lock_timeout,omitempty" yaml:"lock_timeout,omitempty"` // e.g. "5s", "1m"
}

// LoggingConfig controls the slog handler
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // "debug", "info", "warn", "error"
	Format string `json:"format" yaml:"format"` // "json" or "text"
}

// ParseLockTimeout converts the lock timeout string to a duration.
// Empty means the default of 10 seconds.
func (s SettlementConfig) ParseLockTimeout() (time.Duration, error) {
	if s.LockTimeout == "" {
		return 10 * time.Second, nil
	}
	return time.ParseDuration(s.LockTimeout)
}

// InitialCashDecimal parses the configured starting cash.
func (p PortfolioConfig) InitialCashDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(p.InitialCash)
}

// Date parses the simulated clock date. Zero when unset.
func (s SimulationConfig) Date() (date.Date, error) {
	if s.CurrentDate == "" {
		return date.Date{}, nil
	}
	return date.Parse(s.CurrentDate)
}

// LoadFromFile loads configuration from a file (JSON or YAML based on
// content), applies environment overrides and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides file values from the environment so one config
// file can drive many portfolios and dates.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("AITRADER_DATA_DIR"); v != "" {
		c.Storage.Root = v
	}
	if v := os.Getenv("AITRADER_PORTFOLIO"); v != "" {
		c.Portfolio.ID = v
	}
	if v := os.Getenv("AITRADER_DATE"); v != "" {
		c.Simulation.CurrentDate = v
	}
	if v := os.Getenv("AITRADER_PRICEFEED_TOKEN"); v != "" {
		c.Pricefeed.Token = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root is required")
	}
	if c.Storage.Backend != "jsonl" && c.Storage.Backend != "sqlite" {
		return fmt.Errorf("storage.backend must be 'jsonl' or 'sqlite'")
	}
	if c.Storage.Backend == "sqlite" && c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path required for sqlite backend")
	}
	if c.Portfolio.ID == "" {
		return fmt.Errorf("portfolio.id is required")
	}
	if c.Portfolio.InitialCash != "" {
		cash, err := c.Portfolio.InitialCashDecimal()
		if err != nil {
			return fmt.Errorf("portfolio.initial_cash: %w", err)
		}
		if !cash.IsPositive() {
			return fmt.Errorf("portfolio.initial_cash must be positive")
		}
	}
	if c.Portfolio.Market != "" {
		if _, err := market.Parse(c.Portfolio.Market); err != nil {
			return fmt.Errorf("portfolio.market: %w", err)
		}
	}
	if c.Simulation.CurrentDate != "" {
		if _, err := date.Parse(c.Simulation.CurrentDate); err != nil {
			return fmt.Errorf("simulation.current_date: %w", err)
		}
	}
	switch c.Pricefeed.Source {
	case "csv":
		if c.Pricefeed.CSVDir == "" {
			return fmt.Errorf("pricefeed.csv_dir required for csv source")
		}
	case "http":
		if c.Pricefeed.BaseURL == "" {
			return fmt.Errorf("pricefeed.base_url required for http source")
		}
	default:
		return fmt.Errorf("pricefeed.source must be 'csv' or 'http'")
	}
	if _, err := c.Settlement.ParseLockTimeout(); err != nil {
		return fmt.Errorf("settlement.lock_timeout: %w", err)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error")
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'text'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Root:    "./data",
			Backend: "jsonl",
		},
		Portfolio: PortfolioConfig{
			ID:          "default",
			InitialCash: "10000",
			Market:      "us",
		},
		Pricefeed: PricefeedConfig{
			Source: "csv",
			CSVDir: "./data/prices",
		},
		Settlement: SettlementConfig{
			ClearQueue:  false,
			LockTimeout: "10s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
