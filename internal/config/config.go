// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type BookingConfig struct {
	// Payment must arrive within this window or the booking is released.
	PaymentTimeoutMinutes int `yaml:"payment_timeout_minutes"`
	// Daily operating window, "15:04".
	OpenTime  string `yaml:"open_time"`
	CloseTime string `yaml:"close_time"`
	// Grid step for the free-slot search.
	StepMinutes int `yaml:"step_minutes"`
	// "grid" or "gapfill".
	SlotSearch string `yaml:"slot_search"`
}

type PricingConfig struct {
	// Hour boundary between pre and post rates, "15:04".
	Cutoff string `yaml:"cutoff"`
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
		BaseURL     string `yaml:"base_url"`
	} `yaml:"app"`

	Database DatabaseConfig `yaml:"database"`
	Booking  BookingConfig  `yaml:"booking"`
	Pricing  PricingConfig  `yaml:"pricing"`

	Features struct {
		EnableMetrics   bool `yaml:"enable_metrics"`
		EnableRateLimit bool `yaml:"enable_rate_limit"`
		EnableDebug     bool `yaml:"enable_debug"`
	} `yaml:"features"`
}

// Default returns the configuration used when no config file is supplied.
func Default() *Config {
	var cfg Config
	cfg.App.Name = "fieldbooking"
	cfg.App.Environment = "development"
	cfg.App.Port = 8080
	cfg.Database.Driver = "sqlite"
	cfg.Database.Filename = "data/fieldbooking.db"
	cfg.Booking = BookingConfig{
		PaymentTimeoutMinutes: 15,
		OpenTime:              "10:00",
		CloseTime:             "24:00",
		StepMinutes:           60,
		SlotSearch:            "grid",
	}
	cfg.Pricing.Cutoff = "18:00"
	cfg.Features.EnableMetrics = true
	cfg.Features.EnableRateLimit = true
	return &cfg
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	// Read and parse YAML config
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.Filename == "" {
		return fmt.Errorf("database filename is required for sqlite")
	}
	if c.Booking.PaymentTimeoutMinutes <= 0 {
		return fmt.Errorf("payment timeout must be greater than 0")
	}
	if c.Booking.StepMinutes <= 0 {
		return fmt.Errorf("slot step must be greater than 0")
	}
	if c.Booking.SlotSearch != "grid" && c.Booking.SlotSearch != "gapfill" {
		return fmt.Errorf("slot_search must be grid or gapfill")
	}
	open, err := c.OpenMinute()
	if err != nil {
		return err
	}
	closeMinute, err := c.CloseMinute()
	if err != nil {
		return err
	}
	if closeMinute <= open {
		return fmt.Errorf("close_time must be after open_time")
	}
	if _, err := c.CutoffMinute(); err != nil {
		return err
	}
	return nil
}

// OpenMinute returns the opening time as minutes since midnight.
func (c *Config) OpenMinute() (int, error) {
	return parseClockMinute("open_time", c.Booking.OpenTime)
}

// CloseMinute returns the closing time as minutes since midnight. "24:00"
// is accepted for venues open until midnight.
func (c *Config) CloseMinute() (int, error) {
	return parseClockMinute("close_time", c.Booking.CloseTime)
}

// CutoffMinute returns the pricing cutoff as minutes since midnight.
func (c *Config) CutoffMinute() (int, error) {
	return parseClockMinute("cutoff", c.Pricing.Cutoff)
}

func parseClockMinute(field, value string) (int, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%s must be in HH:MM form, got %q", field, value)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 24 {
		return 0, fmt.Errorf("%s has invalid hour %q", field, parts[0])
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%s has invalid minute %q", field, parts[1])
	}
	total := hours*60 + minutes
	if total > 24*60 {
		return 0, fmt.Errorf("%s is past midnight: %q", field, value)
	}
	return total, nil
}
