package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the complete tradebook configuration.
type Config struct {
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Broker  BrokerConfig  `json:"broker" yaml:"broker"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Watch   WatchConfig   `json:"watch" yaml:"watch"`
}

// StorageConfig locates the trade files and the chart cache. Charts usually
// share the trades root: {root}/{ticker}/charts/{timeframe}.json.
type StorageConfig struct {
	TradesDir string `json:"trades_dir" yaml:"trades_dir"`
	ChartsDir string `json:"charts_dir,omitempty" yaml:"charts_dir,omitempty"`
}

// BrokerConfig selects the broker. Only the paper broker ships with the
// module.
type BrokerConfig struct {
	Type               string  `json:"type" yaml:"type"` // "sim"
	StateFile          string  `json:"state_file" yaml:"state_file"`
	CommissionPerShare float64 `json:"commission_per_share" yaml:"commission_per_share"`
	CommissionMinimum  float64 `json:"commission_minimum" yaml:"commission_minimum"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv" or "sqlite"
	TradesFile string `json:"trades_file" yaml:"trades_file"`
	EquityFile string `json:"equity_file" yaml:"equity_file"`
	DBPath     string `json:"db_path" yaml:"db_path"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

// WatchConfig drives the long-running watch command. Schedules use cron
// syntax or descriptors such as "@every 1m".
type WatchConfig struct {
	Schedule        string `json:"schedule" yaml:"schedule"`
	JournalSchedule string `json:"journal_schedule" yaml:"journal_schedule"`
	MetricsAddr     string `json:"metrics_addr" yaml:"metrics_addr"`
}

// ChartsRoot is the chart cache root, defaulting to the trades root.
func (c *Config) ChartsRoot() string {
	if c.Storage.ChartsDir != "" {
		return c.Storage.ChartsDir
	}
	return c.Storage.TradesDir
}

// Load builds the effective configuration: defaults, then the file at path
// if it exists, then a .env file in the working directory, then TRADEBOOK_*
// environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		switch {
		case err == nil:
			cfg = fileCfg
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file (JSON or YAML). Fields the
// file leaves out keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		if err = json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (YAML for .yaml/.yml, JSON otherwise)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Storage.TradesDir == "" {
		return fmt.Errorf("storage.trades_dir is required")
	}
	if c.Broker.Type != "sim" {
		return fmt.Errorf("broker.type must be 'sim'")
	}
	if c.Broker.StateFile == "" {
		return fmt.Errorf("broker.state_file is required")
	}
	if c.Broker.CommissionPerShare < 0 || c.Broker.CommissionMinimum < 0 {
		return fmt.Errorf("broker commission must not be negative")
	}
	if c.Journal.Type != "csv" && c.Journal.Type != "sqlite" {
		return fmt.Errorf("journal.type must be 'csv' or 'sqlite'")
	}
	if c.Journal.Type == "csv" && (c.Journal.TradesFile == "" || c.Journal.EquityFile == "") {
		return fmt.Errorf("journal trades_file and equity_file required for CSV type")
	}
	if c.Journal.Type == "sqlite" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal db_path required for SQLite type")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	for name, expr := range map[string]string{
		"watch.schedule":         c.Watch.Schedule,
		"watch.journal_schedule": c.Watch.JournalSchedule,
	} {
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			TradesDir: "./data/trades",
		},
		Broker: BrokerConfig{
			Type:      "sim",
			StateFile: "./data/sim.json",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./data/journal.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Watch: WatchConfig{
			Schedule:        "@every 1m",
			JournalSchedule: "5 0 * * *",
			MetricsAddr:     ":9090",
		},
	}
}

func (c *Config) applyEnv() error {
	c.Storage.TradesDir = getEnv("TRADEBOOK_TRADES_DIR", c.Storage.TradesDir)
	c.Storage.ChartsDir = getEnv("TRADEBOOK_CHARTS_DIR", c.Storage.ChartsDir)
	c.Broker.StateFile = getEnv("TRADEBOOK_SIM_STATE", c.Broker.StateFile)
	c.Log.Level = getEnv("TRADEBOOK_LOG_LEVEL", c.Log.Level)
	c.Log.Pretty = getEnvAsBool("TRADEBOOK_LOG_PRETTY", c.Log.Pretty)
	c.Watch.MetricsAddr = getEnv("TRADEBOOK_METRICS_ADDR", c.Watch.MetricsAddr)

	if db := os.Getenv("TRADEBOOK_JOURNAL_DB"); db != "" {
		c.Journal.Type = "sqlite"
		c.Journal.DBPath = db
	}

	var err error
	if c.Broker.CommissionPerShare, err = getEnvAsFloat("TRADEBOOK_COMMISSION_PER_SHARE", c.Broker.CommissionPerShare); err != nil {
		return err
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
