package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration. Values come from an
// optional YAML file and are then overridden by CADENCE_* environment
// variables.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path" env:"CADENCE_DB_PATH"`

	LogLevel  string `yaml:"log_level" env:"CADENCE_LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"CADENCE_LOG_FORMAT"`

	// Timezone is the IANA zone used for FLOATING rules and for "today".
	Timezone string `yaml:"timezone" env:"CADENCE_TIMEZONE"`

	// HorizonDays is how many days ahead the scheduler materializes,
	// starting today.
	HorizonDays int `yaml:"horizon_days" env:"CADENCE_HORIZON_DAYS"`

	// MaterializeCron is a standard five-field cron spec.
	MaterializeCron string `yaml:"materialize_cron" env:"CADENCE_MATERIALIZE_CRON"`

	// MaxScan caps occurrences generated per match.
	MaxScan int `yaml:"max_scan" env:"CADENCE_MAX_SCAN"`
}

const (
	defaultDBPath          = "cadence.db"
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
	defaultTimezone        = "UTC"
	defaultHorizonDays     = 14
	defaultMaterializeCron = "5 0 * * *"
	defaultMaxScan         = 50000
)

func DefaultConfig() *Config {
	return &Config{
		DBPath:          defaultDBPath,
		LogLevel:        defaultLogLevel,
		LogFormat:       defaultLogFormat,
		Timezone:        defaultTimezone,
		HorizonDays:     defaultHorizonDays,
		MaterializeCron: defaultMaterializeCron,
		MaxScan:         defaultMaxScan,
	}
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	if c.DBPath == "" {
		c.DBPath = defaultDBPath
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		c.LogFormat = defaultLogFormat
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.MaterializeCron == "" {
		c.MaterializeCron = defaultMaterializeCron
	}
	if c.MaxScan <= 0 {
		c.MaxScan = defaultMaxScan
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load reads the YAML file at path (a missing file or empty path means
// defaults), applies environment overrides and normalizes the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Normalize()

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cadence-config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
