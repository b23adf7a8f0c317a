package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gyeh/cdrload/internal/normalize"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// StoreConfig selects the persistence and audit backend.
type StoreConfig struct {
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	SQLitePath string `yaml:"sqlite_path"`
}

// ArchiveConfig enables a Parquet copy of every persisted chunk.
type ArchiveConfig struct {
	ParquetDir string `yaml:"parquet_dir"`
}

// Config holds all runtime configuration for cdrload.
type Config struct {
	InputDir        string        `yaml:"input_dir"`
	ProcessedDir    string        `yaml:"processed_dir"`
	ErrorDir        string        `yaml:"error_dir"`
	Include         string        `yaml:"include"` // doublestar pattern matched against file base names
	Exclude         string        `yaml:"exclude"` // names matching this are never selected
	DateFormatComma string        `yaml:"date_format_comma"`
	DateFormatDot   string        `yaml:"date_format_dot"`
	ChunkSize       int           `yaml:"chunk_size"`
	Workers         int           `yaml:"workers"`
	Interval        time.Duration `yaml:"interval"`
	Watch           bool          `yaml:"watch"` // wake up early when a file lands in InputDir
	Store           StoreConfig   `yaml:"store"`
	Archive         ArchiveConfig `yaml:"archive"`

	// Set from flags, not the file.
	LogFormat string `yaml:"-"` // "text" or "json"
	LogLevel  string `yaml:"-"`
}

// Defaults returns a Config with every optional field populated.
func Defaults() Config {
	return Config{
		Include:         "*",
		DateFormatComma: normalize.DefaultCommaLayout,
		DateFormatDot:   normalize.DefaultDotLayout,
		ChunkSize:       500,
		Workers:         4,
		Interval:        60 * time.Second,
		Store: StoreConfig{
			Driver:     DriverSQLite,
			SQLitePath: "cdrload.db",
		},
		LogFormat: "text",
		LogLevel:  "info",
	}
}

// LoadFromFile reads a YAML config file and merges its values over c.
// Keys absent from the file keep their current values.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	c.DateFormatComma = normalize.Layout(c.DateFormatComma)
	c.DateFormatDot = normalize.Layout(c.DateFormatDot)
	return nil
}

// Load returns Defaults overlaid with the file at path. An empty path yields Defaults.
func Load(path string) (Config, error) {
	c := Defaults()
	if path == "" {
		return c, nil
	}
	if err := c.LoadFromFile(path); err != nil {
		return c, err
	}
	return c, nil
}

// WatchExclude is the exclude pattern used in watch mode when none is set, so
// files still being written under a temporary name are not picked up.
const WatchExclude = "{.*,*.tmp,*.part}"

// ExcludePattern returns the effective exclude pattern.
func (c *Config) ExcludePattern() string {
	if c.Exclude == "" && c.Watch {
		return WatchExclude
	}
	return c.Exclude
}

// TimestampLayouts returns the configured parser layouts.
func (c *Config) TimestampLayouts() normalize.TimestampLayouts {
	return normalize.TimestampLayouts{Comma: c.DateFormatComma, Dot: c.DateFormatDot}
}

// Validate checks required fields and returns an error if the config is invalid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.InputDir) == "" {
		return fmt.Errorf("input_dir is required")
	}
	if strings.TrimSpace(c.ProcessedDir) == "" {
		return fmt.Errorf("processed_dir is required")
	}
	if strings.TrimSpace(c.ErrorDir) == "" {
		return fmt.Errorf("error_dir is required")
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be at least 1, got %d", c.ChunkSize)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.DateFormatComma == "" || c.DateFormatDot == "" {
		return fmt.Errorf("date_format_comma and date_format_dot are required")
	}
	return c.ValidateStore()
}

// ValidateStore checks only the backend settings.
func (c *Config) ValidateStore() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn, --dsn or CDRLOAD_DB_URL is required for the postgres driver")
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}
