// Package config loads libris settings.
//
// Settings come from three layers, later layers winning: built-in defaults,
// an optional YAML file, and LIBRIS_* environment variables. The CLI applies
// its flags on top.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/libris/internal/querysql"
	"github.com/roach88/libris/internal/store"
)

// Environment variables overriding file settings.
const (
	EnvDriver      = "LIBRIS_DB_DRIVER"
	EnvDatabaseURL = "LIBRIS_DATABASE_URL"
	EnvUser        = "LIBRIS_USER"
	EnvLogLevel    = "LIBRIS_LOG_LEVEL"
)

// Defaults.
const (
	DefaultDSN           = "libris.db"
	DefaultUser          = "cli"
	DefaultBusyTimeoutMS = 5000
)

// Config is the complete libris configuration.
type Config struct {
	Database Database `yaml:"database"`
	Log      Log      `yaml:"log"`

	// User is the acting user stamped into audit fields.
	User string `yaml:"user"`
}

// Database selects the storage backend.
type Database struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`

	// DSN is a file path for SQLite or a connection URL for PostgreSQL.
	DSN string `yaml:"dsn"`

	// BusyTimeoutMS applies to SQLite only.
	BusyTimeoutMS int `yaml:"busy_timeout_ms"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the configuration used when nothing is configured.
func Default() Config {
	return Config{
		Database: Database{
			Driver:        querysql.DriverSQLite,
			DSN:           DefaultDSN,
			BusyTimeoutMS: DefaultBusyTimeoutMS,
		},
		Log:  Log{Level: "info", Format: "text"},
		User: DefaultUser,
	}
}

// Load reads the file at path (skipped when path is empty), applies the
// process environment and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decodeInto(bytes.NewReader(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode parses YAML from r over the defaults. Unknown keys are rejected.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	if err := decodeInto(r, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeInto(r io.Reader, cfg *Config) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from environment variables found by lookup.
// Empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(EnvDriver, &c.Database.Driver)
	set(EnvDatabaseURL, &c.Database.DSN)
	set(EnvUser, &c.User)
	set(EnvLogLevel, &c.Log.Level)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := querysql.ForDriver(c.Database.Driver); err != nil {
		return fmt.Errorf("database.driver: %w", err)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Database.BusyTimeoutMS < 0 {
		return errors.New("database.busy_timeout_ms must be non-negative")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: invalid format %q: must be text or json", c.Log.Format)
	}
	if strings.TrimSpace(c.User) == "" {
		return errors.New("user is required")
	}
	return nil
}

// Level parses Log.Level.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: invalid level %q", c.Log.Level)
	}
	return level, nil
}

// StoreOptions converts the database settings for store.Open.
func (c Config) StoreOptions() store.Options {
	return store.Options{
		Driver:      c.Database.Driver,
		DSN:         c.Database.DSN,
		BusyTimeout: time.Duration(c.Database.BusyTimeoutMS) * time.Millisecond,
	}
}
