// Package config loads the application configuration: the reusable core
// sections plus the store, remote, telemetry and metrics settings.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/vitalsbot/core/config"
	coredatabase "github.com/m3rciful/vitalsbot/core/database"
	"github.com/m3rciful/vitalsbot/internal/kv"
	"github.com/m3rciful/vitalsbot/internal/telemetry"
)

// StoreConfig selects where the identity and timer documents live.
type StoreConfig struct {
	Backend string `yaml:"backend" validate:"omitempty,oneof=file badger postgres sqlite"`
	// Dir holds the file backend's JSON files and the badger directory.
	Dir string `yaml:"dir"`
	// Database is used by the postgres and sqlite backends.
	Database coredatabase.Config `yaml:"database"`
}

// UsesDatabase reports whether the backend needs a SQL connection.
func (s StoreConfig) UsesDatabase() bool {
	return s.Backend == kv.BackendPostgres || s.Backend == kv.BackendSQLite
}

// RemoteConfig points at the read-only store holding profiles and telemetry.
type RemoteConfig struct {
	Driver              string `yaml:"driver" validate:"omitempty,oneof=postgres sqlite"`
	DSN                 string `yaml:"dsn" validate:"required"`
	ProfilesTable       string `yaml:"profiles_table" split_words:"true"`
	QueryTimeoutSeconds int    `yaml:"query_timeout_seconds" split_words:"true" validate:"gte=0"`
	MaxConnections      int    `yaml:"max_connections" split_words:"true" validate:"gte=0"`
	BreakerName         string `yaml:"breaker_name" split_words:"true"`
}

// Database converts the section to a connection config.
func (r RemoteConfig) Database() coredatabase.Config {
	driver := r.Driver
	if driver == "" {
		driver = coredatabase.DriverPostgres
	}
	cfg := coredatabase.Config{Driver: driver, DSN: r.DSN, MaxConnections: r.MaxConnections}
	if driver == coredatabase.DriverSQLite {
		cfg.Path = r.DSN
	}
	return cfg
}

// QueryTimeout bounds a single remote query.
func (r RemoteConfig) QueryTimeout() time.Duration {
	return time.Duration(r.QueryTimeoutSeconds) * time.Second
}

// TelemetryConfig tunes the fetch capability. Interactive requests and timer
// fires draw from separate rate budgets.
type TelemetryConfig struct {
	// Tables maps dataset names (daily, hourly) to physical tables.
	Tables             map[string]string `yaml:"tables"`
	RatePerSecond      float64           `yaml:"rate_per_second" split_words:"true" validate:"gte=0"`
	Burst              int               `yaml:"burst" validate:"gte=0"`
	TimerRatePerSecond float64           `yaml:"timer_rate_per_second" split_words:"true" validate:"gte=0"`
	TimerBurst         int               `yaml:"timer_burst" split_words:"true" validate:"gte=0"`
}

// SharedBudget reports whether timer fires draw from the interactive
// limiter. It holds while timer_rate_per_second is unset.
func (t TelemetryConfig) SharedBudget() bool {
	return t.TimerRatePerSecond == 0
}

// TableMap returns the configured tables over the defaults.
func (t TelemetryConfig) TableMap() (telemetry.Tables, error) {
	tables := telemetry.DefaultTables()
	for name, table := range t.Tables {
		ds, ok := telemetry.ParseDataset(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("telemetry.tables: unknown dataset %q", name)
		}
		if table = strings.TrimSpace(table); table != "" {
			tables[ds] = table
		}
	}
	return tables, nil
}

// MetricsConfig configures the ops HTTP server. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Store     StoreConfig     `yaml:"store"`
	Remote    RemoteConfig    `yaml:"remote"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// CoreConfig exposes the embedded core section to the framework packages.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads path (YAML, optional) and the environment, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills defaults and validates every section.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = kv.BackendFile
	}
	if strings.TrimSpace(c.Store.Dir) == "" {
		c.Store.Dir = "data"
	}
	if c.Store.Backend == kv.BackendSQLite {
		c.Store.Database.Driver = coredatabase.DriverSQLite
		if c.Store.Database.Path == "" {
			c.Store.Database.Path = c.Store.Dir + "/vitalsbot.db"
		}
	}
	if c.Store.Backend == kv.BackendPostgres {
		c.Store.Database.Driver = coredatabase.DriverPostgres
	}
	c.Remote.Driver = strings.ToLower(strings.TrimSpace(c.Remote.Driver))
	if c.Remote.QueryTimeoutSeconds == 0 {
		c.Remote.QueryTimeoutSeconds = 10
	}
	if c.Telemetry.RatePerSecond == 0 {
		c.Telemetry.RatePerSecond = telemetry.DefaultRatePerSecond
	}

	if err := coreconfig.Validate(c); err != nil {
		return err
	}
	if c.Store.Backend == kv.BackendPostgres && c.Store.Database.DSN == "" && c.Store.Database.Host == "" {
		return errors.New("config: store.database needs dsn or host for the postgres backend")
	}
	if _, err := c.Telemetry.TableMap(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
