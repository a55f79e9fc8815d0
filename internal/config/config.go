package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "STATGRAPH_"

// Store drivers.
const (
	DriverNone     = "none"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid value")

// Statgraph holds all configuration for the statgraph tool.
type Statgraph struct {
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	// Directory scanned for YAML and HCL group files.
	GroupsDir string `yaml:"groups_dir" env:"GROUPS_DIR"`

	Store StoreConfig `yaml:"store" envPrefix:"STORE_"`

	// Characters built at startup
	Owners []OwnerConfig `yaml:"owners"`
}

// StoreConfig selects where group definitions are persisted.
type StoreConfig struct {
	Driver     string         `yaml:"driver" env:"DRIVER"`
	SQLitePath string         `yaml:"sqlite_path" env:"SQLITE_PATH"`
	Database   DatabaseConfig `yaml:"database" envPrefix:"DB_"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	DBName   string `yaml:"dbname" env:"NAME"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// OwnerConfig describes one character and the groups it carries.
type OwnerConfig struct {
	ID   uint32 `yaml:"id"`
	Name string `yaml:"name"`
	// Groups lists group names; empty means every loaded group.
	Groups []string `yaml:"groups"`
	// Overrides replaces base values by full property ID.
	Overrides map[string]float64 `yaml:"overrides"`
}

// Default returns Statgraph config with sensible defaults.
func Default() Statgraph {
	return Statgraph{
		LogLevel:  "info",
		GroupsDir: "groups",
		Store: StoreConfig{
			Driver:     DriverNone,
			SQLitePath: "statgraph.db",
			Database: DatabaseConfig{
				Host:     "127.0.0.1",
				Port:     5432,
				User:     "statgraph",
				Password: "statgraph",
				DBName:   "statgraph",
				SSLMode:  "disable",
			},
		},
	}
}

// Load reads config from a YAML file and applies STATGRAPH_* environment
// overrides. If the file doesn't exist, defaults are used.
func Load(path string) (Statgraph, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks enumerated fields.
func (c Statgraph) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	switch c.Store.Driver {
	case DriverNone, DriverPostgres:
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path is empty", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: store driver %q", ErrInvalid, c.Store.Driver)
	}
	seen := make(map[uint32]bool, len(c.Owners))
	for _, o := range c.Owners {
		if seen[o.ID] {
			return fmt.Errorf("%w: duplicate owner id %d", ErrInvalid, o.ID)
		}
		seen[o.ID] = true
	}
	return nil
}
