package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when no path is given
const DefaultPath = "config.yaml"

// Environment variables that override the config file
const (
	EnvDatabaseURL    = "DATABASE_URL"
	EnvDatabaseDriver = "DATABASE_DRIVER"
	EnvLogLevel       = "LOG_LEVEL"

	// EnvConfigPath selects a config file other than DefaultPath
	EnvConfigPath = "FARM_MONITOR_CONFIG"
)

// ErrMissingDatabaseURL is returned when no connection string is configured
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is not set: export the storage connection string before running")

// DatabaseConfig holds all database configuration
type DatabaseConfig struct {
	Driver         string     `yaml:"driver"`
	URL            string     `yaml:"url"`
	ConnectionPool PoolConfig `yaml:"connection_pool"`
}

// PoolConfig holds connection pool configuration
type PoolConfig struct {
	MaxIdleConns    int `yaml:"max_idle_conns"`
	MaxOpenConns    int `yaml:"max_open_conns"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime"`
}

// MigrationConfig holds migration specific configuration
type MigrationConfig struct {
	AutoMigrate    bool   `yaml:"auto_migrate"`
	MigrationTable string `yaml:"migration_table"`
	Directory      string `yaml:"directory"`
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	LogFile      string `yaml:"log_file"`
	LogToConsole bool   `yaml:"log_to_console"`
	LogLevel     string `yaml:"log_level"`
}

// IngestConfig holds the defaults applied to imported CSV rows
type IngestConfig struct {
	DefaultLatitude  float64 `yaml:"default_latitude"`
	DefaultLongitude float64 `yaml:"default_longitude"`
	SensorType       string  `yaml:"sensor_type"`
	BatchSize        int     `yaml:"batch_size"`
	Workers          int     `yaml:"workers"`
}

// ServerConfig holds the read API settings
type ServerConfig struct {
	ListenAddress   string   `yaml:"listen_address"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	ReadTimeout     int      `yaml:"read_timeout"`
	WriteTimeout    int      `yaml:"write_timeout"`
	ShutdownTimeout int      `yaml:"shutdown_timeout"`
}

// Config holds the complete application configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Migration MigrationConfig `yaml:"migration"`
	Logging   LoggingConfig   `yaml:"logging"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Server    ServerConfig    `yaml:"server"`
}

// Default returns a configuration with every default filled in
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "postgres",
			ConnectionPool: PoolConfig{
				MaxIdleConns:    2,
				MaxOpenConns:    5,
				ConnMaxLifetime: 300,
			},
		},
		Migration: MigrationConfig{
			MigrationTable: "migrations",
			Directory:      "migrations",
		},
		Logging: LoggingConfig{
			LogFile:      "result.log",
			LogToConsole: true,
			LogLevel:     "info",
		},
		Ingest: IngestConfig{
			// 44°50′24″N 122°46′22″W
			DefaultLatitude:  44 + 50.0/60 + 24.0/3600,
			DefaultLongitude: -(122 + 46.0/60 + 22.0/3600),
			SensorType:       "temperature",
			BatchSize:        1000,
		},
		Server: ServerConfig{
			ListenAddress:   "127.0.0.1:8000",
			ReadTimeout:     15,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
	}
}

// Load reads the configuration like Read and validates it. Commands that
// touch storage use Load so a missing DATABASE_URL stops them before any work.
func Load(configPath string) (*Config, error) {
	config, err := Read(configPath)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Read loads configuration from the specified YAML file and applies environment
// overrides without validating it. A missing file is only an error when the
// path was given explicitly.
func Read(configPath string) (*Config, error) {
	explicit := configPath != ""
	if !explicit {
		configPath = DefaultPath
	}

	config := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// run on defaults and environment only
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config.applyEnv()
	config.fillDefaults()

	return config, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseURL)); v != "" {
		c.Database.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseDriver)); v != "" {
		c.Database.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Logging.LogLevel = strings.ToLower(v)
	}
}

// fillDefaults restores defaults for keys the YAML file left zero
func (c *Config) fillDefaults() {
	d := Default()
	if c.Database.Driver == "" {
		c.Database.Driver = d.Database.Driver
	}
	if c.Migration.MigrationTable == "" {
		c.Migration.MigrationTable = d.Migration.MigrationTable
	}
	if c.Migration.Directory == "" {
		c.Migration.Directory = d.Migration.Directory
	}
	if c.Logging.LogFile == "" {
		c.Logging.LogFile = d.Logging.LogFile
	}
	if c.Logging.LogLevel == "" {
		c.Logging.LogLevel = d.Logging.LogLevel
	}
	if c.Ingest.SensorType == "" {
		c.Ingest.SensorType = d.Ingest.SensorType
	}
	if c.Ingest.BatchSize == 0 {
		c.Ingest.BatchSize = d.Ingest.BatchSize
	}
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = d.Server.ListenAddress
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Database.URL == "" {
		return ErrMissingDatabaseURL
	}

	pool := c.Database.ConnectionPool
	if pool.MaxOpenConns < 1 {
		return fmt.Errorf("connection_pool.max_open_conns must be at least 1, got %d", pool.MaxOpenConns)
	}
	if pool.MaxIdleConns < 0 || pool.MaxIdleConns > pool.MaxOpenConns {
		return fmt.Errorf("connection_pool.max_idle_conns must be between 0 and %d, got %d",
			pool.MaxOpenConns, pool.MaxIdleConns)
	}

	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest.batch_size must be at least 1, got %d", c.Ingest.BatchSize)
	}
	if c.Ingest.Workers < 0 {
		return fmt.Errorf("ingest.workers must not be negative, got %d", c.Ingest.Workers)
	}

	switch c.Logging.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", c.Logging.LogLevel)
	}

	return nil
}

// GetDSN returns the database connection string for the configured driver
func (c *Config) GetDSN() string {
	if c.Database.Driver == "sqlite" {
		return strings.TrimPrefix(c.Database.URL, "sqlite://")
	}
	return c.Database.URL
}

// ConnMaxLifetime returns the pool's connection lifetime
func (c *Config) ConnMaxLifetime() time.Duration {
	return time.Duration(c.Database.ConnectionPool.ConnMaxLifetime) * time.Second
}

// Timeout converts one of the server timeouts (in seconds) to a duration
func Timeout(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
