package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"farm_monitor/config"
	applog "farm_monitor/logger"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB owns the connection pool shared by every request and import. It is
// opened once at startup and closed at shutdown.
type DB struct {
	gorm   *gorm.DB
	sql    *sql.DB
	driver string
}

// Dialector selects the gorm dialector for the configured driver
func Dialector(cfg *config.Config) (gorm.Dialector, error) {
	dsn := cfg.GetDSN()
	switch cfg.Database.Driver {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case applog.DEBUG:
		return gormlogger.Info
	case applog.ERROR:
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}

// Open establishes a database connection pool based on the provided configuration
func Open(cfg *config.Config) (*DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.New(
			log.New(applog.Writer(), "", log.LstdFlags),
			gormlogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormLogLevel(cfg.Logging.LogLevel),
				IgnoreRecordNotFoundError: true,
			},
		),
	}

	gdb, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	pool := cfg.Database.ConnectionPool
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{
		gorm:   gdb,
		sql:    sqlDB,
		driver: cfg.Database.Driver,
	}, nil
}

// Gorm returns the gorm handle for queries
func (db *DB) Gorm() *gorm.DB {
	return db.gorm
}

// SQL returns the underlying pool
func (db *DB) SQL() *sql.DB {
	return db.sql
}

// Driver returns the configured driver name
func (db *DB) Driver() string {
	return db.driver
}

// Close closes the database connection pool
func (db *DB) Close() error {
	return db.sql.Close()
}

// Ping checks that a connection can be acquired and used
func (db *DB) Ping(ctx context.Context) error {
	return db.sql.PingContext(ctx)
}

// Info returns information about the connected database
func (db *DB) Info(cfg *config.Config) map[string]interface{} {
	info := make(map[string]interface{})
	info["driver"] = db.driver
	info["connected"] = db.Ping(context.Background()) == nil

	stats := db.sql.Stats()
	info["max_open_connections"] = stats.MaxOpenConnections
	info["open_connections"] = stats.OpenConnections
	info["in_use"] = stats.InUse
	info["idle"] = stats.Idle
	info["wait_count"] = stats.WaitCount
	info["wait_duration"] = stats.WaitDuration.String()

	if db.driver == "sqlite" {
		info["path"] = cfg.GetDSN()
	}

	return info
}
