// Package dest implements the Bulk Insert Strategy and Duplicate Detector
// against the SQL Server destination schema: fast bound-parameter bulk
// copy, per-row fallback with duplicate tolerance, and driver-error
// categorization into the mapping engine's error taxonomy.
package dest

import (
	"database/sql"
	"errors"
	"log/slog"
	"time"
)

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
)

// ErrDatabaseURLEmpty is returned when a destination connection string is
// empty.
var ErrDatabaseURLEmpty = errors.New("destination database URL cannot be empty")

// Config holds SQL Server connection configuration with production-ready
// defaults, mirroring the staging side's own Config shape.
type Config struct {
	databaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewConfig builds a destination Config from an already-resolved connection
// string (the caller owns env-var parsing; see cmd/extractor).
func NewConfig(databaseURL string) *Config {
	return &Config{
		databaseURL:     databaseURL,
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.databaseURL == "" {
		return ErrDatabaseURLEmpty
	}

	return nil
}

// Connection wraps a single worker-owned *sql.DB handle. Per spec.md §4.9,
// workers never share connections, so each Connection is constructed once
// per worker and closed when the worker exits.
type Connection struct {
	DB     *sql.DB
	logger *slog.Logger
}

// Open establishes a new connection pool against the destination schema.
func Open(cfg *Config, logger *slog.Logger) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlserver", cfg.databaseURL)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &Connection{DB: db, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (c *Connection) Close() error {
	return c.DB.Close()
}
