// Package staging reads the read-only app_xml source table and writes the
// append-only processing log, both against the Postgres-backed staging
// database.
package staging

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

// ErrDatabaseURLEmpty is returned when the staging connection string is empty.
var ErrDatabaseURLEmpty = errors.New("staging database URL cannot be empty")

// Config holds the staging-side Postgres connection configuration.
type Config struct {
	databaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewConfig builds a staging Config from an already-resolved connection
// string.
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

// Store reads app_xml and writes processing_log against the staging schema.
type Store struct {
	db     *sql.DB
	schema string
	logger *slog.Logger
}

// Open establishes the staging connection pool.
func Open(cfg *Config, schema string, logger *slog.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &Store{db: db, schema: schema, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
