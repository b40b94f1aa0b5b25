// Package config provides configuration and shared test utilities for the extraction pipeline.
package config

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mssql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // used to run migrations using source files
)

const (
	occurrenceCount = 2
	startUpTimeOut  = 120 * time.Second
	mssqlPassword   = "Extractor_Test1" // pragma: allowlist secret
)

// TestStagingDatabase encapsulates a throwaway Postgres-backed staging store for
// integration tests that exercise internal/staging.
type TestStagingDatabase struct {
	Container  *postgres.PostgresContainer
	Connection *sql.DB
}

// SetupTestStagingDatabase creates a PostgreSQL container seeded with the
// app_xml and processing_log tables used by internal/staging.
//
// Cleanup is the caller's responsibility using t.Cleanup().
func SetupTestStagingDatabase(ctx context.Context, t *testing.T) *TestStagingDatabase {
	t.Helper()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("staging_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(occurrenceCount).
				WithStartupTimeout(startUpTimeOut),
		),
	)
	require.NoError(t, err, "failed to start staging postgres container")
	require.NotNil(t, pgContainer, "staging postgres container is nil")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	conn, err := sql.Open("postgres", connStr)
	require.NoError(t, err, "failed to open staging database")

	if err := RunTestMigrations(conn, "file://../../migrations/staging"); err != nil {
		_ = conn.Close()
		_ = testcontainers.TerminateContainer(pgContainer)

		t.Fatalf("failed to run staging migrations: %v", err)
	}

	return &TestStagingDatabase{
		Container:  pgContainer,
		Connection: conn,
	}
}

// TestDestinationDatabase encapsulates a throwaway SQL Server container for
// integration tests that exercise internal/dest and internal/migration.
type TestDestinationDatabase struct {
	Container  *mssql.MSSQLServerContainer
	Connection *sql.DB
}

// SetupTestDestinationDatabase creates a SQL Server container. Callers are
// responsible for creating the target_schema tables afterward (via cmd/migrator
// or a contract-driven fixture), since the destination schema is contract-owned
// rather than baked into this helper.
//
// Cleanup is the caller's responsibility using t.Cleanup().
func SetupTestDestinationDatabase(ctx context.Context, t *testing.T) *TestDestinationDatabase {
	t.Helper()

	msContainer, err := mssql.Run(ctx,
		"mcr.microsoft.com/mssql/server:2022-latest",
		mssql.WithAcceptEULA(),
		mssql.WithPassword(mssqlPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Recovery is complete").
				WithStartupTimeout(startUpTimeOut),
		),
	)
	require.NoError(t, err, "failed to start mssql container")
	require.NotNil(t, msContainer, "mssql container is nil")

	connStr, err := msContainer.ConnectionString(ctx)
	require.NoError(t, err, "failed to get mssql connection string")

	conn, err := sql.Open("sqlserver", connStr)
	require.NoError(t, err, "failed to open destination database")

	return &TestDestinationDatabase{
		Container:  msContainer,
		Connection: conn,
	}
}

// RunTestMigrations applies all migrations from the given source URL using golang-migrate.
// The staging store's schema is Postgres regardless of the destination driver, so this
// always drives the postgres migrate driver.
func RunTestMigrations(db *sql.DB, sourceURL string) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance(
		sourceURL,
		"postgres",
		driver,
	)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}
