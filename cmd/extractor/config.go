package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/correlator-io/xmlextract/internal/config"
)

// Config holds the fully parsed CLI surface for one extractor run.
type Config struct {
	ContractPath string

	Workers      int
	BatchSize    int
	Limit        int
	AppIDStart   int64
	AppIDEnd     int64
	HasRange     bool
	InstanceID   int
	InstanceCount int

	LogLevel slog.Level

	RetryFailed bool
	DryRun      bool

	StagingDatabaseURL     string
	DestinationServer      string
	DestinationDatabase    string
	DestinationUsername    string
	DestinationPassword    string
	DestinationMaxOpenConns int
}

// errMissingDestination is returned when --server/--database are not set.
var errMissingDestination = fmt.Errorf("--server and --database are required")

// ParseConfig parses os.Args-style flags into a Config.
func ParseConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("extractor", flag.ContinueOnError)

	// Flags take the environment as their default so the same binary runs
	// unconfigured in a container (env-driven) or ad hoc from a shell
	// (flag-driven), with an explicit flag always winning.
	contractPath := fs.String("contract", config.GetEnvStr("CONTRACT_PATH", ""), "path to the mapping contract document (required)")
	workers := fs.Int("workers", config.GetEnvInt("WORKERS", 4), "worker count")
	batchSize := fs.Int("batch-size", config.GetEnvInt("BATCH_SIZE", 500), "fetch size")
	limit := fs.Int("limit", config.GetEnvInt("LIMIT", 0), "safety cap on total applications (0 = unlimited)")
	appIDStart := fs.Int64("app-id-start", config.GetEnvInt64("APP_ID_START", 0), "process a bounded range: lower bound")
	appIDEnd := fs.Int64("app-id-end", config.GetEnvInt64("APP_ID_END", 0), "process a bounded range: upper bound")
	instanceID := fs.Int("instance-id", config.GetEnvInt("INSTANCE_ID", 0), "partitioned concurrent instance id")
	instanceCount := fs.Int("instance-count", config.GetEnvInt("INSTANCE_COUNT", 1), "partitioned concurrent instance count")
	logLevel := fs.String("log-level", config.GetEnvStr("LOG_LEVEL", "info"), "log verbosity: debug|info|warn|error")
	retryFailed := fs.Bool("retry-failed", config.GetEnvBool("RETRY_FAILED", false), "re-fetch applications previously logged as failed, not just unprocessed ones")
	dryRun := fs.Bool("dry-run", config.GetEnvBool("DRY_RUN", false), "run mapping and duplicate detection but roll back instead of committing")

	stagingURL := fs.String("staging-database-url", config.GetEnvStr("STAGING_DATABASE_URL", ""), "staging (source) Postgres connection string (required)")
	server := fs.String("server", config.GetEnvStr("DESTINATION_SERVER", ""), "destination SQL Server host (required)")
	database := fs.String("database", config.GetEnvStr("DESTINATION_DATABASE", ""), "destination database name (required)")
	username := fs.String("username", config.GetEnvStr("DESTINATION_USERNAME", ""), "destination SQL Server username")
	password := fs.String("password", config.GetEnvStr("DESTINATION_PASSWORD", ""), "destination SQL Server password")
	maxOpenConns := fs.Int("max-open-conns", config.GetEnvInt("DESTINATION_MAX_OPEN_CONNS", 0), "destination connection pool size override (0 = driver default)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *contractPath == "" {
		return nil, fmt.Errorf("--contract is required")
	}

	if *stagingURL == "" {
		return nil, fmt.Errorf("--staging-database-url is required")
	}

	if *server == "" || *database == "" {
		return nil, errMissingDestination
	}

	level, err := parseLogLevel(*logLevel)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ContractPath:            *contractPath,
		Workers:                 *workers,
		BatchSize:               *batchSize,
		Limit:                   *limit,
		AppIDStart:              *appIDStart,
		AppIDEnd:                *appIDEnd,
		HasRange:                *appIDStart != 0 || *appIDEnd != 0,
		InstanceID:              *instanceID,
		InstanceCount:           *instanceCount,
		LogLevel:                level,
		RetryFailed:             *retryFailed,
		DryRun:                  *dryRun,
		StagingDatabaseURL:      *stagingURL,
		DestinationServer:       *server,
		DestinationDatabase:     *database,
		DestinationUsername:    *username,
		DestinationPassword:    *password,
		DestinationMaxOpenConns: *maxOpenConns,
	}

	if cfg.InstanceCount > 1 && (cfg.InstanceID < 0 || cfg.InstanceID >= cfg.InstanceCount) {
		return nil, fmt.Errorf("--instance-id must be in [0, %d)", cfg.InstanceCount)
	}

	return cfg, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown --log-level %q", raw)
	}
}

// DestinationConnString builds a sqlserver:// connection URL from the
// individual destination flags, following go-mssqldb's URL convention.
func (c *Config) DestinationConnString() string {
	u := &url.URL{
		Scheme: "sqlserver",
		Host:   c.DestinationServer,
		Path:   "/" + c.DestinationDatabase,
	}

	if c.DestinationUsername != "" {
		u.User = url.UserPassword(c.DestinationUsername, c.DestinationPassword)
	}

	q := u.Query()
	q.Set("database", c.DestinationDatabase)
	u.RawQuery = q.Encode()

	return u.String()
}
