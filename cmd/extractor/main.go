// Package main provides the extractor CLI: the top-level driver that reads
// staged XML applications, maps them through a contract, and migrates them
// into the destination schema.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/correlator-io/xmlextract/internal/contract"
	"github.com/correlator-io/xmlextract/internal/coordinator"
	"github.com/correlator-io/xmlextract/internal/dest"
	"github.com/correlator-io/xmlextract/internal/processor"
	"github.com/correlator-io/xmlextract/internal/staging"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "extractor"
)

// Exit codes per the documented CLI surface.
const (
	exitSuccess           = 0
	exitInterrupted       = 1
	exitFatalConfigError  = 2
	exitAllApplicationsFailed = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := ParseConfig(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)

		return exitFatalConfigError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	logger.Info("starting extraction run", slog.String("service", name), slog.String("version", version))

	contractCache, err := contract.NewCache(cfg.ContractPath)
	if err != nil {
		logger.Error("failed to load contract", slog.Any("error", err))

		return exitFatalConfigError
	}

	stagingStore, err := staging.Open(staging.NewConfig(cfg.StagingDatabaseURL), contractCache.Get().TargetSchema, logger)
	if err != nil {
		logger.Error("failed to open staging connection", slog.Any("error", err))

		return exitFatalConfigError
	}
	defer func() { _ = stagingStore.Close() }()

	destConnString := cfg.DestinationConnString()
	connFactory := func() (*sql.DB, error) {
		destCfg := dest.NewConfig(destConnString)
		if cfg.DestinationMaxOpenConns > 0 {
			destCfg.MaxOpenConns = cfg.DestinationMaxOpenConns
		}

		conn, err := dest.Open(destCfg, logger)
		if err != nil {
			return nil, err
		}

		return conn.DB, nil
	}

	co := coordinator.New(contractCache, connFactory, cfg.Workers, 0, logger)
	co.SetDryRun(cfg.DryRun)

	procCfg := processor.Config{
		SessionID:     uuid.NewString(),
		BatchSize:     cfg.BatchSize,
		Limit:         cfg.Limit,
		ExcludeFailed: !cfg.RetryFailed,
	}

	if cfg.InstanceCount > 1 {
		procCfg.PartitionMod = cfg.InstanceCount
		procCfg.PartitionRem = cfg.InstanceID
	}

	if cfg.HasRange {
		procCfg.StartID = &cfg.AppIDStart
		procCfg.EndID = &cfg.AppIDEnd
	}

	proc := processor.New(stagingStore, co, procCfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reloadSignal := make(chan os.Signal, 1)
	signal.Notify(reloadSignal, syscall.SIGHUP)

	go watchForReload(ctx, reloadSignal, contractCache, logger)

	summary, err := proc.Run(ctx)
	if err != nil {
		logger.Error("extraction run failed", slog.Any("error", err))

		return exitFatalConfigError
	}

	logger.Info("extraction run complete",
		slog.Int("records_processed", summary.RecordsProcessed),
		slog.Int("success_count", summary.SuccessCount),
		slog.Int("failed_count", summary.FailedCount),
		slog.Bool("interrupted", summary.Interrupted),
	)

	writeMetrics(summary.Metrics(), logger)

	switch {
	case summary.Interrupted:
		return exitInterrupted
	case summary.RecordsProcessed > 0 && summary.SuccessCount == 0:
		return exitAllApplicationsFailed
	default:
		return exitSuccess
	}
}

// watchForReload reloads the contract document every time the process
// receives SIGHUP, letting an operator pick up a corrected contract without
// restarting an in-progress run (spec.md §3). A failed reload is logged and
// the previously active contract stays in effect.
func watchForReload(ctx context.Context, sig <-chan os.Signal, cache *contract.Cache, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			if err := cache.Reload(); err != nil {
				logger.Error("contract reload failed, keeping previous contract active", slog.Any("error", err))

				continue
			}

			logger.Info("contract reloaded")
		}
	}
}

// writeMetrics emits the end-of-run metrics document to stdout as JSON.
func writeMetrics(m processor.Metrics, logger *slog.Logger) {
	encoded, err := json.Marshal(m)
	if err != nil {
		logger.Error("failed to encode metrics document", slog.Any("error", err))

		return
	}

	fmt.Println(string(encoded))
}
