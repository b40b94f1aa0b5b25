// Package coordinator implements the Parallel Coordinator: a worker pool
// that distributes per-application work items to N workers, each owning its
// own destination connection, and isolates a failure (including a panic) in
// one application from every other in-flight application.
package coordinator

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/correlator-io/xmlextract/internal/contract"
	"github.com/correlator-io/xmlextract/internal/mapping"
	"github.com/correlator-io/xmlextract/internal/migration"
	"github.com/correlator-io/xmlextract/internal/xmlmodel"
)

// Status values reported on a Result.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// defaultItemTimeout bounds how long a single application may occupy a
// worker before it is rolled back and reported as failed.
const defaultItemTimeout = 300 * time.Second

// Item is one unit of work: an application's app_id and raw XML blob.
type Item struct {
	AppID int64
	XML   []byte
}

// Result reports the outcome of processing one Item.
type Result struct {
	AppID            int64
	Status           string
	InsertedPerTable map[string]int
	Reason           string
}

// ConnFactory opens a new destination connection for a worker to own for its
// entire lifetime; workers never share connections (spec.md §5).
type ConnFactory func() (*sql.DB, error)

// Coordinator distributes Items across a fixed worker pool.
type Coordinator struct {
	contractCache *contract.Cache
	connFactory   ConnFactory
	workers       int
	itemTimeout   time.Duration
	logger        *slog.Logger
	dryRun        bool
}

// SetDryRun toggles dry-run mode: every application still runs through
// validation, mapping, and duplicate detection, and its would-be inserted
// row counts are still reported, but the migration transaction is always
// rolled back instead of committed.
func (co *Coordinator) SetDryRun(dryRun bool) {
	co.dryRun = dryRun
}

// New builds a Coordinator bound to a contract cache, so a contract reload
// (spec.md §3's "may be reloaded by operator" lifecycle note) takes effect
// on the very next item dispatched, not just the next process restart.
// workers defaults to 4 and itemTimeout to 300s when non-positive, matching
// spec.md §5's recommended defaults.
func New(cache *contract.Cache, connFactory ConnFactory, workers int, itemTimeout time.Duration, logger *slog.Logger) *Coordinator {
	if workers <= 0 {
		workers = 4
	}

	if itemTimeout <= 0 {
		itemTimeout = defaultItemTimeout
	}

	return &Coordinator{
		contractCache: cache,
		connFactory:   connFactory,
		workers:       workers,
		itemTimeout:   itemTimeout,
		logger:        logger,
	}
}

// Run distributes items across the worker pool and returns one Result per
// item, in completion order (cross-worker ordering is undefined per spec.md
// §4.9). On context cancellation, no further items are pulled from the
// queue and in-flight items are given until their own timeout to finish
// before the worker exits; a partial result set is returned.
func (co *Coordinator) Run(ctx context.Context, items []Item) []Result {
	queue := make(chan Item)
	results := make(chan Result, len(items))

	group, groupCtx := errgroup.WithContext(ctx)

	for i := 0; i < co.workers; i++ {
		group.Go(func() error {
			return co.runWorker(groupCtx, queue, results)
		})
	}

	go func() {
		defer close(queue)

		for _, item := range items {
			select {
			case queue <- item:
			case <-groupCtx.Done():
				return
			}
		}
	}()

	var collected []Result

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		for r := range results {
			collected = append(collected, r)
		}
	}()

	_ = group.Wait()
	close(results)
	wg.Wait()

	return collected
}

// runWorker opens one connection for its entire lifetime and processes
// items from queue until it is closed or the context is cancelled. A
// connFactory failure is returned as an error so the surrounding errgroup
// cancels every other worker and the feeder goroutine, rather than leaving
// the queue undrained.
func (co *Coordinator) runWorker(ctx context.Context, queue <-chan Item, results chan<- Result) error {
	db, err := co.connFactory()
	if err != nil {
		co.logger.Error("worker failed to open destination connection", slog.Any("error", err))

		return fmt.Errorf("open destination connection: %w", err)
	}
	defer func() { _ = db.Close() }()

	for {
		select {
		case item, ok := <-queue:
			if !ok {
				return nil
			}

			results <- co.processItem(ctx, db, item)
		case <-ctx.Done():
			return nil
		}
	}
}

// processItem runs the validate → map → migrate pipeline for one
// application, recovering from any panic so that a single malformed
// application cannot take down the worker goroutine, let alone the pool.
func (co *Coordinator) processItem(ctx context.Context, db *sql.DB, item Item) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			co.logger.Error("panic recovered while processing application",
				slog.Int64("app_id", item.AppID),
				slog.Any("panic", r),
				slog.String("stack_trace", string(debug.Stack())),
			)

			result = Result{AppID: item.AppID, Status: StatusFailed, Reason: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	itemCtx, cancel := context.WithTimeout(ctx, co.itemTimeout)
	defer cancel()

	activeContract := co.contractCache.Get()

	validation := xmlmodel.Validate(item.XML, activeContract)
	if !validation.CanProcess {
		return Result{AppID: item.AppID, Status: StatusFailed, Reason: strings.Join(validation.Errors, "; ")}
	}

	doc, err := xmlmodel.Parse(item.XML)
	if err != nil {
		return Result{AppID: item.AppID, Status: StatusFailed, Reason: err.Error()}
	}

	rows, _, err := mapping.New(activeContract).ApplyContract(item.AppID, doc)
	if err != nil {
		return Result{AppID: item.AppID, Status: StatusFailed, Reason: err.Error()}
	}

	counts, err := migration.New(activeContract).Migrate(itemCtx, db, item.AppID, rows, co.dryRun)
	if err != nil {
		return Result{AppID: item.AppID, Status: StatusFailed, Reason: err.Error()}
	}

	return Result{AppID: item.AppID, Status: StatusSuccess, InsertedPerTable: counts}
}
