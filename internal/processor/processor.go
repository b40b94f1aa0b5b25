// Package processor drives the pipeline end-to-end: it repeatedly fetches
// batches from the staging table, hands them to the coordinator, and
// records each outcome in the processing log.
package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/correlator-io/xmlextract/internal/coordinator"
	"github.com/correlator-io/xmlextract/internal/staging"
)

// Config parameterizes one run of the processor.
type Config struct {
	SessionID     string
	BatchSize     int
	Limit         int
	PartitionMod  int
	PartitionRem  int
	ExcludeFailed bool
	StartID       *int64
	EndID         *int64
}

const defaultBatchSize = 500

// BatchTiming records how long one batch took to fetch, coordinate, and log.
type BatchTiming struct {
	BatchSize int           `json:"batch_size"`
	Duration  time.Duration `json:"duration"`
}

// Summary reports the outcome of a completed or interrupted run, and doubles
// as the JSON metrics document spec.md §6 asks for at the end of a run.
type Summary struct {
	RecordsProcessed int             `json:"records_processed"`
	SuccessCount     int             `json:"success_count"`
	FailedCount      int             `json:"failed_count"`
	Interrupted      bool            `json:"interrupted"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	TableRowCounts   map[string]int  `json:"table_row_counts"`
	BatchTimings     []BatchTiming   `json:"batch_timings"`
}

// ThroughputPerMinute reports records_processed normalized to a per-minute
// rate over the run's wall-clock duration. Returns 0 before FinishedAt is set
// or if the run completed in under a second (too short to extrapolate).
func (s Summary) ThroughputPerMinute() float64 {
	elapsed := s.FinishedAt.Sub(s.StartedAt)
	if elapsed < time.Second {
		return 0
	}

	return float64(s.RecordsProcessed) / elapsed.Minutes()
}

// SuccessRate reports the fraction of processed records that succeeded, in
// [0, 1]. Returns 0 when nothing was processed.
func (s Summary) SuccessRate() float64 {
	if s.RecordsProcessed == 0 {
		return 0
	}

	return float64(s.SuccessCount) / float64(s.RecordsProcessed)
}

// Metrics is the flattened JSON document spec.md §6 asks for at the end of
// a run: Summary's raw counters plus the derived throughput/success-rate
// figures a dashboard would actually chart.
type Metrics struct {
	Summary

	ThroughputPerMinute float64 `json:"throughput_per_minute"`
	SuccessRate         float64 `json:"success_rate"`
}

// Metrics builds the metrics document for this Summary.
func (s Summary) Metrics() Metrics {
	return Metrics{
		Summary:             s,
		ThroughputPerMinute: s.ThroughputPerMinute(),
		SuccessRate:         s.SuccessRate(),
	}
}

// Processor is the top-level driver.
type Processor struct {
	staging     *staging.Store
	coordinator *coordinator.Coordinator
	cfg         Config
	logger      *slog.Logger
}

// New builds a Processor bound to a staging store and a coordinator.
func New(store *staging.Store, co *coordinator.Coordinator, cfg Config, logger *slog.Logger) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	return &Processor{staging: store, coordinator: co, cfg: cfg, logger: logger}
}

// Run drives the fetch → coordinate → log loop until a fetch returns empty,
// the overall limit is reached, or ctx is cancelled.
func (p *Processor) Run(ctx context.Context) (Summary, error) {
	summary := Summary{StartedAt: time.Now().UTC(), TableRowCounts: map[string]int{}}
	cursor := int64(0)

	for {
		if err := ctx.Err(); err != nil {
			summary.Interrupted = true

			break
		}

		if p.cfg.Limit > 0 && summary.RecordsProcessed >= p.cfg.Limit {
			break
		}

		limit := p.batchLimit(summary.RecordsProcessed)

		batch, err := p.staging.GetWork(ctx, staging.WorkQuery{
			CursorAppID:   cursor,
			Limit:         limit,
			PartitionMod:  p.cfg.PartitionMod,
			PartitionRem:  p.cfg.PartitionRem,
			ExcludeFailed: p.cfg.ExcludeFailed,
			StartID:       p.cfg.StartID,
			EndID:         p.cfg.EndID,
		})
		if err != nil {
			summary.FinishedAt = time.Now().UTC()

			return summary, err
		}

		if len(batch) == 0 {
			break
		}

		batchStart := time.Now()
		p.processBatch(ctx, batch, &summary)
		summary.BatchTimings = append(summary.BatchTimings, BatchTiming{BatchSize: len(batch), Duration: time.Since(batchStart)})

		cursor = batch[len(batch)-1].AppID
	}

	summary.FinishedAt = time.Now().UTC()

	return summary, nil
}

// batchLimit bounds the next fetch size by both the configured batch size
// and whatever remains of the overall --limit safety cap.
func (p *Processor) batchLimit(processedSoFar int) int {
	if p.cfg.Limit <= 0 {
		return p.cfg.BatchSize
	}

	remaining := p.cfg.Limit - processedSoFar
	if remaining < p.cfg.BatchSize {
		return remaining
	}

	return p.cfg.BatchSize
}

// processBatch runs one batch through the coordinator and writes a
// processing-log row per result, accumulating the running summary.
func (p *Processor) processBatch(ctx context.Context, batch []staging.AppXML, summary *Summary) {
	items := make([]coordinator.Item, len(batch))
	for i, app := range batch {
		items[i] = coordinator.Item{AppID: app.AppID, XML: app.XML}
	}

	results := p.coordinator.Run(ctx, items)
	processedAt := time.Now().UTC()

	for _, result := range results {
		rec := staging.ProcessingLogRecord{
			AppID:       result.AppID,
			SessionID:   p.cfg.SessionID,
			AppIDStart:  p.cfg.StartID,
			AppIDEnd:    p.cfg.EndID,
			ProcessedAt: processedAt,
		}

		if result.Status == coordinator.StatusSuccess {
			rec.Status = staging.StatusSuccess
			summary.SuccessCount++

			for table, count := range result.InsertedPerTable {
				summary.TableRowCounts[table] += count
			}
		} else {
			rec.Status = staging.StatusFailed
			reason := result.Reason
			rec.FailureReason = &reason
			summary.FailedCount++
		}

		if err := p.staging.WriteLog(ctx, rec); err != nil {
			p.logger.Error("failed to write processing log entry",
				slog.Int64("app_id", result.AppID), slog.Any("error", err))
		}
	}

	summary.RecordsProcessed += len(batch)
}
