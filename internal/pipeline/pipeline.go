// Package pipeline orchestrates one journal run: reconcile the ledger gap,
// fetch and aggregate the missing days, append them, then rebuild the
// published snapshot from history plus a fresh forecast window.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lapan-fishing/tide-journal-etl/internal/domain"
	"github.com/lapan-fishing/tide-journal-etl/internal/export"
	"github.com/lapan-fishing/tide-journal-etl/internal/observability"
)

// Fetcher retrieves raw sub-daily observations for an inclusive local-day range.
type Fetcher interface {
	TideExtremes(ctx context.Context, start, end time.Time) ([]domain.TideObservation, error)
	WeatherHours(ctx context.Context, start, end time.Time) ([]domain.WeatherSample, error)
}

// Store is the persisted daily ledger.
type Store interface {
	Load() (records []domain.DailyRecord, pruned int, err error)
	Save(records []domain.DailyRecord) error
	Append(existing, fresh []domain.DailyRecord) (combined []domain.DailyRecord, added int, err error)
	LastDay(records []domain.DailyRecord) (time.Time, bool)
}

// SnapshotWriter publishes the exported artifact.
type SnapshotWriter interface {
	Write(snap export.Snapshot) error
	WriteError(runErr error) error
}

// Publisher emits newly confirmed daily records to a side channel.
type Publisher interface {
	PublishRecords(ctx context.Context, records []domain.DailyRecord) error
}

// Settings are the run tunables, taken from config at construction.
type Settings struct {
	Location           *time.Location
	Source             string
	LookbackDays       int
	WindowDays         int
	MinPressureSamples int
	RoundDecimals      int
}

// Pipeline runs the backfill and export passes.
type Pipeline struct {
	fetcher   Fetcher
	store     Store
	writer    SnapshotWriter
	publisher Publisher // nil disables publishing
	logger    *slog.Logger
	metrics   *observability.Metrics
	settings  Settings
	ready     atomic.Bool
}

// New creates a Pipeline. Pass a nil publisher to disable the Kafka side-output.
func New(f Fetcher, s Store, w SnapshotWriter, pub Publisher, logger *slog.Logger, metrics *observability.Metrics, settings Settings) *Pipeline {
	return &Pipeline{
		fetcher:   f,
		store:     s,
		writer:    w,
		publisher: pub,
		logger:    logger,
		metrics:   metrics,
		settings:  settings,
	}
}

// CheckReadiness returns nil once at least one run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no successful run yet")
	}
	return nil
}

// Run executes one backfill + export pass. On failure the snapshot target is
// replaced with an explicit error document and the error is returned so the
// process exit status reflects it.
func (p *Pipeline) Run(ctx context.Context) error {
	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	err := p.run(ctx)
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		p.logger.Error("run failed", "error", err)
		if werr := p.writer.WriteError(err); werr != nil {
			p.logger.Error("writing error document failed", "error", werr)
		}
		return err
	}

	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	p.ready.Store(true)
	return nil
}

func (p *Pipeline) run(ctx context.Context) error {
	records, pruned, err := p.store.Load()
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	if pruned > 0 {
		p.logger.Info("ledger rows pruned on load", "pruned", pruned)
		if err := p.store.Save(records); err != nil {
			return fmt.Errorf("rewrite trimmed ledger: %w", err)
		}
	}

	today := domain.Today(p.settings.Location)

	records, err = p.backfill(ctx, records, today)
	if err != nil {
		return err
	}

	snap, err := p.export(ctx, records, today)
	if err != nil {
		return err
	}

	p.metrics.LedgerRows.Set(float64(len(records)))
	p.metrics.SnapshotRows.Set(float64(snap.Meta.Rows))
	p.logger.Info("run complete",
		"ledger_rows", len(records),
		"snapshot_rows", snap.Meta.Rows,
	)
	return nil
}

// backfill fills the contiguous gap between the last persisted day and
// yesterday. A run with no gap fetches nothing, so repeating a run is a no-op.
func (p *Pipeline) backfill(ctx context.Context, records []domain.DailyRecord, today time.Time) ([]domain.DailyRecord, error) {
	last, hasData := p.store.LastDay(records)
	start, end, ok := domain.BackfillRange(last, hasData, today, p.settings.LookbackDays)
	if !ok {
		p.logger.Info("ledger is current, no backfill needed")
		return records, nil
	}
	p.logger.Info("backfilling ledger gap",
		"start", domain.FormatDay(start), "end", domain.FormatDay(end))

	fresh, err := p.fetchAndAggregate(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("backfill: %w", err)
	}
	if len(fresh) == 0 {
		p.logger.Warn("backfill produced no complete days")
		return records, nil
	}

	existing := make(map[string]bool, len(records))
	for _, rec := range records {
		existing[rec.Day] = true
	}

	records, added, err := p.store.Append(records, fresh)
	if err != nil {
		return nil, fmt.Errorf("append to ledger: %w", err)
	}
	p.metrics.DaysBackfilled.Add(float64(added))
	p.logger.Info("ledger appended", "days", added)

	if added > 0 && p.publisher != nil {
		appended := make([]domain.DailyRecord, 0, added)
		for _, rec := range fresh {
			if !existing[rec.Day] {
				appended = append(appended, rec)
			}
		}
		// Publishing is a side-output of confirmed rows; failure must not
		// fail the run or block the export.
		if err := p.publisher.PublishRecords(ctx, appended); err != nil {
			p.metrics.PublishErrors.Inc()
			p.logger.Warn("publishing appended records failed", "error", err)
		} else {
			p.metrics.RecordsPublished.Add(float64(len(appended)))
		}
	}
	return records, nil
}

// export rebuilds the snapshot from the trimmed ledger plus a freshly
// aggregated window covering yesterday through today+WindowDays. The window's
// "yesterday" overrides the ledger row in the export only; the persisted row
// is never rewritten.
func (p *Pipeline) export(ctx context.Context, records []domain.DailyRecord, today time.Time) (export.Snapshot, error) {
	windowStart := today.AddDate(0, 0, -1)
	windowEnd := today.AddDate(0, 0, p.settings.WindowDays)

	window, err := p.fetchAndAggregate(ctx, windowStart, windowEnd)
	if err != nil {
		return export.Snapshot{}, fmt.Errorf("window: %w", err)
	}

	cutoff := windowStart // yesterday: last confirmed-history day
	for i := range window {
		day, err := domain.ParseDay(window[i].Day, p.settings.Location)
		if err == nil && day.After(cutoff) {
			window[i].IsForecast = true
		}
	}

	snap := export.BuildSnapshot(records, window, windowStart, p.settings.Location)
	if err := p.writer.Write(snap); err != nil {
		return export.Snapshot{}, fmt.Errorf("write snapshot: %w", err)
	}
	return snap, nil
}

func (p *Pipeline) fetchAndAggregate(ctx context.Context, start, end time.Time) ([]domain.DailyRecord, error) {
	tides, err := p.fetcher.TideExtremes(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch tide extremes: %w", err)
	}
	hours, err := p.fetcher.WeatherHours(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch weather hours: %w", err)
	}

	days := domain.DaysBetween(start, end)
	return domain.AggregateDays(tides, hours, days, domain.AggregateConfig{
		Location:           p.settings.Location,
		Source:             p.settings.Source,
		MinPressureSamples: p.settings.MinPressureSamples,
		RoundDecimals:      p.settings.RoundDecimals,
	}), nil
}
