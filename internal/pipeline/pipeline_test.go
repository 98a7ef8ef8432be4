package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lapan-fishing/tide-journal-etl/internal/domain"
	"github.com/lapan-fishing/tide-journal-etl/internal/export"
	"github.com/lapan-fishing/tide-journal-etl/internal/observability"
	"github.com/lapan-fishing/tide-journal-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

// fakeFetcher synthesizes hourly pressure samples for whatever range is
// requested, so backfill and window fetches need no canned fixtures.
type fakeFetcher struct {
	err           error
	samplesPerDay int
	pressureFor   func(day time.Time) float64
	loc           *time.Location

	tideCalls    int
	weatherCalls int
}

func (f *fakeFetcher) TideExtremes(_ context.Context, _, _ time.Time) ([]domain.TideObservation, error) {
	f.tideCalls++
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func (f *fakeFetcher) WeatherHours(_ context.Context, start, end time.Time) ([]domain.WeatherSample, error) {
	f.weatherCalls++
	if f.err != nil {
		return nil, f.err
	}
	var samples []domain.WeatherSample
	for _, day := range domain.DaysBetween(start, end) {
		for h := 0; h < f.samplesPerDay; h++ {
			samples = append(samples, domain.WeatherSample{
				Time: day.Add(time.Duration(h) * time.Hour),
				Fields: map[string]domain.FieldValue{
					domain.FieldPressure: {"sg": f.pressureFor(day)},
				},
			})
		}
	}
	return samples, nil
}

type fakeStore struct {
	records    []domain.DailyRecord
	loadPruned int
	loc        *time.Location

	saveCalls   int
	appendCalls int
	lastFresh   []domain.DailyRecord
}

func (s *fakeStore) Load() ([]domain.DailyRecord, int, error) {
	pruned := s.loadPruned
	s.loadPruned = 0
	return append([]domain.DailyRecord(nil), s.records...), pruned, nil
}

func (s *fakeStore) Save(records []domain.DailyRecord) error {
	s.saveCalls++
	s.records = append([]domain.DailyRecord(nil), records...)
	return nil
}

func (s *fakeStore) Append(existing, fresh []domain.DailyRecord) ([]domain.DailyRecord, int, error) {
	s.appendCalls++
	s.lastFresh = append([]domain.DailyRecord(nil), fresh...)

	present := make(map[string]bool, len(existing))
	combined := append([]domain.DailyRecord(nil), existing...)
	for _, rec := range existing {
		present[rec.Day] = true
	}
	added := 0
	for _, rec := range fresh {
		if present[rec.Day] {
			continue
		}
		present[rec.Day] = true
		combined = append(combined, rec)
		added++
	}
	sort.Slice(combined, func(i, j int) bool {
		di, _ := domain.ParseDay(combined[i].Day, s.loc)
		dj, _ := domain.ParseDay(combined[j].Day, s.loc)
		return di.Before(dj)
	})
	s.records = combined
	return combined, added, nil
}

func (s *fakeStore) LastDay(records []domain.DailyRecord) (time.Time, bool) {
	for i := len(records) - 1; i >= 0; i-- {
		if day, err := domain.ParseDay(records[i].Day, s.loc); err == nil {
			return day, true
		}
	}
	return time.Time{}, false
}

func (s *fakeStore) byDay(day string) (domain.DailyRecord, bool) {
	for _, rec := range s.records {
		if rec.Day == day {
			return rec, true
		}
	}
	return domain.DailyRecord{}, false
}

type fakeWriter struct {
	snapshots []export.Snapshot
	errDocs   []error
}

func (w *fakeWriter) Write(snap export.Snapshot) error {
	w.snapshots = append(w.snapshots, snap)
	return nil
}

func (w *fakeWriter) WriteError(runErr error) error {
	w.errDocs = append(w.errDocs, runErr)
	return nil
}

type fakePublisher struct {
	err       error
	published [][]domain.DailyRecord
}

func (p *fakePublisher) PublishRecords(_ context.Context, records []domain.DailyRecord) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, append([]domain.DailyRecord(nil), records...))
	return nil
}

// --- harness ---

type harness struct {
	loc      *time.Location
	fetcher  *fakeFetcher
	store    *fakeStore
	writer   *fakeWriter
	pipeline *pipeline.Pipeline
}

// newHarness freezes "today" at 15/06/2025 in UTC+7 and wires the pipeline
// with lookback 3 and a 2-day forecast window.
func newHarness(t *testing.T, pub pipeline.Publisher) *harness {
	t.Helper()

	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	require.NoError(t, err)

	fake := clockwork.NewFakeClockAt(time.Date(2025, time.June, 15, 5, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	fetcher := &fakeFetcher{
		samplesPerDay: 2,
		pressureFor:   func(time.Time) float64 { return 1012 },
		loc:           loc,
	}
	store := &fakeStore{loc: loc}
	writer := &fakeWriter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	p := pipeline.New(fetcher, store, writer, pub, logger, observability.NewMetricsForTesting(), pipeline.Settings{
		Location:           loc,
		Source:             "sg",
		LookbackDays:       3,
		WindowDays:         2,
		MinPressureSamples: 1,
		RoundDecimals:      2,
	})

	return &harness{loc: loc, fetcher: fetcher, store: store, writer: writer, pipeline: p}
}

func dayKeys(records []domain.DailyRecord) []string {
	keys := make([]string, len(records))
	for i, rec := range records {
		keys[i] = rec.Day
	}
	return keys
}

// --- tests ---

func TestPipeline_Run_BackfillsAndExports(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.pipeline.Run(context.Background()))

	// Empty ledger plus lookback 3: days 12-14 June are persisted, never the 15th.
	assert.Equal(t, []string{"12/06/2025", "13/06/2025", "14/06/2025"}, dayKeys(h.store.records))

	require.Len(t, h.writer.snapshots, 1)
	snap := h.writer.snapshots[0]

	// History 12-13 plus the window 14-17.
	assert.Equal(t, 6, snap.Meta.Rows)
	assert.Equal(t, []string{
		"12/06/2025", "13/06/2025", "14/06/2025",
		"15/06/2025", "16/06/2025", "17/06/2025",
	}, dayKeys(snap.Days))

	for _, rec := range snap.Days {
		day, err := domain.ParseDay(rec.Day, h.loc)
		require.NoError(t, err)
		wantForecast := day.After(time.Date(2025, time.June, 14, 0, 0, 0, 0, h.loc))
		assert.Equal(t, wantForecast, rec.IsForecast, "day %s", rec.Day)
	}

	assert.Empty(t, h.writer.errDocs)
}

func TestPipeline_Run_SecondRunFetchesNoBackfill(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.pipeline.Run(context.Background()))
	require.NoError(t, h.pipeline.Run(context.Background()))

	// Run 1: backfill fetch + window fetch. Run 2: window fetch only.
	assert.Equal(t, 3, h.fetcher.weatherCalls)
	assert.Equal(t, 3, h.fetcher.tideCalls)
	assert.Equal(t, 1, h.store.appendCalls)

	// The ledger is unchanged by the repeat run.
	assert.Equal(t, []string{"12/06/2025", "13/06/2025", "14/06/2025"}, dayKeys(h.store.records))
}

func TestPipeline_Run_NeverPersistsBeyondYesterday(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.pipeline.Run(context.Background()))

	cutoff := time.Date(2025, time.June, 14, 0, 0, 0, 0, h.loc)
	for _, rec := range h.store.lastFresh {
		day, err := domain.ParseDay(rec.Day, h.loc)
		require.NoError(t, err)
		assert.False(t, day.After(cutoff), "day %s handed to the ledger", rec.Day)
	}
}

func TestPipeline_Run_ProviderFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.err = errors.New("stormglass /tide/extremes/point: all credentials failed")

	err := h.pipeline.Run(context.Background())
	require.Error(t, err)

	// No partial state: the ledger is untouched and the artifact is an
	// explicit error document.
	assert.Zero(t, h.store.appendCalls)
	assert.Empty(t, h.store.records)
	assert.Empty(t, h.writer.snapshots)
	require.Len(t, h.writer.errDocs, 1)
	assert.Contains(t, h.writer.errDocs[0].Error(), "all credentials failed")

	assert.Error(t, h.pipeline.CheckReadiness(context.Background()))
}

func TestPipeline_Run_WindowFailureAfterBackfill(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.pipeline.Run(context.Background()))

	// The next run's window fetch fails; the already-persisted ledger stays.
	h.fetcher.err = errors.New("provider down")
	err := h.pipeline.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{"12/06/2025", "13/06/2025", "14/06/2025"}, dayKeys(h.store.records))
	require.Len(t, h.writer.errDocs, 1)
}

func TestPipeline_Readiness(t *testing.T) {
	h := newHarness(t, nil)

	assert.Error(t, h.pipeline.CheckReadiness(context.Background()))
	require.NoError(t, h.pipeline.Run(context.Background()))
	assert.NoError(t, h.pipeline.CheckReadiness(context.Background()))
}

func TestPipeline_Run_RewritesLedgerWhenLoadPruned(t *testing.T) {
	h := newHarness(t, nil)
	h.store.records = []domain.DailyRecord{{Day: "13/06/2025"}, {Day: "14/06/2025"}}
	h.store.loadPruned = 2

	require.NoError(t, h.pipeline.Run(context.Background()))
	assert.Equal(t, 1, h.store.saveCalls)
}

func TestPipeline_Run_WindowOverridesYesterdayInExportOnly(t *testing.T) {
	h := newHarness(t, nil)

	// The ledger already holds yesterday, so there is no backfill gap.
	old := 1.0
	h.store.records = []domain.DailyRecord{
		{Day: "13/06/2025"},
		{Day: "14/06/2025", SeaLevel: &old},
	}

	require.NoError(t, h.pipeline.Run(context.Background()))

	// The export's 14th is the freshly fetched window row.
	require.Len(t, h.writer.snapshots, 1)
	snap := h.writer.snapshots[0]
	var exported *domain.DailyRecord
	for i := range snap.Days {
		if snap.Days[i].Day == "14/06/2025" {
			exported = &snap.Days[i]
		}
	}
	require.NotNil(t, exported)
	assert.NotEmpty(t, exported.PressureSeries)
	assert.Nil(t, exported.SeaLevel)
	assert.False(t, exported.IsForecast)

	// The persisted row is not rewritten.
	stored, ok := h.store.byDay("14/06/2025")
	require.True(t, ok)
	require.NotNil(t, stored.SeaLevel)
	assert.InEpsilon(t, 1.0, *stored.SeaLevel, 1e-9)
	assert.Empty(t, stored.PressureSeries)
}

func TestPipeline_Run_PublishesOnlyNewlyAppendedDays(t *testing.T) {
	pub := &fakePublisher{}
	h := newHarness(t, pub)

	// The 12th and 13th are already persisted; only the 14th is new.
	h.store.records = []domain.DailyRecord{{Day: "12/06/2025"}, {Day: "13/06/2025"}}

	require.NoError(t, h.pipeline.Run(context.Background()))

	require.Len(t, pub.published, 1)
	assert.Equal(t, []string{"14/06/2025"}, dayKeys(pub.published[0]))
}

func TestPipeline_Run_PublishFailureDoesNotFailRun(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker unreachable")}
	h := newHarness(t, pub)

	require.NoError(t, h.pipeline.Run(context.Background()))
	require.Len(t, h.writer.snapshots, 1)
	assert.Empty(t, h.writer.errDocs)
}
