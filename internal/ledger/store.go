// Package ledger persists the confirmed daily journal as a row-per-day CSV.
//
// The column set is fixed and includes five user-editable free-text columns
// that the pipeline carries through untouched. List-valued columns (tidal
// events, pressure series) are serialized as JSON; a cell that fails to parse
// degrades to an empty sequence instead of failing the run. Writes go through
// a temp file and an atomic rename so a partially-written ledger is never
// observable.
package ledger

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lapan-fishing/tide-journal-etl/internal/domain"
)

// Columns is the ledger's fixed header, in order.
var Columns = []string{
	"Vietnam Date",
	"Lunar Date",
	"Tidal Data",
	"Pressure Data",
	"Sea Level",
	"Water Temperature",
	"Wind Speed",
	"Wind Direction",
	"Wave Height",
	"App Fishing Score",
	"User Fishing Score",
	"Fish Caught",
	"User Notes",
	"Pressure",
}

// Store reads and writes the daily ledger CSV.
type Store struct {
	path     string
	loc      *time.Location
	decimals int
	logger   *slog.Logger
}

// NewStore creates a Store for the given ledger path.
func NewStore(path string, loc *time.Location, decimals int, logger *slog.Logger) *Store {
	return &Store{path: path, loc: loc, decimals: decimals, logger: logger}
}

// Load reads the ledger, drops any row later than the cutoff (yesterday), and
// returns the remaining records sorted ascending by day together with the
// number of pruned rows. A missing file is an empty ledger, not an error.
func (s *Store) Load() ([]domain.DailyRecord, int, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read ledger header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	if _, ok := idx["Vietnam Date"]; !ok {
		return nil, 0, fmt.Errorf("ledger %s: missing %q column", s.path, "Vietnam Date")
	}

	var records []domain.DailyRecord
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read ledger row %d: %w", line, err)
		}
		records = append(records, s.parseRow(row, idx, line))
	}

	records, pruned := s.trim(records)
	return records, pruned, nil
}

// Append adds newly aggregated records to the ledger. Append is strictly
// additive: a day already persisted is never overwritten. The combined set is
// re-trimmed to the cutoff, re-sorted, and written atomically. Returns the
// resulting ledger and the number of rows actually added.
func (s *Store) Append(existing, fresh []domain.DailyRecord) ([]domain.DailyRecord, int, error) {
	present := make(map[string]bool, len(existing))
	for _, rec := range existing {
		present[rec.Day] = true
	}

	combined := append([]domain.DailyRecord(nil), existing...)
	added := 0
	for _, rec := range fresh {
		if present[rec.Day] {
			s.logger.Debug("ledger append skipping existing day", "day", rec.Day)
			continue
		}
		present[rec.Day] = true
		combined = append(combined, rec)
		added++
	}

	combined, _ = s.trim(combined)
	if err := s.Save(combined); err != nil {
		return nil, 0, err
	}
	return combined, added, nil
}

// Save writes the full ledger, re-applying the cutoff trim and sort order.
// The file is written to a temp path and renamed into place atomically.
func (s *Store) Save(records []domain.DailyRecord) error {
	records, _ = s.trim(records)

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*.csv")
	if err != nil {
		return fmt.Errorf("create ledger temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(Columns); err != nil {
		tmp.Close()
		return fmt.Errorf("write ledger header: %w", err)
	}
	for _, rec := range records {
		row, err := s.formatRow(rec)
		if err != nil {
			tmp.Close()
			return err
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("write ledger row %s: %w", rec.Day, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// LastDay returns the latest persisted day, or false for an empty ledger.
// Records are sorted ascending, so this is the final row.
func (s *Store) LastDay(records []domain.DailyRecord) (time.Time, bool) {
	for i := len(records) - 1; i >= 0; i-- {
		day, err := domain.ParseDay(records[i].Day, s.loc)
		if err == nil {
			return day, true
		}
	}
	return time.Time{}, false
}

// trim drops duplicate days, rows later than the cutoff, and rows whose day
// cannot be parsed (treated as today, hence beyond the cutoff), then sorts
// ascending. Returns the number of dropped rows.
func (s *Store) trim(records []domain.DailyRecord) ([]domain.DailyRecord, int) {
	cutoff := domain.Today(s.loc).AddDate(0, 0, -1)

	type dated struct {
		rec domain.DailyRecord
		day time.Time
	}
	kept := make([]dated, 0, len(records))
	seen := make(map[string]bool, len(records))
	dropped := 0

	for _, rec := range records {
		day, err := domain.ParseDay(rec.Day, s.loc)
		if err != nil {
			// Conservative, lossy fallback: an unreadable date is treated
			// as today so it falls past the cutoff. Worth investigating
			// upstream whenever it fires.
			s.logger.Warn("ledger row has unparseable date, dropping", "value", rec.Day)
			dropped++
			continue
		}
		if day.After(cutoff) {
			dropped++
			continue
		}
		if seen[rec.Day] {
			s.logger.Warn("ledger has duplicate day, keeping first", "day", rec.Day)
			dropped++
			continue
		}
		seen[rec.Day] = true
		kept = append(kept, dated{rec: rec, day: day})
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].day.Before(kept[j].day) })

	out := make([]domain.DailyRecord, len(kept))
	for i, d := range kept {
		out[i] = d.rec
	}
	return out, dropped
}

func (s *Store) parseRow(row []string, idx map[string]int, line int) domain.DailyRecord {
	cell := func(name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rec := domain.DailyRecord{
		Day:      cell("Vietnam Date"),
		LunarDay: cell("Lunar Date"),
		User: domain.UserFields{
			AppFishingScore:  cell("App Fishing Score"),
			UserFishingScore: cell("User Fishing Score"),
			FishCaught:       cell("Fish Caught"),
			UserNotes:        cell("User Notes"),
			Pressure:         cell("Pressure"),
		},
	}

	rec.TidalEvents = parseListCell[domain.TideEvent](s.logger, "Tidal Data", rec.Day, cell("Tidal Data"))
	rec.PressureSeries = parseListCell[domain.PressurePoint](s.logger, "Pressure Data", rec.Day, cell("Pressure Data"))

	rec.SeaLevel = s.parseMean(cell("Sea Level"), "Sea Level", line)
	rec.WaterTemperature = s.parseMean(cell("Water Temperature"), "Water Temperature", line)
	rec.WindSpeed = s.parseMean(cell("Wind Speed"), "Wind Speed", line)
	rec.WindDirection = s.parseMean(cell("Wind Direction"), "Wind Direction", line)
	rec.WaveHeight = s.parseMean(cell("Wave Height"), "Wave Height", line)

	return rec
}

// parseListCell decodes a JSON list cell. Any parse failure degrades to an
// empty sequence for that field only; the run continues.
func parseListCell[T any](logger *slog.Logger, column, day, raw string) []T {
	if raw == "" {
		return []T{}
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		logger.Warn("ledger list cell unparseable, using empty sequence",
			"column", column, "day", day, "error", err)
		return []T{}
	}
	if out == nil {
		return []T{}
	}
	return out
}

func (s *Store) parseMean(raw, column string, line int) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		s.logger.Warn("ledger mean cell unparseable, treating as absent",
			"column", column, "line", line, "value", raw)
		return nil
	}
	return &v
}

func (s *Store) formatRow(rec domain.DailyRecord) ([]string, error) {
	tidal, err := json.Marshal(orEmpty(rec.TidalEvents))
	if err != nil {
		return nil, fmt.Errorf("serialize tidal data for %s: %w", rec.Day, err)
	}
	pressure, err := json.Marshal(orEmpty(rec.PressureSeries))
	if err != nil {
		return nil, fmt.Errorf("serialize pressure data for %s: %w", rec.Day, err)
	}

	return []string{
		rec.Day,
		rec.LunarDay,
		string(tidal),
		string(pressure),
		s.formatMean(rec.SeaLevel),
		s.formatMean(rec.WaterTemperature),
		s.formatMean(rec.WindSpeed),
		s.formatMean(rec.WindDirection),
		s.formatMean(rec.WaveHeight),
		rec.User.AppFishingScore,
		rec.User.UserFishingScore,
		rec.User.FishCaught,
		rec.User.UserNotes,
		rec.User.Pressure,
	}, nil
}

func (s *Store) formatMean(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', s.decimals, 64)
}

func orEmpty[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
