// Command validate performs offline integrity checks on the journal
// artifacts: the ledger CSV and the exported snapshot JSON. It verifies day
// key format, ascending sort order, uniqueness, the yesterday cutoff, list
// column parseability, and snapshot metadata consistency.
//
// Usage:
//
//	go run ./cmd/validate -history data/history.csv -site site/data.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lapan-fishing/tide-journal-etl/internal/domain"
	"github.com/lapan-fishing/tide-journal-etl/internal/export"
	"github.com/lapan-fishing/tide-journal-etl/internal/ledger"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) failf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func main() {
	historyPath := flag.String("history", "data/history.csv", "ledger CSV path")
	sitePath := flag.String("site", "site/data.json", "exported snapshot path")
	tzName := flag.String("timezone", "Asia/Ho_Chi_Minh", "calendar timezone")
	flag.Parse()

	loc, err := time.LoadLocation(*tzName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid timezone %q: %v\n", *tzName, err)
		os.Exit(2)
	}

	phases := []*phase{
		validateLedger(*historyPath, loc),
		validateSnapshot(*sitePath, loc),
	}

	failed := false
	for _, p := range phases {
		if len(p.errors) == 0 {
			fmt.Printf("[PASS] %s\n", p.name)
			continue
		}
		failed = true
		fmt.Printf("[FAIL] %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("       - %s\n", e)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func validateLedger(path string, loc *time.Location) *phase {
	p := &phase{name: "ledger " + path}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := ledger.NewStore(path, loc, 2, logger)

	records, pruned, err := store.Load()
	if err != nil {
		p.failf("load: %v", err)
		return p
	}
	if pruned > 0 {
		p.failf("%d rows violate the cutoff or have unparseable/duplicate days", pruned)
	}

	cutoff := domain.Today(loc).AddDate(0, 0, -1)
	var prev time.Time
	for i, rec := range records {
		day, err := domain.ParseDay(rec.Day, loc)
		if err != nil {
			p.failf("row %d: unparseable day %q", i+1, rec.Day)
			continue
		}
		if day.After(cutoff) {
			p.failf("row %d: day %s is after the cutoff %s", i+1, rec.Day, domain.FormatDay(cutoff))
		}
		if i > 0 && !day.After(prev) {
			p.failf("row %d: day %s is not strictly after %s", i+1, rec.Day, domain.FormatDay(prev))
		}
		prev = day
	}
	return p
}

func validateSnapshot(path string, loc *time.Location) *phase {
	p := &phase{name: "snapshot " + path}

	data, err := os.ReadFile(path)
	if err != nil {
		p.failf("read: %v", err)
		return p
	}

	// A well-formed error document is a valid (if unhappy) artifact.
	var errDoc struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &errDoc); err == nil && errDoc.Error != "" {
		p.failf("snapshot is an error document: %s", errDoc.Error)
		return p
	}

	var snap export.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		p.failf("parse: %v", err)
		return p
	}

	if snap.Meta.Rows != len(snap.Days) {
		p.failf("meta.rows=%d but %d days present", snap.Meta.Rows, len(snap.Days))
	}
	if _, err := time.Parse(time.RFC3339, snap.Meta.GeneratedAt); err != nil {
		p.failf("meta.generated_at %q is not RFC3339", snap.Meta.GeneratedAt)
	}

	var prev time.Time
	for i, day := range snap.Days {
		d, err := domain.ParseDay(day.Day, loc)
		if err != nil {
			p.failf("day %d: unparseable key %q", i, day.Day)
			continue
		}
		if i > 0 && !d.After(prev) {
			p.failf("day %d: %s is not strictly after %s", i, day.Day, domain.FormatDay(prev))
		}
		prev = d

		if day.LunarDay == "" {
			p.failf("day %s: missing lunar label", day.Day)
		}
		if day.TidalEvents == nil {
			p.failf("day %s: tidal_data is null, want array", day.Day)
		}
		if day.PressureSeries == nil {
			p.failf("day %s: pressure_data is null, want array", day.Day)
		}
	}
	return p
}
