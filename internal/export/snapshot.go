// Package export builds and writes the published snapshot document consumed
// by the site frontend: a metadata envelope plus the ordered, deduplicated
// merge of confirmed history and the rolling forecast window.
package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lapan-fishing/tide-journal-etl/internal/domain"
)

// Meta is the snapshot's observational envelope.
type Meta struct {
	GeneratedAt string `json:"generated_at"`
	Rows        int    `json:"rows"`
}

// Snapshot is the published document.
type Snapshot struct {
	Meta Meta                 `json:"meta"`
	Days []domain.DailyRecord `json:"days"`
}

// errorDocument is written in place of a snapshot when a run fails, so the
// frontend can detect the failure without crashing on a malformed file.
type errorDocument struct {
	Error string `json:"error"`
}

// BuildSnapshot merges history (days strictly before windowStart) with the
// freshly aggregated window, window winning per day, sorted ascending with no
// duplicate day keys.
func BuildSnapshot(history, window []domain.DailyRecord, windowStart time.Time, loc *time.Location) Snapshot {
	days := domain.MergeWindow(history, window, windowStart, loc)
	if days == nil {
		days = []domain.DailyRecord{}
	}
	return Snapshot{
		Meta: Meta{
			GeneratedAt: domain.Clock().Now().In(loc).Format(time.RFC3339),
			Rows:        len(days),
		},
		Days: days,
	}
}

// Writer writes snapshot documents atomically.
type Writer struct {
	path   string
	logger *slog.Logger
}

// NewWriter creates a Writer targeting the snapshot path.
func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

// Write serializes and atomically replaces the snapshot file.
func (w *Writer) Write(snap Snapshot) error {
	return w.writeJSON(snap)
}

// WriteError replaces the snapshot with an explicit error document. Called at
// the outermost boundary on any unrecoverable failure so downstream consumers
// always observe a well-formed artifact.
func (w *Writer) WriteError(runErr error) error {
	return w.writeJSON(errorDocument{Error: runErr.Error()})
}

func (w *Writer) writeJSON(doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize snapshot: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".data-*.json")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
