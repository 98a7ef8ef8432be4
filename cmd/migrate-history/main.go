// Command migrate-history converts a legacy ledger CSV to the canonical
// column format expected by the pipeline:
//
//   - cells holding bare NaN/None/null tokens become empty strings
//   - the "Tidal Data" and "Pressure Data" list columns, historically written
//     as Python-literal text (single quotes, None, NaN), become JSON
//
// It is a one-time tool for pre-existing data; the pipeline itself only
// reads and writes the canonical JSON form. A timestamped backup is created
// before an in-place rewrite.
//
// Usage:
//
//	go run ./cmd/migrate-history -csv data/history.csv -inplace
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"time"
)

var listColumns = map[string]bool{
	"Tidal Data":    true,
	"Pressure Data": true,
}

var emptyTokens = map[string]bool{
	"nan": true, "NaN": true, "NAN": true,
	"None": true, "NONE": true,
	"null": true, "NULL": true,
}

var nanTokenRe = regexp.MustCompile(`\bNaN\b|\bnan\b`)
var noneTokenRe = regexp.MustCompile(`\bNone\b`)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "path to the ledger CSV (e.g. data/history.csv)")
	inplace := flag.Bool("inplace", false, "rewrite the input file (creates a backup first)")
	outPath := flag.String("out", "", "output path when not using -inplace")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		return fmt.Errorf("-csv is required")
	}

	header, rows, err := readCSV(*csvPath)
	if err != nil {
		return err
	}

	var scalarReplaced, listMigrated, listDropped int
	for _, row := range rows {
		for i := range row {
			if i >= len(header) {
				continue
			}
			if listColumns[header[i]] {
				migrated, ok := migrateListCell(row[i])
				if !ok {
					listDropped++
					row[i] = ""
					continue
				}
				if migrated != row[i] {
					listMigrated++
				}
				row[i] = migrated
				continue
			}
			cleaned := cleanScalarCell(row[i])
			if cleaned != row[i] {
				scalarReplaced++
			}
			row[i] = cleaned
		}
	}

	target := *outPath
	if *inplace {
		backup := fmt.Sprintf("%s.bak_%s", *csvPath, time.Now().Format("20060102_150405"))
		if err := copyFile(*csvPath, backup); err != nil {
			return fmt.Errorf("create backup: %w", err)
		}
		fmt.Printf("backup created: %s\n", backup)
		target = *csvPath
	} else if target == "" {
		target = strings.TrimSuffix(*csvPath, ".csv") + ".clean.csv"
	}

	if err := writeCSV(target, header, rows); err != nil {
		return err
	}

	fmt.Printf("migrated CSV written to %s\n", target)
	fmt.Printf("stats: scalar cells cleaned=%d, list cells migrated=%d, unparseable list cells dropped=%d\n",
		scalarReplaced, listMigrated, listDropped)
	return nil
}

// cleanScalarCell empties cells holding NaN/None/null sentinel tokens.
func cleanScalarCell(v string) string {
	s := strings.TrimSpace(v)
	if emptyTokens[s] {
		return ""
	}
	return s
}

// migrateListCell converts a list cell to canonical JSON. Already-valid JSON
// is normalized; Python-literal text is rewritten (single quotes → double,
// None/NaN → null) and then validated. Returns false if neither form parses.
func migrateListCell(v string) (string, bool) {
	s := strings.TrimSpace(v)
	if s == "" {
		return "", true
	}

	if out, ok := normalizeJSONList(s); ok {
		return out, true
	}

	converted := nanTokenRe.ReplaceAllString(s, "null")
	converted = noneTokenRe.ReplaceAllString(converted, "null")
	converted = strings.ReplaceAll(converted, "'", `"`)
	if out, ok := normalizeJSONList(converted); ok {
		return out, true
	}
	return "", false
}

func normalizeJSONList(s string) (string, bool) {
	var list []map[string]any
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return "", false
	}
	out, err := json.Marshal(list)
	if err != nil {
		return "", false
	}
	return string(out), true
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("%s is empty", path)
	}
	return all[0], all[1:], nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
