package history

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
)

// Entry is one generated report.
type Entry struct {
	RunID                string    `csv:"run_id"`
	Timeframe            string    `csv:"timeframe"`
	FirstImage           string    `csv:"first_image"`
	LatestImage          string    `csv:"latest_image"`
	VegetationAreaChange float64   `csv:"vegetation_area_change"`
	ReportPath           string    `csv:"report_path"`
	GeneratedAt          time.Time `csv:"generated_at"`
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && info.Size() > 0
}

// Append adds entries to the CSV at path, writing the header only when the file is new.
func Append(path string, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create history folder: %w", err)
	}

	exists := fileExists(path)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if exists {
		err = gocsv.MarshalCSVWithoutHeaders(&entries, writer)
	} else {
		err = gocsv.MarshalCSV(&entries, writer)
	}
	if err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush history: %w", err)
	}
	return nil
}

// Read returns every entry in generation order. A missing file has no entries.
func Read(path string) ([]Entry, error) {
	if !fileExists(path) {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	var entries []Entry
	if err := gocsv.UnmarshalFile(file, &entries); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].GeneratedAt.Before(entries[j].GeneratedAt)
	})
	return entries, nil
}

func ForTimeframe(entries []Entry, timeframe string) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Timeframe == timeframe {
			out = append(out, e)
		}
	}
	return out
}
