package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"greyhound-pipeline/models"
)

// csvFile wraps the shared create-with-header plumbing for the raw writers.
// It is safe for concurrent use.
type csvFile struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

func newCSVFile(path string, header []string) (*csvFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &csvFile{file: f, writer: w}, nil
}

func (c *csvFile) writeRecords(records [][]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range records {
		if err := c.writer.Write(rec); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *csvFile) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

var raceCardHeader = []string{
	"track", "race_number", "race_time", "grade", "distance", "distance_meters",
	"trap", "dog_name", "form", "sp_forecast", "trainer", "run_date", "stale",
}

// RaceCardWriter writes raw race card rows to a CSV file.
type RaceCardWriter struct {
	*csvFile
}

// NewRaceCardWriter creates (or truncates) the raw race card file.
func NewRaceCardWriter(path string) (*RaceCardWriter, error) {
	f, err := newCSVFile(path, raceCardHeader)
	if err != nil {
		return nil, err
	}
	return &RaceCardWriter{csvFile: f}, nil
}

// WriteAll appends every row to the file.
func (w *RaceCardWriter) WriteAll(rows []*models.RaceCardRow) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Track,
			strconv.Itoa(r.RaceNumber),
			r.RaceTime,
			r.Grade,
			r.Distance,
			intPtrField(r.DistanceMeters),
			strconv.Itoa(r.Trap),
			r.DogName,
			r.Form,
			r.SPForecast,
			r.Trainer,
			r.RunDate,
			strconv.FormatBool(r.Stale),
		})
	}
	return w.writeRecords(records)
}

var dogStatsHeader = []string{
	"dog_name", "date", "track", "trap", "grade", "distance", "going",
	"runners", "position", "btn", "time", "sp", "comment",
}

// DogStatsWriter writes raw dog statistics rows to a CSV file.
type DogStatsWriter struct {
	*csvFile
}

// NewDogStatsWriter creates (or truncates) the raw dog stats file.
func NewDogStatsWriter(path string) (*DogStatsWriter, error) {
	f, err := newCSVFile(path, dogStatsHeader)
	if err != nil {
		return nil, err
	}
	return &DogStatsWriter{csvFile: f}, nil
}

// WriteAll appends every row to the file.
func (w *DogStatsWriter) WriteAll(rows []*models.DogStatsRow) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.DogName, r.Date, r.Track, r.Trap, r.Grade, r.Distance, r.Going,
			r.Runners, r.Position, r.Btn, r.Time, r.SP, r.Comment,
		})
	}
	return w.writeRecords(records)
}

func intPtrField(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
