package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"greyhound-pipeline/models"
)

var featureHeader = []string{
	"track", "race_number", "race_time", "dog_name", "trap", "grade",
	"distance", "run_date", "race_size", "distance_meters",
	"distance_category", "grade_level", "grade_score", "win_rate",
	"place_rate", "total_runs", "track_difficulty", "trap_advantage",
	"inside_trap", "outside_trap", "speed_score", "has_dog_stats",
	"has_distance", "has_time_data", "trap_anomaly", "stale",
}

// WriteFeatures overwrites path with the given feature rows. Used for the
// daily model file, which reflects only the latest run.
func WriteFeatures(path string, rows []*models.FeatureRow) error {
	f, err := newCSVFile(path, featureHeader)
	if err != nil {
		return err
	}
	defer f.Close()

	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, featureRecord(r))
	}
	return f.writeRecords(records)
}

// AppendHistorical merges rows into the historical dataset at path,
// deduplicating on (Track, Race_Number, Dog_Name, Run_Date) and keeping
// the most recent run's row on conflict. Returns the dataset size after
// the merge.
func AppendHistorical(path string, rows []*models.FeatureRow) (int, error) {
	existing, err := ReadFeatures(path)
	if err != nil && !os.IsNotExist(err) {
		return 0, err
	}

	merged := make([]*models.FeatureRow, 0, len(existing)+len(rows))
	index := make(map[string]int)

	for _, r := range existing {
		if i, dup := index[r.Key()]; dup {
			merged[i] = r
			continue
		}
		index[r.Key()] = len(merged)
		merged = append(merged, r)
	}
	for _, r := range rows {
		if i, dup := index[r.Key()]; dup {
			merged[i] = r // later run replaces the earlier row
			continue
		}
		index[r.Key()] = len(merged)
		merged = append(merged, r)
	}

	// Write via a temp file so a crash mid-write never truncates the
	// accumulated dataset.
	tmp := path + ".tmp"
	if err := WriteFeatures(tmp, merged); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, fmt.Errorf("csv: replace %q: %w", path, err)
	}

	return len(merged), nil
}

// ReadFeatures loads a feature CSV back into typed rows.
func ReadFeatures(path string) ([]*models.FeatureRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(featureHeader)

	var rows []*models.FeatureRow
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read %q: %w", path, err)
		}
		if first {
			first = false
			continue // header
		}

		row, err := parseFeatureRecord(record)
		if err != nil {
			return nil, fmt.Errorf("csv: parse %q: %w", path, err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func featureRecord(r *models.FeatureRow) []string {
	return []string{
		r.Track,
		strconv.Itoa(r.RaceNumber),
		r.RaceTime,
		r.DogName,
		strconv.Itoa(r.Trap),
		r.Grade,
		r.Distance,
		r.RunDate,
		strconv.Itoa(r.RaceSize),
		intPtrField(r.DistanceMeters),
		r.DistanceCategory,
		floatField(r.GradeLevel),
		floatField(r.GradeScore),
		floatPtrField(r.WinRate),
		floatPtrField(r.PlaceRate),
		strconv.Itoa(r.TotalRuns),
		floatField(r.TrackDifficulty),
		floatField(r.TrapAdvantage),
		strconv.FormatBool(r.InsideTrap),
		strconv.FormatBool(r.OutsideTrap),
		floatField(r.SpeedScore),
		strconv.FormatBool(r.HasDogStats),
		strconv.FormatBool(r.HasDistance),
		strconv.FormatBool(r.HasTimeData),
		strconv.FormatBool(r.TrapAnomaly),
		strconv.FormatBool(r.Stale),
	}
}

func parseFeatureRecord(rec []string) (*models.FeatureRow, error) {
	raceNumber, err := strconv.Atoi(rec[1])
	if err != nil {
		return nil, fmt.Errorf("race_number %q: %w", rec[1], err)
	}
	trap, err := strconv.Atoi(rec[4])
	if err != nil {
		return nil, fmt.Errorf("trap %q: %w", rec[4], err)
	}
	raceSize, _ := strconv.Atoi(rec[8])
	totalRuns, _ := strconv.Atoi(rec[15])

	return &models.FeatureRow{
		Track:            rec[0],
		RaceNumber:       raceNumber,
		RaceTime:         rec[2],
		DogName:          rec[3],
		Trap:             trap,
		Grade:            rec[5],
		Distance:         rec[6],
		RunDate:          rec[7],
		RaceSize:         raceSize,
		DistanceMeters:   parseIntPtr(rec[9]),
		DistanceCategory: rec[10],
		GradeLevel:       parseFloat(rec[11]),
		GradeScore:       parseFloat(rec[12]),
		WinRate:          parseFloatPtr(rec[13]),
		PlaceRate:        parseFloatPtr(rec[14]),
		TotalRuns:        totalRuns,
		TrackDifficulty:  parseFloat(rec[16]),
		TrapAdvantage:    parseFloat(rec[17]),
		InsideTrap:       rec[18] == "true",
		OutsideTrap:      rec[19] == "true",
		SpeedScore:       parseFloat(rec[20]),
		HasDogStats:      rec[21] == "true",
		HasDistance:      rec[22] == "true",
		HasTimeData:      rec[23] == "true",
		TrapAnomaly:      rec[24] == "true",
		Stale:            rec[25] == "true",
	}, nil
}

func floatField(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func floatPtrField(v *float64) string {
	if v == nil {
		return ""
	}
	return floatField(*v)
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseFloatPtr(s string) *float64 {
	if s == "" {
		return nil
	}
	v := parseFloat(s)
	return &v
}

func parseIntPtr(s string) *int {
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}
