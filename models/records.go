package models

import "fmt"

// RaceCardRow holds one runner entry parsed from a race card page.
// This is written to the raw CSV exactly as scraped; derived values live
// on FeatureRow only.
type RaceCardRow struct {
	Track          string
	RaceNumber     int
	RaceTime       string
	Grade          string
	Distance       string // raw text, e.g. "480m"
	DistanceMeters *int   // nil when the distance text was absent/unparseable
	Trap           int
	DogName        string
	Form           string
	SPForecast     string
	Trainer        string
	RunDate        string // YYYY-MM-DD
	Stale          bool   // accepted after the cache-bust retry budget ran out
}

// Key returns the composite identity of a runner within a run date.
func (r *RaceCardRow) Key() string {
	return fmt.Sprintf("%s|%d|%s|%s", r.Track, r.RaceNumber, r.DogName, r.RunDate)
}

// DogStatsRow is one historical race appearance for a dog, verbatim as
// displayed on the stats page. No derived fields.
type DogStatsRow struct {
	DogName  string
	Date     string
	Track    string
	Trap     string
	Grade    string
	Distance string
	Going    string
	Runners  string
	Position string
	Btn      string
	Time     string
	SP       string
	Comment  string
}

// FeatureRow is the modeling-ready record: one per runner per race.
// Nullable pointers distinguish "no source data" from a genuine zero.
type FeatureRow struct {
	Track      string
	RaceNumber int
	RaceTime   string
	DogName    string
	Trap       int
	Grade      string
	Distance   string
	RunDate    string

	RaceSize         int
	DistanceMeters   *int
	DistanceCategory string
	GradeLevel       float64
	GradeScore       float64

	WinRate   *float64
	PlaceRate *float64
	TotalRuns int

	TrackDifficulty float64
	TrapAdvantage   float64
	InsideTrap      bool
	OutsideTrap     bool

	SpeedScore float64

	HasDogStats bool
	HasDistance bool
	HasTimeData bool
	TrapAnomaly bool
	Stale       bool
}

// Key returns the dedup key used by the historical dataset:
// (Track, Race_Number, Dog_Name, Run_Date).
func (f *FeatureRow) Key() string {
	return fmt.Sprintf("%s|%d|%s|%s", f.Track, f.RaceNumber, f.DogName, f.RunDate)
}

// RunSummary aggregates counts for the end-of-run report.
type RunSummary struct {
	Mode            string
	RunDate         string
	TotalRaces      int
	TotalRunners    int
	UniqueTracks    int
	UniqueDogs      int
	DogsWithStats   int
	FailedDogs      []string
	CacheBusts      int
	StaleAccepted   int
	ParseFailures   int
	FeatureRows     int
	HistoricalRows  int
	DurationSeconds float64
}

// StatsCoverage returns the fraction of unique dogs that produced at least
// one historical row, as a percentage.
func (s *RunSummary) StatsCoverage() float64 {
	if s.UniqueDogs == 0 {
		return 0
	}
	return float64(s.DogsWithStats) / float64(s.UniqueDogs) * 100
}
