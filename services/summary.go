package services

import (
	"fmt"
	"os"
	"strings"

	"greyhound-pipeline/models"
	"greyhound-pipeline/utils"
)

// SummaryService builds and reports the end-of-run summary.
type SummaryService struct {
	logger *utils.Logger
}

// NewSummaryService creates a SummaryService with the given logger.
func NewSummaryService(logger *utils.Logger) *SummaryService {
	return &SummaryService{logger: logger}
}

// Generate aggregates run counts from the collected datasets.
func (s *SummaryService) Generate(
	mode, runDate string,
	cards []*models.RaceCardRow,
	stats []*models.DogStatsRow,
	failedDogs []string,
	features []*models.FeatureRow,
	cacheBusts, staleAccepted, parseFailures, historicalRows int,
	durationSeconds float64,
) *models.RunSummary {
	races := make(map[string]struct{})
	tracks := make(map[string]struct{})
	dogs := make(map[string]struct{})
	for _, c := range cards {
		races[fmt.Sprintf("%s|%d", c.Track, c.RaceNumber)] = struct{}{}
		tracks[c.Track] = struct{}{}
		dogs[c.DogName] = struct{}{}
	}

	dogsWithStats := make(map[string]struct{})
	for _, st := range stats {
		dogsWithStats[st.DogName] = struct{}{}
	}

	return &models.RunSummary{
		Mode:            mode,
		RunDate:         runDate,
		TotalRaces:      len(races),
		TotalRunners:    len(cards),
		UniqueTracks:    len(tracks),
		UniqueDogs:      len(dogs),
		DogsWithStats:   len(dogsWithStats),
		FailedDogs:      failedDogs,
		CacheBusts:      cacheBusts,
		StaleAccepted:   staleAccepted,
		ParseFailures:   parseFailures,
		FeatureRows:     len(features),
		HistoricalRows:  historicalRows,
		DurationSeconds: durationSeconds,
	}
}

// Print renders the summary to stdout.
func (s *SummaryService) Print(r *models.RunSummary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  🐾 GREYHOUND PIPELINE SUMMARY — %s (%s)\033[0m\n", r.RunDate, r.Mode)
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Race Cards\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Races         : \033[1m%d\033[0m\n", r.TotalRaces)
	fmt.Printf("  Runners       : \033[1m%d\033[0m\n", r.TotalRunners)
	fmt.Printf("  Tracks        : \033[1m%d\033[0m\n", r.UniqueTracks)
	fmt.Printf("  Unique dogs   : \033[1m%d\033[0m\n", r.UniqueDogs)
	fmt.Println()

	fmt.Printf("\033[1;33m  Dog Statistics\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Dogs with stats : \033[1m%d\033[0m (%.1f%% coverage)\n", r.DogsWithStats, r.StatsCoverage())
	fmt.Printf("  Failed dogs     : \033[1m%d\033[0m\n", len(r.FailedDogs))
	fmt.Println()

	fmt.Printf("\033[1;33m  Extraction Health\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Cache busts     : %d\n", r.CacheBusts)
	fmt.Printf("  Stale accepted  : %d\n", r.StaleAccepted)
	fmt.Printf("  Parse failures  : %d\n", r.ParseFailures)
	fmt.Println()

	fmt.Printf("\033[1;33m  Outputs\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Feature rows    : %d\n", r.FeatureRows)
	fmt.Printf("  Historical rows : %d\n", r.HistoricalRows)
	fmt.Printf("  Duration        : %.1fs\n", r.DurationSeconds)

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

// Write saves a plain-text copy of the summary to path.
func (s *SummaryService) Write(path string, r *models.RunSummary) error {
	var b strings.Builder
	b.WriteString("GREYHOUND RACING PIPELINE SUMMARY\n")
	b.WriteString(strings.Repeat("=", 40) + "\n\n")
	fmt.Fprintf(&b, "Run Date: %s\nMode: %s\nDuration: %.1fs\n\n", r.RunDate, r.Mode, r.DurationSeconds)

	fmt.Fprintf(&b, "Race Cards:\n")
	fmt.Fprintf(&b, "  Races: %d\n", r.TotalRaces)
	fmt.Fprintf(&b, "  Runners: %d\n", r.TotalRunners)
	fmt.Fprintf(&b, "  Tracks: %d\n", r.UniqueTracks)
	fmt.Fprintf(&b, "  Unique Dogs: %d\n\n", r.UniqueDogs)

	fmt.Fprintf(&b, "Dog Statistics:\n")
	fmt.Fprintf(&b, "  Dogs with Stats: %d\n", r.DogsWithStats)
	fmt.Fprintf(&b, "  Coverage: %.1f%%\n", r.StatsCoverage())
	fmt.Fprintf(&b, "  Failed Dogs: %d\n", len(r.FailedDogs))
	for _, dog := range r.FailedDogs {
		fmt.Fprintf(&b, "    - %s\n", dog)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Extraction Health:\n")
	fmt.Fprintf(&b, "  Cache Busts: %d\n", r.CacheBusts)
	fmt.Fprintf(&b, "  Stale Accepted: %d\n", r.StaleAccepted)
	fmt.Fprintf(&b, "  Parse Failures: %d\n\n", r.ParseFailures)

	fmt.Fprintf(&b, "Outputs:\n")
	fmt.Fprintf(&b, "  Feature Rows: %d\n", r.FeatureRows)
	fmt.Fprintf(&b, "  Historical Rows: %d\n", r.HistoricalRows)

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("summary: write %q: %w", path, err)
	}
	s.logger.Info("[summary] Report saved to %s", path)
	return nil
}
