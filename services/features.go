package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"greyhound-pipeline/config"
	"greyhound-pipeline/models"
	"greyhound-pipeline/utils"
)

var (
	metersRegexp      = regexp.MustCompile(`(\d+)`)
	gradeNumberRegexp = regexp.MustCompile(`(\d+)`)
	gradeLetterRegexp = regexp.MustCompile(`([A-Z])`)
)

// FeatureEngineer joins race cards with dog statistics and derives the
// modeling-ready columns. Missing upstream data produces nil values and
// presence flags, never fabricated zeros.
type FeatureEngineer struct {
	cfg    *config.Config
	logger *utils.Logger
}

// NewFeatureEngineer creates a FeatureEngineer with the given config.
func NewFeatureEngineer(cfg *config.Config, logger *utils.Logger) *FeatureEngineer {
	return &FeatureEngineer{cfg: cfg, logger: logger}
}

// Engineer produces one FeatureRow per race card runner, joined with the
// dog's historical rows on Dog_Name.
func (f *FeatureEngineer) Engineer(cards []*models.RaceCardRow, stats []*models.DogStatsRow) []*models.FeatureRow {
	f.logger.Info("[features] Engineering features for %d runners (%d stats rows)", len(cards), len(stats))

	byDog := make(map[string][]*models.DogStatsRow)
	for _, s := range stats {
		byDog[s.DogName] = append(byDog[s.DogName], s)
	}

	raceSizes := make(map[string]int)
	for _, c := range cards {
		raceSizes[raceKey(c)]++
	}

	rows := make([]*models.FeatureRow, 0, len(cards))
	for _, c := range cards {
		row := &models.FeatureRow{
			Track:      c.Track,
			RaceNumber: c.RaceNumber,
			RaceTime:   c.RaceTime,
			DogName:    c.DogName,
			Trap:       c.Trap,
			Grade:      c.Grade,
			Distance:   c.Distance,
			RunDate:    c.RunDate,
			RaceSize:   raceSizes[raceKey(c)],
			Stale:      c.Stale,
		}

		f.applyDistance(row, c)
		f.applyGrade(row, c.Grade)
		f.applyTrap(row, c.Trap)
		row.TrackDifficulty = f.trackDifficulty(c.Track)
		f.applyHistory(row, byDog[c.DogName])

		rows = append(rows, row)
	}

	f.logger.Info("[features] Produced %d feature rows", len(rows))
	return rows
}

func (f *FeatureEngineer) applyDistance(row *models.FeatureRow, c *models.RaceCardRow) {
	if c.DistanceMeters == nil {
		row.HasDistance = false
		row.DistanceCategory = "Unknown"
		return
	}

	meters := *c.DistanceMeters
	row.DistanceMeters = &meters
	row.HasDistance = true

	switch {
	case meters <= f.cfg.SprintMaxMeters:
		row.DistanceCategory = "Sprint"
	case meters <= f.cfg.MiddleMaxMeters:
		row.DistanceCategory = "Middle"
	default:
		row.DistanceCategory = "Long"
	}
}

// applyGrade encodes grades like "A3": letter gives the level, the digit
// refines the score.
func (f *FeatureEngineer) applyGrade(row *models.FeatureRow, grade string) {
	row.GradeLevel = f.cfg.DefaultGradeLevel
	if m := gradeLetterRegexp.FindStringSubmatch(grade); m != nil {
		if level, ok := f.cfg.GradeMapping[m[1]]; ok {
			row.GradeLevel = level
		}
	}

	gradeNumber := 0.0
	if m := gradeNumberRegexp.FindStringSubmatch(grade); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		gradeNumber = n
	}
	row.GradeScore = row.GradeLevel + gradeNumber/10
}

func (f *FeatureEngineer) applyTrap(row *models.FeatureRow, trap int) {
	if trap < 1 || trap > 6 {
		row.TrapAnomaly = true
		row.TrapAdvantage = f.cfg.DefaultTrapAdvantage
		return
	}

	if adv, ok := f.cfg.TrapAdvantages[trap]; ok {
		row.TrapAdvantage = adv
	} else {
		row.TrapAdvantage = f.cfg.DefaultTrapAdvantage
	}
	row.InsideTrap = trap <= 2
	row.OutsideTrap = trap >= 5
}

func (f *FeatureEngineer) trackDifficulty(track string) float64 {
	if d, ok := f.cfg.TrackDifficulties[track]; ok {
		return d
	}
	return f.cfg.DefaultDifficulty
}

// applyHistory derives the count-based ratios and the speed score from the
// dog's historical rows. A dog with no history keeps nil rates and the
// configured speed fallback.
func (f *FeatureEngineer) applyHistory(row *models.FeatureRow, history []*models.DogStatsRow) {
	row.SpeedScore = f.cfg.SpeedScoreFallback

	if len(history) == 0 {
		return
	}

	row.HasDogStats = true
	row.TotalRuns = len(history)

	wins, places := 0, 0
	speedSum, speedCount := 0.0, 0

	for _, h := range history {
		if pos, ok := positionNumber(h.Position); ok {
			if pos == 1 {
				wins++
			}
			if pos >= 1 && pos <= 3 {
				places++
			}
		}

		if speed, ok := speedFromRow(h); ok {
			speedSum += speed
			speedCount++
		}
	}

	winRate := float64(wins) / float64(len(history))
	placeRate := float64(places) / float64(len(history))
	row.WinRate = &winRate
	row.PlaceRate = &placeRate

	if speedCount > 0 {
		avg := speedSum / float64(speedCount)
		if !math.IsNaN(avg) && !math.IsInf(avg, 0) {
			row.SpeedScore = avg
			row.HasTimeData = true
		}
	}
}

// speedFromRow computes meters per second for one historical run, guarding
// against missing or zero time and distance.
func speedFromRow(h *models.DogStatsRow) (float64, bool) {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(h.Time), 64)
	if err != nil || seconds <= 0 {
		return 0, false
	}

	m := metersRegexp.FindStringSubmatch(h.Distance)
	if m == nil {
		return 0, false
	}
	meters, err := strconv.Atoi(m[1])
	if err != nil || meters <= 0 {
		return 0, false
	}

	speed := float64(meters) / seconds
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		return 0, false
	}
	return speed, true
}

func positionNumber(pos string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(pos))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func raceKey(c *models.RaceCardRow) string {
	return fmt.Sprintf("%s|%d", c.Track, c.RaceNumber)
}
