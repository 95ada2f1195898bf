package main

import (
	"fmt"
	"time"

	"greyhound-pipeline/config"
	"greyhound-pipeline/models"
	"greyhound-pipeline/scraper/browser"
	"greyhound-pipeline/scraper/dogstats"
	"greyhound-pipeline/scraper/racecard"
	"greyhound-pipeline/services"
	"greyhound-pipeline/storage"
	"greyhound-pipeline/utils"
)

// Pipeline sequences race card extraction, dog statistics extraction,
// feature engineering, the dual CSV write, and the summary report.
type Pipeline struct {
	cfg    *config.Config
	logger *utils.Logger
}

// NewPipeline creates a Pipeline with the given config and logger.
func NewPipeline(cfg *config.Config, logger *utils.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, logger: logger}
}

// Run executes the full pipeline. Per-row and per-dog failures are logged
// and counted; only setup-level failures return an error.
func (p *Pipeline) Run(mode, startDate, endDate string) error {
	startedAt := time.Now()
	runDate := startedAt.Format("2006-01-02")

	p.logger.Info("============================================================")
	p.logger.Info("GREYHOUND RACING DATA PIPELINE STARTED (mode: %s)", mode)
	p.logger.Info("============================================================")

	start, end, label, err := resolveDateRange(mode, startDate, endDate)
	if err != nil {
		return err
	}

	session, err := browser.NewSession(p.cfg, p.logger)
	if err != nil {
		return fmt.Errorf("pipeline: browser setup: %w", err)
	}
	defer session.Close()

	// Step 1: race cards
	p.logger.Info("Step 1: Extracting race cards ...")
	cards, rawPath, err := p.extractRaceCards(session, mode, start, end, runDate, label)
	if err != nil {
		return err
	}
	extractor := cards.extractor
	p.logger.Info("Race cards extracted: %d entries | File=%s", len(cards.rows), rawPath)

	// Step 2: dog statistics (best effort)
	p.logger.Info("Step 2: Extracting dog statistics ... (best effort)")
	statsRows, failedDogs := p.extractDogStats(cards.rows, runDate)

	// Step 3: features
	p.logger.Info("Step 3: Engineering features ...")
	engineer := services.NewFeatureEngineer(p.cfg, p.logger)
	features := engineer.Engineer(cards.rows, statsRows)
	if len(features) == 0 {
		return fmt.Errorf("pipeline: no features engineered")
	}

	if err := storage.WriteFeatures(p.cfg.DailyModelPath(), features); err != nil {
		return fmt.Errorf("pipeline: write daily model: %w", err)
	}
	p.logger.Info("Daily model saved to %s", p.cfg.DailyModelPath())

	historicalTotal, err := storage.AppendHistorical(p.cfg.HistoricalModelPath(), features)
	if err != nil {
		return fmt.Errorf("pipeline: append historical dataset: %w", err)
	}
	p.logger.Info("Historical dataset now holds %d rows (%s)",
		historicalTotal, p.cfg.HistoricalModelPath())

	p.mirrorToPostgres(features)

	// Step 4: summary
	p.logger.Info("Step 4: Generating summary report ...")
	summarySvc := services.NewSummaryService(p.logger)
	summary := summarySvc.Generate(
		mode, runDate, cards.rows, statsRows, failedDogs, features,
		session.CacheBusts(), extractor.StaleAccepted(), extractor.ParseFailures(),
		historicalTotal, time.Since(startedAt).Seconds(),
	)
	summarySvc.Print(summary)
	if err := summarySvc.Write(p.cfg.SummaryPath(runDate), summary); err != nil {
		p.logger.Error("Summary write failed: %v", err)
	}

	p.logger.Info("Pipeline completed in %s", time.Since(startedAt).Round(time.Second))
	return nil
}

type raceCardResult struct {
	rows      []*models.RaceCardRow
	extractor *racecard.Extractor
}

func (p *Pipeline) extractRaceCards(session *browser.Session, mode string, start, end time.Time, runDate, label string) (*raceCardResult, string, error) {
	extractor := racecard.New(p.cfg, p.logger, session)

	var rows []*models.RaceCardRow
	var rawPath string
	var err error

	if mode == "historical" {
		rows, err = extractor.ExtractHistorical(start, end)
		rawPath = p.cfg.ResultsPath(label)
	} else {
		rows, err = extractor.ExtractToday()
		rawPath = p.cfg.RaceCardsPath(runDate)
	}
	if err != nil {
		return nil, "", fmt.Errorf("pipeline: race card extraction: %w", err)
	}

	writer, err := storage.NewRaceCardWriter(rawPath)
	if err != nil {
		return nil, "", fmt.Errorf("pipeline: raw race card file: %w", err)
	}
	defer writer.Close()
	if err := writer.WriteAll(rows); err != nil {
		return nil, "", fmt.Errorf("pipeline: write raw race cards: %w", err)
	}

	return &raceCardResult{rows: rows, extractor: extractor}, rawPath, nil
}

func (p *Pipeline) extractDogStats(cards []*models.RaceCardRow, runDate string) ([]*models.DogStatsRow, []string) {
	seen := utils.NewNameSet()
	var dogs []string
	for _, c := range cards {
		if seen.Add(c.DogName) {
			dogs = append(dogs, c.DogName)
		}
	}

	extractor := dogstats.New(p.cfg, p.logger)
	rows, failed := extractor.Extract(dogs)
	if len(rows) == 0 {
		p.logger.Warn("Proceeding without dog statistics (feature coverage reduced)")
		return nil, failed
	}

	statsPath := p.cfg.DogStatsPath(runDate)
	writer, err := storage.NewDogStatsWriter(statsPath)
	if err != nil {
		p.logger.Error("Raw dog stats file: %v", err)
		return rows, failed
	}
	defer writer.Close()
	if err := writer.WriteAll(rows); err != nil {
		p.logger.Error("Write raw dog stats: %v", err)
	} else {
		p.logger.Info("Dog statistics saved: %d rows | File=%s", len(rows), statsPath)
	}

	return rows, failed
}

// mirrorToPostgres upserts the run's feature rows into the optional
// Postgres store. Failures are logged, never fatal: CSV remains the
// primary output.
func (p *Pipeline) mirrorToPostgres(features []*models.FeatureRow) {
	if !p.cfg.PostgresEnabled() {
		return
	}

	var store storage.FeatureStore
	store, err := storage.NewPostgresWriter(p.cfg.DSN())
	if err != nil {
		p.logger.Error("PostgreSQL mirror unavailable: %v", err)
		return
	}
	defer store.Close()

	if err := store.Write(features); err != nil {
		p.logger.Error("PostgreSQL mirror write failed: %v", err)
		return
	}
	p.logger.Info("Feature rows mirrored to PostgreSQL (table: feature_rows)")
}

// resolveDateRange validates the mode/date flags. Historical mode accepts
// a single date on either flag and treats it as a one-day range.
func resolveDateRange(mode, startDate, endDate string) (time.Time, time.Time, string, error) {
	if mode != "historical" {
		return time.Time{}, time.Time{}, "", nil
	}

	if startDate == "" && endDate == "" {
		return time.Time{}, time.Time{}, "",
			fmt.Errorf("pipeline: historical mode requires --start-date and/or --end-date (YYYY-MM-DD)")
	}
	if startDate == "" {
		startDate = endDate
	}
	if endDate == "" {
		endDate = startDate
	}

	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return time.Time{}, time.Time{}, "", fmt.Errorf("pipeline: invalid --start-date %q: %w", startDate, err)
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return time.Time{}, time.Time{}, "", fmt.Errorf("pipeline: invalid --end-date %q: %w", endDate, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, "", fmt.Errorf("pipeline: --end-date is before --start-date")
	}

	label := startDate
	if startDate != endDate {
		label = startDate + "_to_" + endDate
	}
	return start, end, label, nil
}
