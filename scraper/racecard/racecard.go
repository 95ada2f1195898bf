package racecard

import (
	"fmt"
	"time"

	"greyhound-pipeline/config"
	"greyhound-pipeline/models"
	"greyhound-pipeline/scraper/browser"
	"greyhound-pipeline/utils"
)

const (
	cardSelector     = "#sortContainer"
	meetingsFragment = "meeting-races"
	resultsFragment  = "meeting-results"
	cardFragment     = "#card/"
	resultFragment   = "#result/"
)

// pageSession is the slice of the browser session the extractor needs.
type pageSession interface {
	Navigate(url, waitSelector string) error
	HTML() (string, error)
	Refresh() error
	CacheBust(level browser.BustLevel)
}

// Extractor pulls race card data off the Racing Post SPA, one page at a
// time over a single browser session.
type Extractor struct {
	cfg      *config.Config
	logger   *utils.Logger
	session  pageSession
	detector *StalenessDetector
	retry    *utils.RetryConfig

	parseFailures int
	staleAccepted int
}

// New creates a race card Extractor bound to an open browser session.
func New(cfg *config.Config, logger *utils.Logger, session pageSession) *Extractor {
	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	return &Extractor{
		cfg:      cfg,
		logger:   logger,
		session:  session,
		detector: NewStalenessDetector(cfg.StaleHistorySize, cfg.StaleOverlapThreshold),
		retry: &utils.RetryConfig{
			MaxAttempts: attempts,
			BaseDelay:   time.Duration(cfg.RateLimitMs) * time.Millisecond,
			Logger:      logger,
		},
	}
}

// ExtractToday scrapes every race card for today's meetings.
func (e *Extractor) ExtractToday() ([]*models.RaceCardRow, error) {
	runDate := time.Now().Format("2006-01-02")
	e.logger.Info("[racecard] Extracting today's race cards (%s)", runDate)

	refs, err := e.collectRaceRefs(e.cfg.RacingPostURL, meetingsFragment, cardFragment)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("racecard: no race cards found on listing page")
	}

	return e.extractRaces(refs, runDate), nil
}

// ExtractHistorical scrapes completed-race rows for each date in the
// inclusive range.
func (e *Extractor) ExtractHistorical(start, end time.Time) ([]*models.RaceCardRow, error) {
	var all []*models.RaceCardRow

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		date := d.Format("2006-01-02")
		e.logger.Info("[racecard] Extracting historical results for %s", date)

		listingURL := fmt.Sprintf("%s#results-list/r/%s", e.cfg.RacingPostURL, date)
		refs, err := e.collectRaceRefs(listingURL, resultsFragment, resultFragment)
		if err != nil {
			e.logger.Error("[racecard] Results listing failed for %s: %v", date, err)
			e.parseFailures++
			continue
		}

		rows := e.extractRaces(refs, date)
		e.logger.Info("[racecard] %s: %d result rows", date, len(rows))
		all = append(all, rows...)
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("racecard: historical extraction produced no rows")
	}
	return all, nil
}

// collectRaceRefs walks listing page → meetings → per-race links.
func (e *Extractor) collectRaceRefs(listingURL, meetingFragment, raceFragment string) ([]raceRef, error) {
	var html string
	err := e.retry.Do("race listing", func() error {
		if err := e.session.Navigate(listingURL, ""); err != nil {
			return err
		}
		var readErr error
		html, readErr = e.session.HTML()
		return readErr
	})
	if err != nil {
		return nil, err
	}

	meetings, err := parseMeetings(html, meetingFragment)
	if err != nil {
		return nil, fmt.Errorf("racecard: parse meetings: %w", err)
	}
	e.logger.Info("[racecard] Found %d meetings", len(meetings))

	var refs []raceRef
	for _, m := range meetings {
		meetingURL := e.cfg.RacingPostURL + m.Href
		if err := e.session.Navigate(meetingURL, ""); err != nil {
			e.logger.Error("[racecard] Meeting %s failed: %v", m.Track, err)
			e.parseFailures++
			continue
		}

		pageHTML, err := e.session.HTML()
		if err != nil {
			e.logger.Error("[racecard] Meeting %s page source: %v", m.Track, err)
			e.parseFailures++
			continue
		}

		meetingRefs, err := parseRaceLinks(pageHTML, m.Track, raceFragment)
		if err != nil {
			e.logger.Error("[racecard] Meeting %s race links: %v", m.Track, err)
			e.parseFailures++
			continue
		}

		e.logger.Debug("[racecard] %s: %d races", m.Track, len(meetingRefs))
		refs = append(refs, meetingRefs...)
	}

	return refs, nil
}

// extractRaces visits each race page, handling cache busting and staleness.
// Per-race failures are logged and counted, never fatal.
func (e *Extractor) extractRaces(refs []raceRef, runDate string) []*models.RaceCardRow {
	var all []*models.RaceCardRow
	currentTrack := ""

	for i, ref := range refs {
		e.logger.Info("[racecard] Race %d/%d: %s Race %d", i+1, len(refs), ref.Track, ref.RaceNumber)

		// Track switches are where the SPA reliably serves stale cards.
		if ref.Track != currentTrack {
			if currentTrack != "" {
				e.session.CacheBust(browser.BustAggressive)
			}
			currentTrack = ref.Track
		} else if e.cfg.CacheBustEvery > 0 && i%e.cfg.CacheBustEvery == 0 {
			e.session.CacheBust(browser.BustLight)
		}

		raceURL := e.cfg.RacingPostURL + ref.Href
		if i%5 == 0 {
			raceURL = browser.BustURL(raceURL)
		}

		runners, err := e.scrapeRace(raceURL, ref, runDate)
		if err != nil {
			e.logger.Error("[racecard] Race %s/%d failed: %v", ref.Track, ref.RaceNumber, err)
			e.parseFailures++
			continue
		}
		if len(runners) == 0 {
			e.logger.Warn("[racecard] No runners found for %s Race %d", ref.Track, ref.RaceNumber)
			e.parseFailures++
			continue
		}

		runners = e.resolveStaleness(raceURL, ref, runDate, runners)
		e.detector.Record(dogNames(runners))
		all = append(all, runners...)
	}

	return all
}

// scrapeRace navigates to one race page and parses its runners. Navigation
// and page reads run under the bounded retry policy; a refresh is tried
// first when the card container never appears.
func (e *Extractor) scrapeRace(raceURL string, ref raceRef, runDate string) ([]*models.RaceCardRow, error) {
	var html string
	op := fmt.Sprintf("%s race %d", ref.Track, ref.RaceNumber)

	err := e.retry.Do(op, func() error {
		if err := e.session.Navigate(raceURL, cardSelector); err != nil {
			e.logger.Warn("[racecard] Content not loaded, refreshing: %v", err)
			if err := e.session.Refresh(); err != nil {
				return err
			}
		}

		var readErr error
		html, readErr = e.session.HTML()
		return readErr
	})
	if err != nil {
		return nil, err
	}
	return parseRaceCard(html, ref, runDate)
}

// resolveStaleness re-scrapes a race that looks cached, busting the cache
// between attempts. Once the retry budget is spent the rows are accepted
// as-is but flagged.
func (e *Extractor) resolveStaleness(raceURL string, ref raceRef, runDate string, runners []*models.RaceCardRow) []*models.RaceCardRow {
	if !e.detector.IsStale(dogNames(runners)) {
		return runners
	}

	for attempt := 1; attempt <= e.cfg.StaleRetryBudget; attempt++ {
		e.logger.Warn("[racecard] Stale page suspected for %s Race %d — cache bust retry %d/%d",
			ref.Track, ref.RaceNumber, attempt, e.cfg.StaleRetryBudget)
		e.session.CacheBust(browser.BustAggressive)

		retried, err := e.scrapeRace(browser.BustURL(raceURL), ref, runDate)
		if err != nil || len(retried) == 0 {
			continue
		}
		if !e.detector.IsStale(dogNames(retried)) {
			return retried
		}
		runners = retried
	}

	e.logger.Warn("[racecard] Retry budget exhausted for %s Race %d — accepting flagged rows",
		ref.Track, ref.RaceNumber)
	e.staleAccepted++
	for _, r := range runners {
		r.Stale = true
	}
	return runners
}

// ParseFailures reports how many races or meetings were skipped.
func (e *Extractor) ParseFailures() int { return e.parseFailures }

// StaleAccepted reports how many races were kept despite staleness.
func (e *Extractor) StaleAccepted() int { return e.staleAccepted }

func dogNames(rows []*models.RaceCardRow) []string {
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.DogName)
	}
	return names
}
