package dogstats

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"greyhound-pipeline/config"
	"greyhound-pipeline/models"
	"greyhound-pipeline/utils"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/119.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// Extractor fetches per-dog historical statistics over plain HTTP. The
// stats site is static HTML, so no browser session is needed here; a
// rate-limited client pool is both faster and gentler on the server.
type Extractor struct {
	cfg    *config.Config
	logger *utils.Logger
	client *resty.Client
	sleep  func(time.Duration)

	mu      sync.Mutex
	uaIndex int
}

// New creates a dog statistics Extractor.
func New(cfg *config.Config, logger *utils.Logger) *Extractor {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetHeaders(map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "max-age=0",
		})

	return &Extractor{
		cfg:    cfg,
		logger: logger,
		client: client,
		sleep:  time.Sleep,
	}
}

// Extract fetches the historical rows for every dog name, using a bounded
// worker pool with rate limiting. Per-dog failures are recorded and the
// remaining dogs continue; the pipeline runs with whatever was collected.
func (e *Extractor) Extract(dogNames []string) ([]*models.DogStatsRow, []string) {
	e.logger.Info("[dogstats] Extracting stats for %d unique dogs (%d workers, %dms rate limit)",
		len(dogNames), e.cfg.MaxWorkers, e.cfg.RateLimitMs)

	pool := utils.NewWorkerPool(e.cfg.MaxWorkers, e.cfg.RateLimitMs)
	failed := utils.NewNameSet()

	var mu sync.Mutex
	var all []*models.DogStatsRow

	for _, name := range dogNames {
		dog := name
		pool.Submit(func() {
			rows, err := e.fetchWithRetry(dog)
			if err != nil {
				e.logger.Warn("[dogstats] Giving up on %s: %v", dog, err)
				failed.Add(dog)
				return
			}
			if len(rows) == 0 {
				e.logger.Debug("[dogstats] No history rows for %s", dog)
				failed.Add(dog)
				return
			}

			mu.Lock()
			all = append(all, rows...)
			mu.Unlock()
			e.logger.Debug("[dogstats] %s: %d history rows", dog, len(rows))
		})
	}
	pool.Wait()

	e.logger.Info("[dogstats] Collected %d rows; %d dogs failed", len(all), failed.Size())
	return all, failed.Names()
}

// fetchWithRetry fetches one dog's stats page with bounded retries:
// exponential backoff on rate limiting, user-agent rotation on blocking,
// immediate give-up on a clean not-found.
func (e *Extractor) fetchWithRetry(dog string) ([]*models.DogStatsRow, error) {
	delay := time.Duration(e.cfg.RateLimitMs) * time.Millisecond
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		resp, err := e.client.R().
			SetHeader("User-Agent", e.currentUserAgent()).
			Get(e.statsURL(dog))
		if err != nil {
			lastErr = fmt.Errorf("dogstats: fetch %s: %w", dog, err)
			e.sleep(delay * time.Duration(attempt))
			continue
		}

		switch resp.StatusCode() {
		case http.StatusOK:
			return parseStatsPage(resp.String(), dog)

		case http.StatusNotFound:
			return nil, fmt.Errorf("dogstats: %s not found", dog)

		case http.StatusForbidden:
			e.logger.Warn("[dogstats] 403 for %s (attempt %d/%d) — rotating user agent",
				dog, attempt, e.cfg.MaxRetries)
			e.rotateUserAgent()
			lastErr = fmt.Errorf("dogstats: blocked fetching %s", dog)
			e.sleep(delay * time.Duration(attempt+1))

		case http.StatusTooManyRequests:
			backoff := delay * time.Duration(1<<attempt)
			e.logger.Warn("[dogstats] 429 for %s (attempt %d/%d) — backing off %v",
				dog, attempt, e.cfg.MaxRetries, backoff)
			lastErr = fmt.Errorf("dogstats: rate limited fetching %s", dog)
			e.sleep(backoff)

		default:
			lastErr = fmt.Errorf("dogstats: HTTP %d fetching %s", resp.StatusCode(), dog)
			e.sleep(delay * time.Duration(attempt))
		}
	}

	return nil, lastErr
}

func (e *Extractor) statsURL(dog string) string {
	return fmt.Sprintf("%s?dog=%s&track=&pos=&trap=&grade=&distance=",
		e.cfg.DogStatsURL, url.QueryEscape(dog))
}

func (e *Extractor) currentUserAgent() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return userAgents[e.uaIndex%len(userAgents)]
}

func (e *Extractor) rotateUserAgent() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.uaIndex++
}
