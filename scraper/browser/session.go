package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"greyhound-pipeline/config"
	"greyhound-pipeline/utils"
)

// BustLevel selects how hard CacheBust hits the browser cache.
type BustLevel int

const (
	// BustLight clears session storage only; used between races on the
	// same track where the SPA tends to serve cached card content.
	BustLight BustLevel = iota
	// BustAggressive clears cookies and all web storage and forces a
	// reload that ignores the HTTP cache; used on track switches and when
	// staleness has been detected.
	BustAggressive
)

// Session owns a single headless browser. It is not safe for concurrent
// navigations; the race card extractor drives it sequentially.
type Session struct {
	cfg    *config.Config
	logger *utils.Logger

	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	ctx           context.Context

	cacheBusts int
}

// NewSession launches a headless browser with the configured options. The
// caller must Close the session; Close is safe on every exit path.
func NewSession(cfg *config.Config, logger *utils.Logger) (*Session, error) {
	chromeBin := findChromeBinary(cfg.ChromeBin)
	if chromeBin == "" {
		return nil, fmt.Errorf("browser: no Chrome/Chromium binary found (set CHROME_BIN)")
	}
	logger.Info("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.WindowSize(1366, 768),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.ExecPath(chromeBin),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	// Suppress chromedp log noise
	ctx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	// Start the browser up front so a missing/broken binary fails here
	// rather than on the first navigation.
	startCtx, cancel := context.WithTimeout(ctx, cfg.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("browser: start: %w", err)
	}

	return &Session{
		cfg:           cfg,
		logger:        logger,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
		ctx:           ctx,
	}, nil
}

// Close shuts the browser down and releases the allocator.
func (s *Session) Close() {
	s.cancelBrowser()
	s.cancelAlloc()
}

// Navigate loads url, lets the SPA settle, and optionally waits for
// waitSelector to become visible. A missing selector within the navigation
// timeout is returned as an error so the caller can refresh and retry.
func (s *Session) Navigate(url, waitSelector string) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.NavigationTimeout)
	defer cancel()

	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.Sleep(s.cfg.ContentWait),
	}
	if waitSelector != "" {
		actions = append(actions, chromedp.WaitVisible(waitSelector, chromedp.ByQuery))
	}

	if err := chromedp.Run(ctx, actions...); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

// HTML returns the current document's outer HTML for parsing.
func (s *Session) HTML() (string, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.NavigationTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("browser: read page source: %w", err)
	}
	return html, nil
}

// Refresh reloads the current page without touching caches.
func (s *Session) Refresh() error {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.NavigationTimeout)
	defer cancel()

	if err := chromedp.Run(ctx, chromedp.Reload(), chromedp.Sleep(s.cfg.ContentWait)); err != nil {
		return fmt.Errorf("browser: refresh: %w", err)
	}
	return nil
}

// CacheBust defeats the SPA's client-side caching at the requested level.
// Errors are logged and swallowed: a failed bust leaves the page no worse
// than before and the staleness retry loop handles the rest.
func (s *Session) CacheBust(level BustLevel) {
	s.cacheBusts++

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.NavigationTimeout)
	defer cancel()

	var err error
	switch level {
	case BustAggressive:
		s.logger.Debug("[browser] Aggressive cache bust")
		err = chromedp.Run(ctx,
			network.ClearBrowserCookies(),
			chromedp.Evaluate(`window.localStorage.clear(); window.sessionStorage.clear();`, nil),
			chromedp.ActionFunc(func(ctx context.Context) error {
				return page.Reload().WithIgnoreCache(true).Do(ctx)
			}),
			chromedp.Sleep(4*time.Second),
		)
	default:
		s.logger.Debug("[browser] Light cache bust")
		err = chromedp.Run(ctx,
			chromedp.Evaluate(`window.sessionStorage.clear();`, nil),
			chromedp.Sleep(time.Second),
		)
	}

	if err != nil {
		s.logger.Warn("[browser] Cache bust failed: %v", err)
	}
}

// CacheBusts reports how many busts were performed over the session's life.
func (s *Session) CacheBusts() int {
	return s.cacheBusts
}

// BustURL appends a cache-defeating query parameter to url.
func BustURL(url string) string {
	sep := "?"
	for _, r := range url {
		if r == '?' {
			sep = "&"
			break
		}
	}
	return fmt.Sprintf("%s%st=%d", url, sep, time.Now().Unix())
}

// findChromeBinary locates a Chrome/Chromium binary, preferring the
// configured override.
func findChromeBinary(override string) string {
	if override != "" {
		return override
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
