package dogstats

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"greyhound-pipeline/config"
	"greyhound-pipeline/utils"
)

const statsPageHTML = `
<html><body>
<table>
  <tr><th>Runs</th><th>Wins</th><th>Win %</th></tr>
  <tr><td>24</td><td>6</td><td>25.0</td></tr>
</table>
<table>
  <tr>
    <th>Date</th><th>Track</th><th>Trap</th><th>Grade</th><th>Distance</th>
    <th>Going</th><th>Runners</th><th>Pos</th><th>Btn</th><th>Time</th>
    <th>SP</th><th>Comment</th>
  </tr>
  <tr>
    <td>14/08/26</td><td>Romford</td><td><img src="./images/trap_2.jpg"></td>
    <td>A3</td><td>480m</td><td>-10</td><td>6</td><td>1</td><td>0</td>
    <td>28.96</td><td>5/2</td><td>EP,Led</td>
  </tr>
  <tr>
    <td>07/08/26</td><td>Hove</td><td><img src="./images/trap_5.jpg"></td>
    <td>A4</td><td>500m</td><td>N</td><td>6</td><td>4</td><td>3.25</td>
    <td>30.12</td><td>7/1</td><td>Crd1</td>
  </tr>
  <tr>
    <td>AVERAGE</td><td></td><td></td><td></td><td></td><td></td><td></td>
    <td></td><td></td><td>29.54</td><td></td><td></td>
  </tr>
</table>
</body></html>`

func TestParseStatsPage(t *testing.T) {
	rows, err := parseStatsPage(statsPageHTML, "Swift Hostage")
	if err != nil {
		t.Fatalf("parseStatsPage: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("rows: got %d, want 2 (AVERAGE row must be skipped)", len(rows))
	}

	first := rows[0]
	if first.DogName != "Swift Hostage" {
		t.Errorf("dog name: got %q", first.DogName)
	}
	if first.Date != "14/08/26" || first.Track != "Romford" {
		t.Errorf("row identity: %+v", first)
	}
	if first.Trap != "2" {
		t.Errorf("trap from image src: got %q, want 2", first.Trap)
	}
	if first.Position != "1" || first.Time != "28.96" {
		t.Errorf("position/time: got %q/%q", first.Position, first.Time)
	}
	if rows[1].Trap != "5" || rows[1].Position != "4" {
		t.Errorf("second row: %+v", rows[1])
	}
}

func TestParseStatsPageNoHistoryTable(t *testing.T) {
	rows, err := parseStatsPage("<html><body><p>No runner found</p></body></html>", "Unknown Dog")
	if err != nil {
		t.Fatalf("parseStatsPage: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows: got %d, want 0", len(rows))
	}
}

func testExtractor(t *testing.T, baseURL string) *Extractor {
	t.Helper()
	cfg := &config.Config{
		DogStatsURL: baseURL,
		MaxWorkers:  2,
		RateLimitMs: 0,
		MaxRetries:  3,
	}
	e := New(cfg, utils.NewLogger())
	e.sleep = func(time.Duration) {}
	return e
}

func TestExtractCollectsRowsAndFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("dog") == "Missing Dog" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, statsPageHTML)
	}))
	defer srv.Close()

	e := testExtractor(t, srv.URL)
	rows, failed := e.Extract([]string{"Swift Hostage", "Missing Dog"})

	if len(rows) != 2 {
		t.Errorf("rows: got %d, want 2", len(rows))
	}
	if len(failed) != 1 || failed[0] != "Missing Dog" {
		t.Errorf("failed dogs: got %v, want [Missing Dog]", failed)
	}
}

func TestExtractRetriesOnRateLimit(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, statsPageHTML)
	}))
	defer srv.Close()

	e := testExtractor(t, srv.URL)
	rows, failed := e.Extract([]string{"Swift Hostage"})

	if len(failed) != 0 {
		t.Fatalf("expected retry to recover, failed: %v", failed)
	}
	if len(rows) != 2 {
		t.Errorf("rows: got %d, want 2", len(rows))
	}
	if atomic.LoadInt64(&hits) != 2 {
		t.Errorf("hits: got %d, want 2", hits)
	}
}

func TestExtractRotatesUserAgentOnForbidden(t *testing.T) {
	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
		if len(agents) == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, statsPageHTML)
	}))
	defer srv.Close()

	e := testExtractor(t, srv.URL)
	e.cfg.MaxWorkers = 1
	_, failed := e.Extract([]string{"Swift Hostage"})

	if len(failed) != 0 {
		t.Fatalf("expected recovery after rotation, failed: %v", failed)
	}
	if len(agents) != 2 || agents[0] == agents[1] {
		t.Errorf("user agent not rotated: %v", agents)
	}
}

func TestExtractGivesUpAfterBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := testExtractor(t, srv.URL)
	rows, failed := e.Extract([]string{"Swift Hostage"})

	if len(rows) != 0 {
		t.Errorf("rows: got %d, want 0", len(rows))
	}
	if len(failed) != 1 {
		t.Errorf("failed: got %v, want 1 dog", failed)
	}
}
