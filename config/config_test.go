package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.MaxWorkers != 2 {
		t.Errorf("MaxWorkers: got %d, want 2", cfg.MaxWorkers)
	}
	if cfg.StaleOverlapThreshold != 0.5 {
		t.Errorf("StaleOverlapThreshold: got %v, want 0.5", cfg.StaleOverlapThreshold)
	}
	if cfg.StaleHistorySize != 6 {
		t.Errorf("StaleHistorySize: got %d, want 6", cfg.StaleHistorySize)
	}
	if cfg.TrapAdvantages[1] != 0.9 {
		t.Errorf("trap 1 advantage: got %v, want 0.9", cfg.TrapAdvantages[1])
	}
	if cfg.GradeMapping["A"] != 1 {
		t.Errorf("grade A: got %v, want 1", cfg.GradeMapping["A"])
	}
	if cfg.PostgresEnabled() {
		t.Error("Postgres must be disabled when POSTGRES_HOST is unset")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MAX_WORKERS", "5")
	t.Setenv("STALE_OVERLAP_THRESHOLD", "0.8")
	t.Setenv("POSTGRES_HOST", "db.internal")

	cfg := Load()
	if cfg.MaxWorkers != 5 {
		t.Errorf("MaxWorkers: got %d, want 5", cfg.MaxWorkers)
	}
	if cfg.StaleOverlapThreshold != 0.8 {
		t.Errorf("StaleOverlapThreshold: got %v, want 0.8", cfg.StaleOverlapThreshold)
	}
	if !cfg.PostgresEnabled() {
		t.Error("Postgres must be enabled when POSTGRES_HOST is set")
	}
	if cfg.DSN() == "" {
		t.Error("DSN must not be empty")
	}
}

func TestCustomConfigOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom_config.json")
	override := `{
		"track_difficulties": {"Monmore": 0.85},
		"trap_advantages": {"1": 0.95},
		"stale_overlap_threshold": 0.6
	}`
	if err := os.WriteFile(path, []byte(override), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CUSTOM_CONFIG", path)

	cfg := Load()
	if cfg.TrackDifficulties["Monmore"] != 0.85 {
		t.Errorf("Monmore difficulty: got %v, want 0.85", cfg.TrackDifficulties["Monmore"])
	}
	// Defaults survive a partial override.
	if cfg.TrackDifficulties["Hove"] != 0.9 {
		t.Errorf("Hove difficulty: got %v, want 0.9", cfg.TrackDifficulties["Hove"])
	}
	if cfg.TrapAdvantages[1] != 0.95 {
		t.Errorf("trap 1: got %v, want 0.95", cfg.TrapAdvantages[1])
	}
	if cfg.StaleOverlapThreshold != 0.6 {
		t.Errorf("threshold: got %v, want 0.6", cfg.StaleOverlapThreshold)
	}
}

func TestMalformedCustomConfigIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom_config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CUSTOM_CONFIG", path)

	cfg := Load()
	if cfg.TrackDifficulties["Hove"] != 0.9 {
		t.Error("defaults must survive a malformed override file")
	}
}

func TestFilePaths(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/gh-data")
	t.Setenv("LOGS_DIR", "/tmp/gh-logs")

	cfg := Load()
	if got := cfg.RaceCardsPath("2026-08-27"); got != "/tmp/gh-data/raw/race_cards_2026-08-27.csv" {
		t.Errorf("race cards path: %q", got)
	}
	if got := cfg.ResultsPath("2026-08-20_to_2026-08-22"); got != "/tmp/gh-data/raw/results/results_2026-08-20_to_2026-08-22.csv" {
		t.Errorf("results path: %q", got)
	}
	if got := cfg.DailyModelPath(); got != "/tmp/gh-data/processed/todays_model.csv" {
		t.Errorf("daily model path: %q", got)
	}
	if got := cfg.SummaryPath("2026-08-27"); got != "/tmp/gh-logs/summary_2026-08-27.txt" {
		t.Errorf("summary path: %q", got)
	}
}
