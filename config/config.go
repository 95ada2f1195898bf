package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all pipeline configuration. It is built once at process start
// from environment variables merged with an optional JSON override file and
// is immutable afterwards; components receive it at construction.
type Config struct {
	RacingPostURL string
	DogStatsURL   string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MaxWorkers  int
	RateLimitMs int
	MaxRetries  int

	NavigationTimeout time.Duration
	ContentWait       time.Duration

	// Staleness detection: compare each race's runner set against the
	// most recent StaleHistorySize race-level sets; an overlap ratio above
	// StaleOverlapThreshold marks the page as cached.
	StaleHistorySize      int
	StaleOverlapThreshold float64
	StaleRetryBudget      int
	CacheBustEvery        int

	ChromeBin string
	UserAgent string
	Headless  bool

	DataDir string
	LogsDir string

	TrapAdvantages       map[int]float64
	DefaultTrapAdvantage float64
	TrackDifficulties    map[string]float64
	DefaultDifficulty    float64
	GradeMapping         map[string]float64
	DefaultGradeLevel    float64
	SprintMaxMeters      int
	MiddleMaxMeters      int
	SpeedScoreFallback   float64
}

// overrides mirrors the subset of Config that custom_config.json may change.
type overrides struct {
	TrapAdvantages        map[string]float64 `json:"trap_advantages"`
	TrackDifficulties     map[string]float64 `json:"track_difficulties"`
	GradeMapping          map[string]float64 `json:"grade_mapping"`
	StaleOverlapThreshold *float64           `json:"stale_overlap_threshold"`
	SpeedScoreFallback    *float64           `json:"speed_score_fallback"`
}

// Load reads the .env file, applies defaults, and merges the optional
// config/custom_config.json override file.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		RacingPostURL: getEnv("RACING_POST_URL", "https://greyhoundbet.racingpost.com/"),
		DogStatsURL:   getEnv("DOG_STATS_URL", "https://greyhoundstats.co.uk/complete_runner_stats.php"),

		PostgresHost:     getEnv("POSTGRES_HOST", ""),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "racing"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "racing123"),
		PostgresDB:       getEnv("POSTGRES_DB", "greyhound_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxWorkers:  getEnvInt("MAX_WORKERS", 2),
		RateLimitMs: getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:  getEnvInt("MAX_RETRIES", 3),

		NavigationTimeout: time.Duration(getEnvInt("NAVIGATION_TIMEOUT_SEC", 30)) * time.Second,
		ContentWait:       time.Duration(getEnvInt("CONTENT_WAIT_SEC", 3)) * time.Second,

		StaleHistorySize:      getEnvInt("STALE_HISTORY_SIZE", 6),
		StaleOverlapThreshold: getEnvFloat("STALE_OVERLAP_THRESHOLD", 0.5),
		StaleRetryBudget:      getEnvInt("STALE_RETRY_BUDGET", 2),
		CacheBustEvery:        getEnvInt("CACHE_BUST_EVERY", 8),

		ChromeBin: getEnv("CHROME_BIN", ""),
		UserAgent: getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		Headless: getEnvBool("HEADLESS", true),

		DataDir: getEnv("DATA_DIR", "./data"),
		LogsDir: getEnv("LOGS_DIR", "./logs"),

		TrapAdvantages: map[int]float64{
			1: 0.9, 2: 0.8, 3: 0.7, 4: 0.6, 5: 0.65, 6: 0.7,
		},
		DefaultTrapAdvantage: 0.5,
		TrackDifficulties: map[string]float64{
			"Belle Vue": 0.8,
			"Crayford":  0.7,
			"Hove":      0.9,
			"Romford":   0.6,
		},
		DefaultDifficulty: 0.7,
		GradeMapping: map[string]float64{
			"A": 1, "B": 2, "C": 3, "D": 4, "E": 5, "F": 6,
		},
		DefaultGradeLevel:  6,
		SprintMaxMeters:    300,
		MiddleMaxMeters:    500,
		SpeedScoreFallback: getEnvFloat("SPEED_SCORE_FALLBACK", 0),
	}

	cfg.applyOverrides(getEnv("CUSTOM_CONFIG", "./config/custom_config.json"))
	return cfg
}

func (c *Config) applyOverrides(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var ov overrides
	if err := json.Unmarshal(data, &ov); err != nil {
		log.Printf("[config] Ignoring malformed override file %s: %v", path, err)
		return
	}

	for k, v := range ov.TrackDifficulties {
		c.TrackDifficulties[k] = v
	}
	for k, v := range ov.GradeMapping {
		c.GradeMapping[k] = v
	}
	for k, v := range ov.TrapAdvantages {
		if trap, err := strconv.Atoi(k); err == nil {
			c.TrapAdvantages[trap] = v
		}
	}
	if ov.StaleOverlapThreshold != nil {
		c.StaleOverlapThreshold = *ov.StaleOverlapThreshold
	}
	if ov.SpeedScoreFallback != nil {
		c.SpeedScoreFallback = *ov.SpeedScoreFallback
	}
}

// PostgresEnabled reports whether the optional historical mirror is configured.
func (c *Config) PostgresEnabled() bool {
	return c.PostgresHost != ""
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// EnsureDirs creates the data and log directory tree.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{
		c.RawDir(), c.ResultsDir(), c.ProcessedDir(), c.LogsDir,
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) RawDir() string       { return filepath.Join(c.DataDir, "raw") }
func (c *Config) ResultsDir() string   { return filepath.Join(c.DataDir, "raw", "results") }
func (c *Config) ProcessedDir() string { return filepath.Join(c.DataDir, "processed") }

// RaceCardsPath is the raw race card file for the given date (YYYY-MM-DD).
func (c *Config) RaceCardsPath(date string) string {
	return filepath.Join(c.RawDir(), "race_cards_"+date+".csv")
}

// ResultsPath is the raw historical results file; label is either a single
// date or "start_to_end".
func (c *Config) ResultsPath(label string) string {
	return filepath.Join(c.ResultsDir(), "results_"+label+".csv")
}

// DogStatsPath is the raw dog statistics file for the given date.
func (c *Config) DogStatsPath(date string) string {
	return filepath.Join(c.RawDir(), "dog_stats_"+date+".csv")
}

// DailyModelPath is the daily feature file, overwritten each run.
func (c *Config) DailyModelPath() string {
	return filepath.Join(c.ProcessedDir(), "todays_model.csv")
}

// HistoricalModelPath is the append-and-dedup feature dataset.
func (c *Config) HistoricalModelPath() string {
	return filepath.Join(c.ProcessedDir(), "modeling_ready_dataset_historical.csv")
}

// LogPath is the dated execution log file.
func (c *Config) LogPath(date string) string {
	return filepath.Join(c.LogsDir, "pipeline_"+date+".log")
}

// SummaryPath is the dated summary report file.
func (c *Config) SummaryPath(date string) string {
	return filepath.Join(c.LogsDir, "summary_"+date+".txt")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
