package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"greyhound-pipeline/models"
)

// PostgresWriter mirrors the historical feature dataset into PostgreSQL.
// The table carries a unique constraint on the composite key, so the
// dedup invariant is enforced at the store level: a re-run upserts and
// the latest row wins.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection, runs schema migrations, and
// returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS feature_rows (
			id               SERIAL PRIMARY KEY,
			track            TEXT         NOT NULL,
			race_number      INT          NOT NULL,
			race_time        TEXT         NOT NULL DEFAULT '',
			dog_name         TEXT         NOT NULL,
			run_date         DATE         NOT NULL,
			trap             INT          NOT NULL DEFAULT 0,
			grade            TEXT         NOT NULL DEFAULT '',
			race_size        INT          NOT NULL DEFAULT 0,
			distance_meters  INT,
			distance_category TEXT        NOT NULL DEFAULT 'Unknown',
			grade_level      NUMERIC(4,1) NOT NULL DEFAULT 0,
			grade_score      NUMERIC(5,2) NOT NULL DEFAULT 0,
			win_rate         NUMERIC(5,4),
			place_rate       NUMERIC(5,4),
			total_runs       INT          NOT NULL DEFAULT 0,
			track_difficulty NUMERIC(4,2) NOT NULL DEFAULT 0,
			trap_advantage   NUMERIC(4,2) NOT NULL DEFAULT 0,
			speed_score      NUMERIC(8,4) NOT NULL DEFAULT 0,
			has_dog_stats    BOOLEAN      NOT NULL DEFAULT FALSE,
			has_distance     BOOLEAN      NOT NULL DEFAULT FALSE,
			has_time_data    BOOLEAN      NOT NULL DEFAULT FALSE,
			trap_anomaly     BOOLEAN      NOT NULL DEFAULT FALSE,
			stale            BOOLEAN      NOT NULL DEFAULT FALSE,
			updated_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			UNIQUE (track, race_number, dog_name, run_date)
		);

		CREATE INDEX IF NOT EXISTS idx_feature_rows_run_date ON feature_rows(run_date);
		CREATE INDEX IF NOT EXISTS idx_feature_rows_dog      ON feature_rows(dog_name);
	`)
	return err
}

// Write upserts every feature row; conflicts on the composite key keep
// the incoming (most recent) values.
func (pw *PostgresWriter) Write(rows []*models.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := pw.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO feature_rows (
			track, race_number, race_time, dog_name, run_date, trap, grade,
			race_size, distance_meters, distance_category, grade_level,
			grade_score, win_rate, place_rate, total_runs, track_difficulty,
			trap_advantage, speed_score, has_dog_stats, has_distance,
			has_time_data, trap_anomaly, stale, updated_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,
			$19,$20,$21,$22,$23,NOW()
		)
		ON CONFLICT (track, race_number, dog_name, run_date) DO UPDATE SET
			race_time = EXCLUDED.race_time,
			trap = EXCLUDED.trap,
			grade = EXCLUDED.grade,
			race_size = EXCLUDED.race_size,
			distance_meters = EXCLUDED.distance_meters,
			distance_category = EXCLUDED.distance_category,
			grade_level = EXCLUDED.grade_level,
			grade_score = EXCLUDED.grade_score,
			win_rate = EXCLUDED.win_rate,
			place_rate = EXCLUDED.place_rate,
			total_runs = EXCLUDED.total_runs,
			track_difficulty = EXCLUDED.track_difficulty,
			trap_advantage = EXCLUDED.trap_advantage,
			speed_score = EXCLUDED.speed_score,
			has_dog_stats = EXCLUDED.has_dog_stats,
			has_distance = EXCLUDED.has_distance,
			has_time_data = EXCLUDED.has_time_data,
			trap_anomaly = EXCLUDED.trap_anomaly,
			stale = EXCLUDED.stale,
			updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("postgres: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.Exec(
			r.Track, r.RaceNumber, r.RaceTime, r.DogName, r.RunDate, r.Trap,
			r.Grade, r.RaceSize, nullableInt(r.DistanceMeters),
			r.DistanceCategory, r.GradeLevel, r.GradeScore,
			nullableFloat(r.WinRate), nullableFloat(r.PlaceRate), r.TotalRuns,
			r.TrackDifficulty, r.TrapAdvantage, r.SpeedScore, r.HasDogStats,
			r.HasDistance, r.HasTimeData, r.TrapAnomaly, r.Stale,
		)
		if err != nil {
			return fmt.Errorf("postgres: upsert %s: %w", r.Key(), err)
		}
	}

	return tx.Commit()
}

// Close releases the database handle.
func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
