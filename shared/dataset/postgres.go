package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"tutorial-ranker/internal/models"
)

// ErrNoReports is returned by LatestReport when nothing has been stored yet.
var ErrNoReports = errors.New("no ranking reports stored")

// PostgresWriter stores ranking reports in PostgreSQL.
type PostgresWriter struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewPostgresWriter opens the database and pings it.
func NewPostgresWriter(ctx context.Context, connStr string, logger zerolog.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	logger.Info().Msg("connected to PostgreSQL")
	return &PostgresWriter{db: db, logger: logger}, nil
}

// CreateTables creates the report tables if they don't exist.
func (w *PostgresWriter) CreateTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS ranking_runs (
		run_id      UUID         PRIMARY KEY,
		query       TEXT         NOT NULL,
		run_date    TIMESTAMPTZ  NOT NULL,
		status      VARCHAR(32)  NOT NULL,
		collected   INTEGER      NOT NULL DEFAULT 0,
		candidates  INTEGER      NOT NULL DEFAULT 0,
		admitted    INTEGER      NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS ranked_videos (
		run_id          UUID          NOT NULL REFERENCES ranking_runs (run_id) ON DELETE CASCADE,
		rank            INTEGER       NOT NULL,
		video_id        VARCHAR(32)   NOT NULL,
		title           TEXT          NOT NULL,
		video_link      TEXT          NOT NULL,
		predicted_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		duration_min    DOUBLE PRECISION NOT NULL DEFAULT 0,
		summary         TEXT,
		PRIMARY KEY (run_id, rank)
	);

	CREATE INDEX IF NOT EXISTS idx_ranking_runs_date ON ranking_runs (run_date);
	CREATE INDEX IF NOT EXISTS idx_ranked_videos_video ON ranked_videos (video_id);
	`
	if _, err := w.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	w.logger.Debug().Msg("ranking tables are ready")
	return nil
}

// SaveReport inserts a report and its results in one transaction.
func (w *PostgresWriter) SaveReport(ctx context.Context, report *models.RankingReport) (err error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ranking_runs (run_id, query, run_date, status, collected, candidates, admitted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, report.RunID, report.Query, report.Date, report.Status, report.Collected, report.Candidates, report.Admitted)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ranked_videos (run_id, rank, video_id, title, video_link, predicted_score, duration_min, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range report.Results {
		_, err = stmt.ExecContext(ctx, report.RunID, r.Rank, r.VideoID, r.Title, r.Link, r.PredictedScore, r.DurationMinutes, r.Summary)
		if err != nil {
			return fmt.Errorf("failed to insert ranked video %s: %w", r.VideoID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.logger.Info().
		Str("run_id", report.RunID).
		Int("results", len(report.Results)).
		Msg("ranking report stored in PostgreSQL")
	return nil
}

// LatestReport loads the most recent report with its results.
func (w *PostgresWriter) LatestReport(ctx context.Context) (*models.RankingReport, error) {
	report := &models.RankingReport{}
	err := w.db.QueryRowContext(ctx, `
		SELECT run_id, query, run_date, status, collected, candidates, admitted
		FROM ranking_runs
		ORDER BY run_date DESC
		LIMIT 1
	`).Scan(&report.RunID, &report.Query, &report.Date, &report.Status, &report.Collected, &report.Candidates, &report.Admitted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoReports
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}

	rows, err := w.db.QueryContext(ctx, `
		SELECT rank, video_id, title, video_link, predicted_score, duration_min, COALESCE(summary, '')
		FROM ranked_videos
		WHERE run_id = $1
		ORDER BY rank
	`, report.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranked videos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r := &models.RankedResult{}
		if err := rows.Scan(&r.Rank, &r.VideoID, &r.Title, &r.Link, &r.PredictedScore, &r.DurationMinutes, &r.Summary); err != nil {
			return nil, fmt.Errorf("failed to scan ranked video: %w", err)
		}
		report.Results = append(report.Results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ranked videos: %w", err)
	}
	return report, nil
}

// Close closes the database connection.
func (w *PostgresWriter) Close() {
	if w.db != nil {
		_ = w.db.Close()
	}
}
