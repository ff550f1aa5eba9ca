package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/video-gen-service/internal/events"
)

// Schema creates the archive table. Rows are written once and never updated.
const Schema = `
CREATE TABLE IF NOT EXISTS video_jobs (
	video_id       UUID PRIMARY KEY,
	status         TEXT NOT NULL,
	progress       INTEGER NOT NULL,
	video_url      TEXT,
	revised_prompt TEXT,
	error_message  TEXT,
	remote_job_id  TEXT,
	prompt         TEXT NOT NULL,
	resolution     TEXT NOT NULL,
	duration       INTEGER NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	completed_at   TIMESTAMPTZ,
	archived_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const insertJobQuery = `
	INSERT INTO video_jobs (
		video_id, status, progress, video_url, revised_prompt, error_message,
		remote_job_id, prompt, resolution, duration, created_at, completed_at
	) VALUES (
		:video_id, :status, :progress, :video_url, :revised_prompt, :error_message,
		:remote_job_id, :prompt, :resolution, :duration, :created_at, :completed_at
	)
	ON CONFLICT (video_id) DO NOTHING
`

// DB is the subset of *sqlx.DB the storage needs
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
}

// jobRow maps a finished job onto the video_jobs columns
type jobRow struct {
	VideoID       string         `db:"video_id"`
	Status        string         `db:"status"`
	Progress      int            `db:"progress"`
	VideoURL      sql.NullString `db:"video_url"`
	RevisedPrompt sql.NullString `db:"revised_prompt"`
	ErrorMessage  sql.NullString `db:"error_message"`
	RemoteJobID   sql.NullString `db:"remote_job_id"`
	Prompt        string         `db:"prompt"`
	Resolution    string         `db:"resolution"`
	Duration      int            `db:"duration"`
	CreatedAt     time.Time      `db:"created_at"`
	CompletedAt   sql.NullTime   `db:"completed_at"`
}

func newJobRow(ev events.JobFinished) jobRow {
	row := jobRow{
		VideoID:       ev.VideoID,
		Status:        ev.Status,
		Progress:      ev.Progress,
		VideoURL:      nullString(ev.VideoURL),
		RevisedPrompt: nullString(ev.RevisedPrompt),
		ErrorMessage:  nullString(ev.ErrorMessage),
		RemoteJobID:   nullString(ev.RemoteJobID),
		Prompt:        ev.Prompt,
		Resolution:    ev.Resolution,
		Duration:      ev.Duration,
		CreatedAt:     ev.CreatedAt,
	}
	if ev.CompletedAt != nil {
		row.CompletedAt = sql.NullTime{Time: *ev.CompletedAt, Valid: true}
	}
	return row
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Storage handles all database operations for the archive service
type Storage struct {
	db     DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the archive table when it does not exist yet
func (s *Storage) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create video_jobs table: %w", err)
	}
	return nil
}

// SaveJob archives a finished job. Redelivered events are ignored; the
// returned bool reports whether a new row was written.
func (s *Storage) SaveJob(ctx context.Context, ev events.JobFinished) (bool, error) {
	result, err := s.db.NamedExecContext(ctx, insertJobQuery, newJobRow(ev))
	if err != nil {
		return false, fmt.Errorf("failed to insert video job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Info("Video job already archived",
			slog.String("video_id", ev.VideoID),
		)
		return false, nil
	}

	s.logger.Info("Video job archived",
		slog.String("video_id", ev.VideoID),
		slog.String("status", ev.Status),
	)

	return true, nil
}
