package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// PGStore implements Store using Postgres.
type PGStore struct {
	DB *sql.DB
}

// Start inserts a dispatched run.
func (s *PGStore) Start(ctx context.Context, run Run) error {
	const query = `
INSERT INTO analysis_runs (
	id, session_id, video_id, file_name, content_type, size_bytes, caption_length, model, status, started_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	var captionLength any
	if run.CaptionLength != nil {
		captionLength = *run.CaptionLength
	}
	_, err := s.DB.ExecContext(ctx, query,
		run.ID,
		run.SessionID,
		run.VideoID,
		run.FileName,
		run.ContentType,
		run.SizeBytes,
		captionLength,
		run.Model,
		run.Status,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish records the outcome of a run.
func (s *PGStore) Finish(ctx context.Context, runID string, outcome Outcome) error {
	const query = `
UPDATE analysis_runs
SET status = $2, failure_code = $3, completed_at = $4, duration_ms = $5
WHERE id = $1`
	var failureCode any
	if outcome.FailureCode != "" {
		failureCode = outcome.FailureCode
	}
	res, err := s.DB.ExecContext(ctx, query, runID, outcome.Status, failureCode, outcome.CompletedAt, outcome.DurationMs)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSession returns up to limit runs of one session, newest first.
func (s *PGStore) ListSession(ctx context.Context, sessionID string, limit int) ([]Run, error) {
	const query = `
SELECT id, session_id, video_id, file_name, content_type, size_bytes, caption_length, model,
       status, failure_code, started_at, completed_at, duration_ms
FROM analysis_runs
WHERE session_id = $1
ORDER BY started_at DESC
LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var captionLength sql.NullInt64
		var failureCode sql.NullString
		var completedAt sql.NullTime
		var durationMs sql.NullFloat64
		if err := rows.Scan(
			&r.ID,
			&r.SessionID,
			&r.VideoID,
			&r.FileName,
			&r.ContentType,
			&r.SizeBytes,
			&captionLength,
			&r.Model,
			&r.Status,
			&failureCode,
			&r.StartedAt,
			&completedAt,
			&durationMs,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if captionLength.Valid {
			n := int(captionLength.Int64)
			r.CaptionLength = &n
		}
		if failureCode.Valid {
			code := failureCode.String
			r.FailureCode = &code
		}
		if completedAt.Valid {
			t := completedAt.Time
			r.CompletedAt = &t
		}
		if durationMs.Valid {
			d := durationMs.Float64
			r.DurationMs = &d
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
