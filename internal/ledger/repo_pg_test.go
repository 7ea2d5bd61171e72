package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGStoreStartInsertsRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := &PGStore{DB: db}
	length := 140
	run := Run{
		ID:            "run-1",
		SessionID:     "sess-1",
		VideoID:       "vid-1",
		FileName:      "clip.mp4",
		ContentType:   "video/mp4",
		SizeBytes:     2048,
		CaptionLength: &length,
		Model:         "gemini-2.5-flash",
		Status:        StatusAnalyzing,
		StartedAt:     time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO analysis_runs").
		WithArgs(run.ID, run.SessionID, run.VideoID, run.FileName, run.ContentType, run.SizeBytes, 140, run.Model, run.Status, run.StartedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Start(context.Background(), run); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreFinishReportsMissingRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := &PGStore{DB: db}
	done := time.Now().UTC()

	mock.ExpectExec("UPDATE analysis_runs").
		WithArgs("run-1", StatusError, "timeout", done, 12.5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE analysis_runs").
		WithArgs("run-2", StatusComplete, nil, done, 3.0).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Finish(context.Background(), "run-1", Outcome{Status: StatusError, FailureCode: "timeout", CompletedAt: done, DurationMs: 12.5}); err != nil {
		t.Fatalf("Finish run-1: %v", err)
	}
	err = store.Finish(context.Background(), "run-2", Outcome{Status: StatusComplete, CompletedAt: done, DurationMs: 3})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreListSessionScansNullableColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	started := time.Now().UTC()
	completed := started.Add(2 * time.Second)
	rows := sqlmock.NewRows([]string{
		"id", "session_id", "video_id", "file_name", "content_type", "size_bytes", "caption_length", "model",
		"status", "failure_code", "started_at", "completed_at", "duration_ms",
	}).
		AddRow("run-2", "s", "v2", "b.mp4", "video/mp4", int64(10), nil, "m", StatusAnalyzing, nil, started, nil, nil).
		AddRow("run-1", "s", "v1", "a.mp4", "video/mp4", int64(20), int64(100), "m", StatusError, "upstream", started, completed, 2000.0)

	mock.ExpectQuery("WHERE session_id = \\$1").WithArgs("s", 5).WillReturnRows(rows)

	runs, err := (&PGStore{DB: db}).ListSession(context.Background(), "s", 5)
	if err != nil {
		t.Fatalf("ListSession: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].CaptionLength != nil || runs[0].CompletedAt != nil || runs[0].FailureCode != nil {
		t.Fatalf("expected nullable fields to stay nil: %+v", runs[0])
	}
	if runs[1].CaptionLength == nil || *runs[1].CaptionLength != 100 {
		t.Fatalf("expected caption length 100, got %v", runs[1].CaptionLength)
	}
	if runs[1].FailureCode == nil || *runs[1].FailureCode != "upstream" {
		t.Fatalf("expected failure code upstream, got %v", runs[1].FailureCode)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
