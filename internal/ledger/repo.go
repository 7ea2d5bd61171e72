package ledger

import "context"

// Store persists analysis runs.
type Store interface {
	Start(ctx context.Context, run Run) error
	Finish(ctx context.Context, runID string, outcome Outcome) error
	// ListSession returns up to limit runs of one session, newest first.
	ListSession(ctx context.Context, sessionID string, limit int) ([]Run, error)
}
