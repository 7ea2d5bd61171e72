package ledger

import (
	"context"
	"sync"
)

const defaultMemoryCapacity = 1000

// MemoryStore keeps the most recent runs in memory and is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	byID     map[string]Run
}

// NewMemoryStore constructs a MemoryStore holding at most capacity runs.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity, byID: make(map[string]Run)}
}

// Start records a dispatched run, evicting the oldest when full.
func (s *MemoryStore) Start(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[run.ID]; !ok {
		s.order = append(s.order, run.ID)
	}
	s.byID[run.ID] = run
	for len(s.order) > s.capacity {
		delete(s.byID, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

// Finish applies the outcome of a run.
func (s *MemoryStore) Finish(ctx context.Context, runID string, outcome Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.byID[runID]
	if !ok {
		return ErrNotFound
	}
	run.Status = outcome.Status
	if outcome.FailureCode != "" {
		code := outcome.FailureCode
		run.FailureCode = &code
	}
	completed := outcome.CompletedAt
	run.CompletedAt = &completed
	d := outcome.DurationMs
	run.DurationMs = &d
	s.byID[runID] = run
	return nil
}

// ListSession returns up to limit runs of one session, newest first.
func (s *MemoryStore) ListSession(ctx context.Context, sessionID string, limit int) ([]Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []Run{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Run{}
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		if run := s.byID[s.order[i]]; run.SessionID == sessionID {
			out = append(out, run)
		}
	}
	return out, nil
}
