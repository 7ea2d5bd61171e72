package ledger

import (
	"errors"
	"time"
)

// Run statuses. Discarded marks a run whose item was removed before it resolved.
const (
	StatusAnalyzing = "analyzing"
	StatusComplete  = "complete"
	StatusError     = "error"
	StatusDiscarded = "discarded"
)

var ErrNotFound = errors.New("run not found")

// Run is one dispatched analysis.
type Run struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"-"`
	VideoID       string     `json:"videoId"`
	FileName      string     `json:"fileName"`
	ContentType   string     `json:"contentType"`
	SizeBytes     int64      `json:"sizeBytes"`
	CaptionLength *int       `json:"captionLength,omitempty"`
	Model         string     `json:"model"`
	Status        string     `json:"status"`
	FailureCode   *string    `json:"failureCode,omitempty"`
	StartedAt     time.Time  `json:"startedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	DurationMs    *float64   `json:"durationMs,omitempty"`
}

// Outcome is applied to a run when it resolves.
type Outcome struct {
	Status      string
	FailureCode string
	CompletedAt time.Time
	DurationMs  float64
}
