package ledger

import (
	"context"
	"time"

	"caption-backend/internal/shared/telemetry"
	"caption-backend/internal/videos"
)

const writeTimeout = 5 * time.Second

// Observer records engine transitions as runs. Store failures are logged and
// never reach the queue.
type Observer struct {
	Store Store
	Model string
}

// OnTransition implements videos.Observer.
func (o *Observer) OnTransition(ctx context.Context, t videos.Transition) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	var err error
	if t.To == videos.StatusAnalyzing {
		err = o.Store.Start(ctx, Run{
			ID:            t.RunID,
			SessionID:     t.SessionID,
			VideoID:       t.Item.ID,
			FileName:      t.Item.FileName,
			ContentType:   t.Item.ContentType,
			SizeBytes:     t.Item.SizeBytes,
			CaptionLength: t.CaptionLength,
			Model:         o.Model,
			Status:        StatusAnalyzing,
			StartedAt:     t.At,
		})
	} else {
		status := string(t.To)
		if t.Discarded {
			status = StatusDiscarded
		}
		err = o.Store.Finish(ctx, t.RunID, Outcome{
			Status:      status,
			FailureCode: t.FailureCode,
			CompletedAt: t.At,
			DurationMs:  float64(t.Duration.Microseconds()) / 1000.0,
		})
	}
	if err != nil {
		telemetry.Warn("ledger.write_failed", map[string]any{
			"session_id": t.SessionID,
			"video_id":   t.Item.ID,
			"run_id":     t.RunID,
			"status":     t.To,
			"err":        err,
		})
	}
}

var _ videos.Observer = (*Observer)(nil)
