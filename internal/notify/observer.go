package notify

import (
	"context"
	"time"

	"caption-backend/internal/shared/telemetry"
	"caption-backend/internal/videos"
)

const sendTimeout = 5 * time.Second

// Observer publishes terminal transitions of live items.
type Observer struct {
	Client Client
}

// OnTransition implements videos.Observer. Send failures are logged only.
func (o *Observer) OnTransition(ctx context.Context, t videos.Transition) {
	if !t.To.Terminal() || t.Discarded {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	msg := Message{
		RunID:       t.RunID,
		SessionID:   t.SessionID,
		VideoID:     t.Item.ID,
		FileName:    t.Item.FileName,
		Status:      string(t.To),
		FailureCode: t.FailureCode,
		OccurredAt:  t.At.UTC().Format(time.RFC3339),
		Version:     MessageVersion,
	}
	if err := o.Client.Send(ctx, msg); err != nil {
		telemetry.Warn("notify.send_failed", map[string]any{
			"session_id": t.SessionID,
			"video_id":   t.Item.ID,
			"status":     t.To,
			"err":        err,
		})
	}
}

var _ videos.Observer = (*Observer)(nil)
