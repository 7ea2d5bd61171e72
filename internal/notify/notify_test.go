package notify

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"caption-backend/internal/videos"
)

type recordingClient struct {
	sent []Message
	err  error
}

func (c *recordingClient) Send(_ context.Context, msg Message) error {
	c.sent = append(c.sent, msg)
	return c.err
}

func TestMessageRoundTrip(t *testing.T) {
	msg := Message{
		RunID:       "run-1",
		SessionID:   "sess-1",
		VideoID:     "vid-1",
		FileName:    "clip.mp4",
		Status:      "error",
		FailureCode: "timeout",
		OccurredAt:  "2026-01-30T22:00:00Z",
		Version:     MessageVersion,
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}

	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}

	if !reflect.DeepEqual(got, msg) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestObserverPublishesOnlyLiveTerminalTransitions(t *testing.T) {
	client := &recordingClient{}
	obs := &Observer{Client: client}
	at := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	item := videos.Item{ID: "v1", FileName: "a.mp4"}

	obs.OnTransition(context.Background(), videos.Transition{RunID: "r1", SessionID: "s1", Item: item, To: videos.StatusAnalyzing, At: at})
	obs.OnTransition(context.Background(), videos.Transition{RunID: "r1", SessionID: "s1", Item: item, To: videos.StatusComplete, Discarded: true, At: at})
	obs.OnTransition(context.Background(), videos.Transition{RunID: "r2", SessionID: "s1", Item: item, To: videos.StatusError, FailureCode: videos.FailureUpstream, At: at})

	if len(client.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(client.sent))
	}
	got := client.sent[0]
	if got.Status != "error" || got.FailureCode != videos.FailureUpstream || got.OccurredAt != "2026-05-06T07:08:09Z" {
		t.Fatalf("unexpected message: %+v", got)
	}
	if got.Version != MessageVersion {
		t.Fatalf("expected version %d, got %d", MessageVersion, got.Version)
	}
}

func TestObserverSwallowsSendErrors(t *testing.T) {
	client := &recordingClient{err: errors.New("throttled")}
	obs := &Observer{Client: client}
	obs.OnTransition(context.Background(), videos.Transition{RunID: "r1", Item: videos.Item{ID: "v"}, To: videos.StatusComplete})
	if len(client.sent) != 1 {
		t.Fatalf("expected a send attempt")
	}
}
