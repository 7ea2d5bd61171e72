package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caption-backend/internal/videos"
)

func TestMemoryStoreKeepsNewestFirstWithinCapacity(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Start(ctx, Run{ID: id, SessionID: "s1", Status: StatusAnalyzing}))
	}

	runs, err := store.ListSession(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	assert.ErrorIs(t, store.Finish(ctx, "a", Outcome{Status: StatusComplete}), ErrNotFound)

	runs, err = store.ListSession(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestObserverRecordsRunLifecycle(t *testing.T) {
	store := NewMemoryStore(10)
	obs := &Observer{Store: store, Model: "gemini-2.5-flash"}
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	item := videos.Item{ID: "v1", FileName: "a.mp4", ContentType: "video/mp4", SizeBytes: 9}
	length := 90

	obs.OnTransition(context.Background(), videos.Transition{
		RunID: "r1", SessionID: "s1", Item: item, From: videos.StatusQueued, To: videos.StatusAnalyzing,
		CaptionLength: &length, At: start,
	})
	obs.OnTransition(context.Background(), videos.Transition{
		RunID: "r1", SessionID: "s1", Item: item, From: videos.StatusAnalyzing, To: videos.StatusError,
		FailureCode: videos.FailureCredential, Duration: 1500 * time.Millisecond, At: start.Add(1500 * time.Millisecond),
	})

	runs, err := store.ListSession(context.Background(), "s1", 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	r := runs[0]
	assert.Equal(t, StatusError, r.Status)
	assert.Equal(t, "gemini-2.5-flash", r.Model)
	require.NotNil(t, r.CaptionLength)
	assert.Equal(t, 90, *r.CaptionLength)
	require.NotNil(t, r.FailureCode)
	assert.Equal(t, videos.FailureCredential, *r.FailureCode)
	require.NotNil(t, r.DurationMs)
	assert.InDelta(t, 1500.0, *r.DurationMs, 0.001)
}

func TestObserverMarksDiscardedRuns(t *testing.T) {
	store := NewMemoryStore(10)
	obs := &Observer{Store: store}
	item := videos.Item{ID: "v1"}

	obs.OnTransition(context.Background(), videos.Transition{RunID: "r1", SessionID: "s1", Item: item, To: videos.StatusAnalyzing})
	obs.OnTransition(context.Background(), videos.Transition{RunID: "r1", SessionID: "s1", Item: item, From: videos.StatusAnalyzing, To: videos.StatusComplete, Discarded: true})

	runs, err := store.ListSession(context.Background(), "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, StatusDiscarded, runs[0].Status)
}

func TestMemoryStoreListsOnlyTheRequestedSession(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()
	require.NoError(t, store.Start(ctx, Run{ID: "mine", SessionID: "s1"}))
	require.NoError(t, store.Start(ctx, Run{ID: "theirs", SessionID: "s2"}))

	runs, err := store.ListSession(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "mine", runs[0].ID)

	runs, err = store.ListSession(ctx, "unknown", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestHandlerListsRunsOfOneSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := NewMemoryStore(10)
	ctx := context.Background()
	require.NoError(t, store.Start(ctx, Run{ID: "r1", SessionID: "sess-mine", FileName: "mine.mp4", Status: StatusAnalyzing}))
	require.NoError(t, store.Start(ctx, Run{ID: "r2", SessionID: "sess-other", FileName: "secret-clip.mp4", Status: StatusAnalyzing}))

	router := gin.New()
	NewHandler(store).RegisterRoutes(router.Group("/api/v1"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/sess-mine/runs?limit=5", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	raw := resp.Body.String()
	assert.NotContains(t, raw, "sess-mine")
	assert.NotContains(t, raw, "sess-other")
	assert.NotContains(t, raw, "secret-clip.mp4")

	var body struct {
		Runs []Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "r1", body.Runs[0].ID)

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/sess-mine/runs?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
