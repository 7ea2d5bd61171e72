package sessions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caption-backend/internal/videos"
)

type idleAnalyzer struct{}

func (idleAnalyzer) Encode(context.Context, videos.Item) (string, error) { return "", nil }

func (idleAnalyzer) Analyze(context.Context, videos.Request) (*videos.AnalysisResult, error) {
	return &videos.AnalysisResult{}, nil
}

type releaseLog struct {
	mu  sync.Mutex
	ids []string
}

func (r *releaseLog) Release(_ context.Context, item videos.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, item.ID)
	return nil
}

func (r *releaseLog) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func newTestManager(ttl time.Duration, released *releaseLog) *Manager {
	return NewManager(Options{
		TTL:         ttl,
		MaxSessions: 10,
		Factory: func(id string) *videos.Engine {
			return videos.NewEngine(id, videos.Config{Source: idleAnalyzer{}, Analyzer: idleAnalyzer{}, Releaser: released})
		},
	})
}

func TestExpiredSessionsReleaseTheirItems(t *testing.T) {
	released := &releaseLog{}
	mgr := newTestManager(50*time.Millisecond, released)
	t.Cleanup(func() { _ = mgr.Close(context.Background()) })

	sess, err := mgr.Create(CreateOptions{})
	require.NoError(t, err)
	require.NoError(t, sess.Engine.Enqueue(videos.Item{ID: "a"}, videos.Item{ID: "b"}))

	require.Eventually(t, func() bool {
		return mgr.Len() == 0 && released.count() == 2
	}, 2*time.Second, 10*time.Millisecond)

	_, err = mgr.Get(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, sess.Engine.Enqueue(videos.Item{ID: "c"}), videos.ErrClosed)
}

func TestCreateAppliesOptions(t *testing.T) {
	mgr := newTestManager(time.Minute, &releaseLog{})
	t.Cleanup(func() { _ = mgr.Close(context.Background()) })

	n := 50
	sess, err := mgr.Create(CreateOptions{CaptionLength: &n, Credential: "k"})
	require.NoError(t, err)
	snap := sess.Engine.Snapshot()
	require.NotNil(t, snap.CaptionLength)
	assert.Equal(t, 50, *snap.CaptionLength)

	got, err := mgr.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)

	zero := 0
	_, err = mgr.Create(CreateOptions{CaptionLength: &zero})
	assert.ErrorIs(t, err, videos.ErrInvalidCaptionLength)
}

func TestCloseEndsEverySession(t *testing.T) {
	released := &releaseLog{}
	mgr := newTestManager(time.Minute, released)

	for i := 0; i < 3; i++ {
		sess, err := mgr.Create(CreateOptions{})
		require.NoError(t, err)
		require.NoError(t, sess.Engine.Enqueue(videos.Item{ID: sess.ID}))
	}
	require.NoError(t, mgr.Close(context.Background()))
	assert.Equal(t, 3, released.count())
	assert.Zero(t, mgr.Len())
	require.NoError(t, mgr.Close(context.Background()))
}
