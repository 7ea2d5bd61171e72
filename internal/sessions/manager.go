package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/jellydator/ttlcache/v3"

	"caption-backend/internal/shared/metrics"
	"caption-backend/internal/shared/telemetry"
	"caption-backend/internal/videos"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrTooManySessions = errors.New("too many active sessions")
)

const (
	defaultTTL         = 60 * time.Minute
	defaultMaxSessions = 1000
	closeTimeout       = 30 * time.Second
)

// Factory builds the engine for a new session.
type Factory func(sessionID string) *videos.Engine

// Options configure a Manager.
type Options struct {
	TTL         time.Duration
	MaxSessions uint64
	Factory     Factory
}

// CreateOptions seed a new session.
type CreateOptions struct {
	CaptionLength *int
	Credential    string
}

// Session is one user's queue.
type Session struct {
	ID        string
	Engine    *videos.Engine
	CreatedAt time.Time

	// uploadMu serializes intake so count checks see a stable queue length.
	uploadMu  sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (s *Session) close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.Engine.Close(ctx)
		metrics.SessionClosed()
	})
	return s.closeErr
}

// Manager owns every live session and expires idle ones.
type Manager struct {
	cache   *ttlcache.Cache[string, *Session]
	factory Factory
	max     uint64

	createMu  sync.Mutex
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewManager builds a Manager and starts its expiry loop.
func NewManager(opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.MaxSessions == 0 {
		opts.MaxSessions = defaultMaxSessions
	}
	m := &Manager{
		cache: ttlcache.New(
			ttlcache.WithTTL[string, *Session](opts.TTL),
			ttlcache.WithCapacity[string, *Session](opts.MaxSessions),
		),
		factory: opts.Factory,
		max:     opts.MaxSessions,
	}
	m.cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Session]) {
		if reason == ttlcache.EvictionReasonDeleted {
			return
		}
		sess := item.Value()
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.closeSession(sess, evictionName(reason))
		}()
	})
	go m.cache.Start()
	return m
}

// Create opens a new session.
func (m *Manager) Create(opts CreateOptions) (*Session, error) {
	if opts.CaptionLength != nil && *opts.CaptionLength <= 0 {
		return nil, videos.ErrInvalidCaptionLength
	}
	m.createMu.Lock()
	defer m.createMu.Unlock()
	if uint64(m.cache.Len()) >= m.max {
		return nil, ErrTooManySessions
	}

	id := uuid.NewString()
	sess := &Session{ID: id, Engine: m.factory(id), CreatedAt: time.Now().UTC()}
	if err := sess.Engine.SetCaptionLength(opts.CaptionLength); err != nil {
		return nil, err
	}
	sess.Engine.SetCredential(opts.Credential)
	m.cache.Set(id, sess, ttlcache.DefaultTTL)

	metrics.SessionOpened()
	telemetry.Info("session.created", map[string]any{
		"session_id":     id,
		"has_credential": opts.Credential != "",
	})
	return sess, nil
}

// Get returns a live session and extends its lifetime.
func (m *Manager) Get(id string) (*Session, error) {
	item := m.cache.Get(id)
	if item == nil {
		return nil, ErrNotFound
	}
	return item.Value(), nil
}

// End closes a session and releases everything it holds.
func (m *Manager) End(ctx context.Context, id string) error {
	item := m.cache.Get(id)
	if item == nil {
		return ErrNotFound
	}
	m.cache.Delete(id)
	sess := item.Value()
	if err := sess.close(ctx); err != nil {
		return fmt.Errorf("close session %s: %w", id, err)
	}
	telemetry.Info("session.ended", map[string]any{"session_id": id, "reason": "requested"})
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	return m.cache.Len()
}

// Close stops expiry and ends every remaining session.
func (m *Manager) Close(ctx context.Context) error {
	m.closeOnce.Do(m.cache.Stop)
	items := m.cache.Items()
	m.cache.DeleteAll()

	var result *multierror.Error
	for id, item := range items {
		if err := item.Value().close(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("close session %s: %w", id, err))
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		result = multierror.Append(result, ctx.Err())
	}
	return result.ErrorOrNil()
}

func (m *Manager) closeSession(sess *Session, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	fields := map[string]any{"session_id": sess.ID, "reason": reason}
	if err := sess.close(ctx); err != nil {
		fields["err"] = err
		telemetry.Warn("session.close_failed", fields)
		return
	}
	telemetry.Info("session.ended", fields)
}

func evictionName(reason ttlcache.EvictionReason) string {
	switch reason {
	case ttlcache.EvictionReasonExpired:
		return "expired"
	case ttlcache.EvictionReasonCapacityReached:
		return "capacity"
	default:
		return "evicted"
	}
}
