package preview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for tokens that were never issued or have been released.
var ErrNotFound = errors.New("preview not found")

// Handle is the displayable reference given out for one stored clip.
type Handle struct {
	Token string
	URL   string
}

// Entry is what a token resolves to.
type Entry struct {
	StorageKey  string
	ContentType string
	AcquiredAt  time.Time
}

// Registry issues and revokes preview tokens.
type Registry struct {
	baseURL string

	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry builds a registry whose URLs are rooted at publicBaseURL.
func NewRegistry(publicBaseURL string) *Registry {
	return &Registry{
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		entries: make(map[string]Entry),
	}
}

// Acquire registers a stored clip and returns its handle.
func (r *Registry) Acquire(ctx context.Context, storageKey, contentType string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	if strings.TrimSpace(storageKey) == "" {
		return Handle{}, errors.New("storage key required")
	}
	token := uuid.NewString()
	r.mu.Lock()
	r.entries[token] = Entry{StorageKey: storageKey, ContentType: contentType, AcquiredAt: time.Now().UTC()}
	r.mu.Unlock()
	return Handle{Token: token, URL: r.baseURL + "/api/v1/previews/" + token}, nil
}

// Release revokes a token. Releasing an unknown token is a no-op.
func (r *Registry) Release(token string) {
	r.mu.Lock()
	delete(r.entries, token)
	r.mu.Unlock()
}

// Resolve returns the entry behind a live token.
func (r *Registry) Resolve(token string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[token]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

// Len reports how many tokens are live.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
