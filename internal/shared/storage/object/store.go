package object

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a storage key has no object behind it.
var ErrNotFound = errors.New("object not found")

// ObjectStore defines the contract for saving and retrieving uploaded videos.
type ObjectStore interface {
	Save(ctx context.Context, namespace string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}

// Presigner is implemented by stores that can hand out time-limited direct download URLs.
type Presigner interface {
	PresignGet(ctx context.Context, storageKey, contentType string, ttl time.Duration) (string, error)
}
