package intake

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"caption-backend/internal/preview"
	"caption-backend/internal/shared/metrics"
	"caption-backend/internal/shared/storage/object"
	"caption-backend/internal/shared/telemetry"
	"caption-backend/internal/shared/util"
	"caption-backend/internal/videos"
)

// Warnings shown to the user. Only the last one raised for a batch is reported.
const (
	WarnTooMany  = "Maximum 10 videos allowed."
	WarnNotVideo = "Some files were skipped (not video)."
	WarnTooLarge = "Some files skipped (too large > 15MB)."
)

// Candidate is one file offered for admission.
type Candidate struct {
	FileName    string
	ContentType string
	SizeBytes   int64
	Body        io.Reader
}

// Batch is the outcome of one Admit call.
type Batch struct {
	Items    []videos.Item
	Warning  string
	Rejected int
}

// Admitter validates candidates, stores accepted ones and acquires their preview handles.
type Admitter struct {
	Store    object.ObjectStore
	Previews *preview.Registry
	// MaxItems and MaxFileSize default to the queue limits.
	MaxItems    int
	MaxFileSize int64
	Now         func() time.Time
}

// Admit runs one batch against a queue that already holds currentCount items.
// Validation problems become the batch warning. The error is reserved for storage
// failures, in which case nothing from the batch stays acquired.
func (a *Admitter) Admit(ctx context.Context, namespace string, currentCount int, candidates []Candidate) (Batch, error) {
	maxItems := a.MaxItems
	if maxItems <= 0 {
		maxItems = videos.MaxItems
	}
	maxSize := a.MaxFileSize
	if maxSize <= 0 {
		maxSize = videos.MaxFileSize
	}
	now := time.Now().UTC()
	if a.Now != nil {
		now = a.Now()
	}

	var batch Batch
	if currentCount+len(candidates) > maxItems {
		batch.Warning = WarnTooMany
		batch.Rejected = len(candidates)
		metrics.AddIntake(0, batch.Rejected)
		telemetry.Info("intake.rejected", map[string]any{
			"session_id":    namespace,
			"current_count": currentCount,
			"batch_size":    len(candidates),
			"warning":       batch.Warning,
		})
		return batch, nil
	}

	for _, cand := range candidates {
		if !isVideo(cand.ContentType) {
			batch.Warning = WarnNotVideo
			batch.Rejected++
			continue
		}
		if cand.SizeBytes > maxSize {
			batch.Warning = WarnTooLarge
			batch.Rejected++
			continue
		}

		item, tooLarge, err := a.acquire(ctx, namespace, cand, maxSize, now)
		if err != nil {
			return Batch{}, a.rollback(ctx, batch.Items, err)
		}
		if tooLarge {
			batch.Warning = WarnTooLarge
			batch.Rejected++
			continue
		}
		batch.Items = append(batch.Items, item)
	}

	metrics.AddIntake(len(batch.Items), batch.Rejected)
	var total int64
	for _, it := range batch.Items {
		total += it.SizeBytes
	}
	telemetry.Info("intake.admitted", map[string]any{
		"session_id": namespace,
		"admitted":   len(batch.Items),
		"rejected":   batch.Rejected,
		"bytes":      humanize.IBytes(uint64(total)),
		"warning":    batch.Warning,
	})
	return batch, nil
}

func (a *Admitter) acquire(ctx context.Context, namespace string, cand Candidate, maxSize int64, now time.Time) (videos.Item, bool, error) {
	display := util.DisplayName(cand.FileName)
	storeName := display
	if _, err := util.SanitizeFileName(storeName); err != nil {
		storeName = "video"
	}

	// The declared size can lie, so the stored size is checked again.
	key, size, _, err := a.Store.Save(ctx, namespace, storeName, io.LimitReader(cand.Body, maxSize+1))
	if err != nil {
		return videos.Item{}, false, fmt.Errorf("save %s: %w", display, err)
	}
	if size > maxSize {
		if err := a.Store.Delete(ctx, key); err != nil {
			return videos.Item{}, false, fmt.Errorf("delete oversized %s: %w", display, err)
		}
		return videos.Item{}, true, nil
	}

	contentType := strings.TrimSpace(cand.ContentType)
	handle, err := a.Previews.Acquire(ctx, key, contentType)
	if err != nil {
		if delErr := a.Store.Delete(ctx, key); delErr != nil {
			err = multierror.Append(err, delErr)
		}
		return videos.Item{}, false, fmt.Errorf("acquire preview %s: %w", display, err)
	}

	return videos.Item{
		ID:          uuid.NewString(),
		FileName:    display,
		ContentType: contentType,
		SizeBytes:   size,
		SourceRef:   key,
		Preview:     videos.Preview{Token: handle.Token, URL: handle.URL},
		Status:      videos.StatusQueued,
		CreatedAt:   now,
	}, false, nil
}

func (a *Admitter) rollback(ctx context.Context, items []videos.Item, cause error) error {
	result := multierror.Append(nil, cause)
	for _, it := range items {
		if err := a.Release(ctx, it); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Release revokes an item's preview handle and deletes its stored bytes.
func (a *Admitter) Release(ctx context.Context, item videos.Item) error {
	if item.Preview.Token != "" {
		a.Previews.Release(item.Preview.Token)
	}
	if item.SourceRef == "" {
		return nil
	}
	if err := a.Store.Delete(ctx, item.SourceRef); err != nil {
		return fmt.Errorf("delete source %s: %w", item.ID, err)
	}
	return nil
}

func isVideo(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "video/")
}

var _ videos.Releaser = (*Admitter)(nil)
