package videos

import (
	"context"
	"errors"
	"strings"

	"caption-backend/internal/llm"
)

var (
	ErrNotFound              = errors.New("video not found")
	ErrQueueFull             = errors.New("queue is full")
	ErrClosed                = errors.New("queue closed")
	ErrInvalidCaptionLength  = errors.New("caption length must be a positive number")
	ErrInvalidResult         = errors.New("llm output invalid")
	ErrSourceUnavailable     = errors.New("video source unavailable")
	errRemovedBeforeDispatch = errors.New("video removed before request")
)

type credentialError interface {
	IsCredentialError() bool
}

func classifyFailure(err error) string {
	if err == nil {
		return FailureInternal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	if errors.Is(err, llm.ErrMissingCredential) {
		return FailureCredential
	}
	var ce credentialError
	if errors.As(err, &ce) && ce.IsCredentialError() {
		return FailureCredential
	}
	if errors.Is(err, ErrInvalidResult) || errors.Is(err, llm.ErrEmptyResponse) {
		return FailureInvalidResponse
	}
	if errors.Is(err, ErrSourceUnavailable) {
		return FailureSourceUnavailable
	}
	if errors.Is(err, llm.ErrNotConfigured) || strings.HasPrefix(err.Error(), "panic:") {
		return FailureInternal
	}
	return FailureUpstream
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
