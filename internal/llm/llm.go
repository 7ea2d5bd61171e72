package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Client abstracts hosted model providers for video analysis.
type Client interface {
	AnalyzeVideo(ctx context.Context, input VideoInput) (json.RawMessage, error)
}

// VideoInput captures everything one analysis call needs.
type VideoInput struct {
	// Data is the clip encoded as standard base64.
	Data     string
	MimeType string
	// CaptionLength is the preferred maximum caption length; nil means no constraint.
	CaptionLength *int
	// Credential is a caller-supplied API key that takes precedence over configured ones.
	Credential string
}

var (
	// ErrNotConfigured is returned by the placeholder client.
	ErrNotConfigured = errors.New("llm provider not configured")
	// ErrMissingCredential is returned before any network I/O when no credential is available.
	ErrMissingCredential = errors.New("gemini api key is missing")
	// ErrEmptyResponse is returned when the model answers without any text.
	ErrEmptyResponse = errors.New("no response text received from model")
)

// PlaceholderClient lets the service run without a provider; every analysis fails.
type PlaceholderClient struct{}

// AnalyzeVideo returns ErrNotConfigured.
func (PlaceholderClient) AnalyzeVideo(context.Context, VideoInput) (json.RawMessage, error) {
	return nil, ErrNotConfigured
}
