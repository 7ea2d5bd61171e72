package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"caption-backend/internal/llm"
	"caption-backend/internal/shared/telemetry"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash"
	temperature    = 0.4
)

var adcScopes = []string{
	"https://www.googleapis.com/auth/generative-language",
	"https://www.googleapis.com/auth/cloud-platform",
}

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// UseADC enables Google Application Default Credentials when no API key is available.
	UseADC      bool
	TokenSource oauth2.TokenSource
	HTTPClient  *http.Client
}

// Client implements llm.Client against the Gemini generateContent REST endpoint.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
}

// APIError is a non-2xx answer from the Gemini API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini status %d", e.StatusCode)
	}
	return fmt.Sprintf("gemini status %d: %s", e.StatusCode, e.Message)
}

// IsCredentialError reports whether the API rejected the credential.
func (e *APIError) IsCredentialError() bool {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return true
	}
	return e.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(e.Message), "api key")
}

// NewClient constructs a Gemini client.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	ts := opts.TokenSource
	if ts == nil && opts.UseADC {
		var err error
		ts, err = google.DefaultTokenSource(ctx, adcScopes...)
		if err != nil {
			return nil, fmt.Errorf("gemini application default credentials: %w", err)
		}
	}

	return &Client{
		apiKey:      strings.TrimSpace(opts.APIKey),
		baseURL:     baseURL,
		model:       model,
		tokenSource: ts,
		httpClient:  httpClient,
	}, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   *schema `json:"responseSchema"`
	Temperature      float64 `json:"temperature"`
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason,omitempty"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

// AnalyzeVideo sends the clip inline with the prompt and returns the model's JSON text.
func (c *Client) AnalyzeVideo(ctx context.Context, input llm.VideoInput) (json.RawMessage, error) {
	authorize, err := c.authorizer(input.Credential)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Data) == "" {
		return nil, errors.New("gemini: empty video payload")
	}

	payload := generateContentRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{MimeType: input.MimeType, Data: input.Data}},
				{Text: BuildPrompt(input.CaptionLength)},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema(),
			Temperature:      temperature,
		},
	}

	var resp generateContentResponse
	if err := c.invoke(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, authorize, &resp); err != nil {
		return nil, err
	}
	c.logUsage(&resp)

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("gemini blocked prompt: %s", resp.PromptFeedback.BlockReason)
	}

	var text strings.Builder
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			text.WriteString(p.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return nil, llm.ErrEmptyResponse
	}
	if !json.Valid([]byte(out)) {
		return nil, fmt.Errorf("gemini response is not valid JSON")
	}
	return json.RawMessage(out), nil
}

type authorizeFunc func(req *http.Request) error

// Precedence: caller credential, configured key, application default credentials.
func (c *Client) authorizer(credential string) (authorizeFunc, error) {
	if key := strings.TrimSpace(credential); key != "" {
		return apiKeyAuth(key), nil
	}
	if c.apiKey != "" {
		return apiKeyAuth(c.apiKey), nil
	}
	if c.tokenSource != nil {
		ts := c.tokenSource
		return func(req *http.Request) error {
			tok, err := ts.Token()
			if err != nil {
				return fmt.Errorf("gemini token: %w", err)
			}
			tok.SetAuthHeader(req)
			return nil
		}, nil
	}
	return nil, llm.ErrMissingCredential
}

func apiKeyAuth(key string) authorizeFunc {
	return func(req *http.Request) error {
		req.Header.Set("x-goog-api-key", key)
		return nil
	}
}

func (c *Client) invoke(ctx context.Context, path string, payload any, authorize authorizeFunc, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := authorize(req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return fmt.Errorf("gemini request timeout: %w", context.DeadlineExceeded)
		}
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read gemini response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope errorResponse
		if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
			apiErr.Message = envelope.Error.Message
			apiErr.Status = envelope.Error.Status
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

func (c *Client) logUsage(resp *generateContentResponse) {
	fields := map[string]any{"model": c.model, "candidates": len(resp.Candidates)}
	if u := resp.UsageMetadata; u != nil {
		fields["prompt_tokens"] = u.PromptTokenCount
		fields["completion_tokens"] = u.CandidatesTokenCount
		fields["total_tokens"] = u.TotalTokenCount
	}
	telemetry.Info("llm.response", fields)
}

var _ llm.Client = (*Client)(nil)
