package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"caption-backend/internal/llm"
)

const okBody = `{
  "candidates": [{"content": {"role": "model", "parts": [{"text": "{\"transcriptSummary\":\"s\",\"keywords\":[],\"audienceAnalysis\":\"a\",\"captions\":[]}"}]}}],
  "usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 5, "totalTokenCount": 15}
}`

type captured struct {
	path   string
	header http.Header
	body   map[string]any
}

func newServer(t *testing.T, status int, body string, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if got != nil {
			got.path = r.URL.Path
			got.header = r.Header.Clone()
			_ = json.Unmarshal(raw, &got.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyzeVideoSendsInlineDataSchemaAndTemperature(t *testing.T) {
	var got captured
	srv := newServer(t, http.StatusOK, okBody, &got)
	client, err := NewClient(context.Background(), Options{APIKey: "server-key", BaseURL: srv.URL})
	require.NoError(t, err)

	length := 280
	raw, err := client.AnalyzeVideo(context.Background(), llm.VideoInput{
		Data:          "AAAA",
		MimeType:      "video/mp4",
		CaptionLength: &length,
	})
	require.NoError(t, err)
	assert.True(t, json.Valid(raw))

	assert.Equal(t, "/models/gemini-2.5-flash:generateContent", got.path)
	assert.Equal(t, "server-key", got.header.Get("x-goog-api-key"))

	contents := got.body["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	inline := parts[0].(map[string]any)["inlineData"].(map[string]any)
	assert.Equal(t, "video/mp4", inline["mimeType"])
	assert.Equal(t, "AAAA", inline["data"])
	prompt := parts[1].(map[string]any)["text"].(string)
	assert.Contains(t, prompt, "approximately 280 characters or less")

	cfg := got.body["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	assert.InDelta(t, 0.4, cfg["temperature"].(float64), 1e-9)
	schema := cfg["responseSchema"].(map[string]any)
	assert.ElementsMatch(t, []any{"transcriptSummary", "keywords", "captions", "audienceAnalysis"}, schema["required"])
}

func TestCallerCredentialTakesPrecedence(t *testing.T) {
	var got captured
	srv := newServer(t, http.StatusOK, okBody, &got)
	client, err := NewClient(context.Background(), Options{APIKey: "server-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.AnalyzeVideo(context.Background(), llm.VideoInput{Data: "AAAA", MimeType: "video/webm", Credential: "user-key"})
	require.NoError(t, err)
	assert.Equal(t, "user-key", got.header.Get("x-goog-api-key"))
}

func TestTokenSourceUsedWithoutAPIKey(t *testing.T) {
	var got captured
	srv := newServer(t, http.StatusOK, okBody, &got)
	client, err := NewClient(context.Background(), Options{
		BaseURL:     srv.URL,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "adc-token", TokenType: "Bearer"}),
	})
	require.NoError(t, err)

	_, err = client.AnalyzeVideo(context.Background(), llm.VideoInput{Data: "AAAA", MimeType: "video/mp4"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer adc-token", got.header.Get("Authorization"))
	assert.Empty(t, got.header.Get("x-goog-api-key"))
}

func TestMissingCredentialFailsWithoutNetwork(t *testing.T) {
	client, err := NewClient(context.Background(), Options{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = client.AnalyzeVideo(context.Background(), llm.VideoInput{Data: "AAAA", MimeType: "video/mp4"})
	assert.ErrorIs(t, err, llm.ErrMissingCredential)
}

func TestAPIErrorEnvelope(t *testing.T) {
	srv := newServer(t, http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`, nil)
	client, err := NewClient(context.Background(), Options{APIKey: "bad", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.AnalyzeVideo(context.Background(), llm.VideoInput{Data: "AAAA", MimeType: "video/mp4"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.True(t, apiErr.IsCredentialError())
}

func TestEmptyAndNonJSONResponses(t *testing.T) {
	empty := newServer(t, http.StatusOK, `{"candidates":[]}`, nil)
	client, err := NewClient(context.Background(), Options{APIKey: "k", BaseURL: empty.URL})
	require.NoError(t, err)
	_, err = client.AnalyzeVideo(context.Background(), llm.VideoInput{Data: "AAAA", MimeType: "video/mp4"})
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)

	prose := newServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"sorry, no"}]}}]}`, nil)
	client, err = NewClient(context.Background(), Options{APIKey: "k", BaseURL: prose.URL})
	require.NoError(t, err)
	_, err = client.AnalyzeVideo(context.Background(), llm.VideoInput{Data: "AAAA", MimeType: "video/mp4"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not valid JSON"))
}

func TestBuildPromptOmitsLengthWhenUnset(t *testing.T) {
	p := BuildPrompt(nil)
	assert.NotContains(t, p, "characters or less")
	assert.True(t, strings.HasSuffix(p, "Return the result in JSON format."))
}
