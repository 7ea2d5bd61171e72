package videos

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"caption-backend/internal/llm"
	"caption-backend/internal/shared/storage/object"
)

// MaxFileSize is the largest clip intake accepts, 15 MiB.
const MaxFileSize = 15 * 1024 * 1024

// LLMAnalyzer reads clips from the object store and analyses them with an llm.Client.
// It serves as both the engine's Source and its Analyzer.
type LLMAnalyzer struct {
	Store object.ObjectStore
	LLM   llm.Client
}

// Encode reads the stored clip and returns it as standard base64.
func (a *LLMAnalyzer) Encode(ctx context.Context, item Item) (string, error) {
	if a.Store == nil {
		return "", fmt.Errorf("%w: no object store", ErrSourceUnavailable)
	}
	body, err := a.Store.Open(ctx, item.SourceRef)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrSourceUnavailable, item.ID, err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrSourceUnavailable, item.ID, err)
	}
	if len(data) > MaxFileSize {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrSourceUnavailable, item.ID, MaxFileSize)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Analyze sends one clip to the model and validates the structured answer.
func (a *LLMAnalyzer) Analyze(ctx context.Context, req Request) (*AnalysisResult, error) {
	if a.LLM == nil {
		return nil, llm.ErrNotConfigured
	}
	raw, err := a.LLM.AnalyzeVideo(ctx, llm.VideoInput{
		Data:          req.Data,
		MimeType:      req.Item.ContentType,
		CaptionLength: req.CaptionLength,
		Credential:    req.Credential,
	})
	if err != nil {
		return nil, fmt.Errorf("llm analyze: %w", err)
	}
	return DecodeResult(raw)
}

type wireCaption struct {
	Platform  *string   `json:"platform"`
	Title     string    `json:"title"`
	Caption   *string   `json:"caption"`
	Hashtags  *[]string `json:"hashtags"`
	Strategy  *string   `json:"strategy"`
	MaxLength *float64  `json:"maxLength"`
}

type wireResult struct {
	TranscriptSummary *string        `json:"transcriptSummary"`
	Keywords          *[]string      `json:"keywords"`
	AudienceAnalysis  *string        `json:"audienceAnalysis"`
	Captions          *[]wireCaption `json:"captions"`
}

// DecodeResult parses the model's JSON and enforces the required fields of the response schema.
func DecodeResult(raw json.RawMessage) (*AnalysisResult, error) {
	var w wireResult
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: parse: %v", ErrInvalidResult, err)
	}
	var missing []string
	if w.TranscriptSummary == nil {
		missing = append(missing, "transcriptSummary")
	}
	if w.Keywords == nil {
		missing = append(missing, "keywords")
	}
	if w.AudienceAnalysis == nil {
		missing = append(missing, "audienceAnalysis")
	}
	if w.Captions == nil {
		missing = append(missing, "captions")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidResult, strings.Join(missing, ", "))
	}

	out := &AnalysisResult{
		Summary:         *w.TranscriptSummary,
		Keywords:        append([]string{}, (*w.Keywords)...),
		AudienceProfile: *w.AudienceAnalysis,
		Captions:        make([]SocialCaption, 0, len(*w.Captions)),
	}
	for i, c := range *w.Captions {
		if c.Platform == nil || c.Caption == nil || c.Hashtags == nil || c.Strategy == nil {
			return nil, fmt.Errorf("%w: caption %d missing required field", ErrInvalidResult, i)
		}
		sc := SocialCaption{
			Platform: *c.Platform,
			Title:    c.Title,
			Body:     *c.Caption,
			Hashtags: append([]string{}, (*c.Hashtags)...),
			Strategy: *c.Strategy,
		}
		if c.MaxLength != nil && *c.MaxLength > 0 && !math.IsInf(*c.MaxLength, 0) {
			n := int(math.Round(*c.MaxLength))
			sc.MaxLength = &n
		}
		out.Captions = append(out.Captions, sc)
	}
	return out, nil
}

// IsInvalidResult reports whether err came from schema validation.
func IsInvalidResult(err error) bool {
	return errors.Is(err, ErrInvalidResult)
}
