package videos

import (
	"sort"
	"strings"
	"time"
)

// Status is the lifecycle state of a queued video.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusAnalyzing Status = "analyzing"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
)

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Stage narrows StatusAnalyzing into its two suspension points.
type Stage string

const (
	StageReading    Stage = "reading"
	StageRequesting Stage = "requesting"
)

// FailureReason is the only reason ever shown for a failed analysis.
const FailureReason = "Analysis failed"

// Failure codes are optional diagnostics attached next to FailureReason.
const (
	FailureTimeout           = "timeout"
	FailureCredential        = "credential"
	FailureInvalidResponse   = "invalid_response"
	FailureUpstream          = "upstream"
	FailureSourceUnavailable = "source_unavailable"
	FailureInternal          = "internal"
)

// MaxItems is the most videos a single queue may hold.
const MaxItems = 10

// Preview is a displayable handle for a queued clip.
type Preview struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// SocialCaption is one generated caption for a platform.
type SocialCaption struct {
	Platform  string   `json:"platform"`
	Title     string   `json:"title,omitempty"`
	Body      string   `json:"caption"`
	Hashtags  []string `json:"hashtags"`
	Strategy  string   `json:"strategy"`
	MaxLength *int     `json:"maxLength,omitempty"`
}

// AnalysisResult is the model's answer for one clip. It is never mutated after it is attached.
type AnalysisResult struct {
	Summary         string          `json:"transcriptSummary"`
	Keywords        []string        `json:"keywords"`
	AudienceProfile string          `json:"audienceAnalysis"`
	Captions        []SocialCaption `json:"captions"`
}

// Item is one entry in a session queue.
type Item struct {
	ID            string          `json:"id"`
	FileName      string          `json:"fileName"`
	ContentType   string          `json:"contentType"`
	SizeBytes     int64           `json:"sizeBytes"`
	SourceRef     string          `json:"-"`
	Preview       Preview         `json:"preview"`
	Status        Status          `json:"status"`
	Stage         Stage           `json:"stage,omitempty"`
	Result        *AnalysisResult `json:"result,omitempty"`
	FailureReason string          `json:"failureReason,omitempty"`
	FailureCode   string          `json:"failureCode,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	StartedAt     *time.Time      `json:"startedAt,omitempty"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

// IsBroadcast reports whether a platform belongs to the Facebook or YouTube families.
func IsBroadcast(platform string) bool {
	p := strings.ToLower(platform)
	return strings.Contains(p, "facebook") || strings.Contains(p, "youtube")
}

// OrderCaptions returns a copy with broadcast-style captions first, otherwise preserving order.
func OrderCaptions(captions []SocialCaption) []SocialCaption {
	out := make([]SocialCaption, len(captions))
	copy(out, captions)
	sort.SliceStable(out, func(i, j int) bool {
		return IsBroadcast(out[i].Platform) && !IsBroadcast(out[j].Platform)
	})
	return out
}
