package gemini

import (
	"fmt"
	"strings"
)

const basePrompt = `Analyze this video's audio (transcript) and visual content.
1. Summarize the transcript and key visual moments.
2. Identify high-traffic keywords suitable for social media SEO.
3. Analyze who the ideal audience is.
4. Generate 3 distinct social media captions:
   - One for Facebook/YouTube Description (Engaging/Community based, moderate length).
     * For Facebook/YouTube, also generate a distinct "title" field containing a short, SEO-optimized headline for the video (5-10 words).
   - One for TikTok/Reels (Viral/Hook based, short, punchy).
   - One for Instagram Main Feed (Storytelling/Engagement based).

STRICT FORMATTING RULES:
- Do NOT use emojis in the captions or titles.
- Do NOT use em dashes. Use standard periods (.), commas (,), or hyphens (-) if necessary.
- Write in a natural, casual, human-like tone. Avoid robotic or overly enthusiastic "marketing" language.
- Use standard ASCII punctuation only.`

// BuildPrompt returns the instruction text sent alongside the clip.
func BuildPrompt(captionLength *int) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	if captionLength != nil && *captionLength > 0 {
		fmt.Fprintf(&b, "\nIMPORTANT: Ensure each generated caption is approximately %d characters or less.", *captionLength)
	}
	b.WriteString("\nReturn the result in JSON format.")
	return b.String()
}

type schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*schema `json:"properties,omitempty"`
	Items       *schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

func str(desc string) *schema { return &schema{Type: "STRING", Description: desc} }

// responseSchema is the structured-output contract the model must satisfy.
func responseSchema() *schema {
	return &schema{
		Type: "OBJECT",
		Properties: map[string]*schema{
			"transcriptSummary": str("A summary of the spoken content and visual actions in the video."),
			"keywords": {
				Type:        "ARRAY",
				Items:       &schema{Type: "STRING"},
				Description: "High-traffic keywords relevant to the video content.",
			},
			"audienceAnalysis": str("A brief analysis of the target audience for this content."),
			"captions": {
				Type: "ARRAY",
				Items: &schema{
					Type: "OBJECT",
					Properties: map[string]*schema{
						"platform": str("The social platform (e.g., TikTok, Instagram, Facebook)."),
						"title":    str("A short SEO-optimized title (Required for Facebook/YouTube, optional for others)."),
						"caption":  str("The optimized caption text."),
						"hashtags": {
							Type:        "ARRAY",
							Items:       &schema{Type: "STRING"},
							Description: "5-10 relevant hashtags.",
						},
						"strategy":  str("The strategy used (e.g., Viral/Hook, Educational, Community)."),
						"maxLength": {Type: "NUMBER", Description: "The maximum character length constraint used, if applicable."},
					},
					Required: []string{"platform", "caption", "hashtags", "strategy"},
				},
			},
		},
		Required: []string{"transcriptSummary", "keywords", "captions", "audienceAnalysis"},
	}
}
