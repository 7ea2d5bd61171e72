package export

// RunStyle captures the inline run formatting used in generated documents.
type RunStyle struct {
	Bold   bool
	Italic bool
	// Size is in half-points.
	Size  int
	Color string
}

const (
	BrandColor   = "0EA5E9"
	HashtagColor = "64748B"
	LabelSize    = 24
	TitleSize    = 28
)

// StyleMap centralizes the formatting of report elements.
var StyleMap = map[string]RunStyle{
	"label": {
		Bold: true,
		Size: LabelSize,
	},
	"platform": {
		Bold:  true,
		Color: BrandColor,
	},
	"captionTitle": {
		Bold: true,
		Size: TitleSize,
	},
	"hashtags": {
		Italic: true,
		Color:  HashtagColor,
	},
	"body": {},
}
