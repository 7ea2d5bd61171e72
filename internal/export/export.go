package export

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"caption-backend/internal/videos"
)

// ErrNothingToExport is returned when no item has a completed analysis.
var ErrNothingToExport = errors.New("no completed analyses to export")

// NothingToExportNotice is the message shown instead of a file.
const NothingToExportNotice = "No completed analyses to export."

const (
	FormatPDF  = "pdf"
	FormatDOCX = "docx"

	PDFFileName  = "virality-report.pdf"
	DOCXFileName = "virality-report.docx"

	PDFContentType  = "application/pdf"
	DOCXContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	DefaultTitle = "Virality Report"
)

// Options tune a report.
type Options struct {
	Title string
	Now   func() time.Time
}

func (o Options) title() string {
	if t := strings.TrimSpace(o.Title); t != "" {
		return t
	}
	return DefaultTitle
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

func generatedOn(t time.Time) string {
	return "Generated on " + t.Format("January 2, 2006")
}

type section struct {
	heading  string
	result   *videos.AnalysisResult
	captions []videos.SocialCaption
}

// sections keeps completed items in queue order and puts broadcast captions first.
func sections(items []videos.Item) ([]section, error) {
	var out []section
	for _, it := range items {
		if it.Status != videos.StatusComplete || it.Result == nil {
			continue
		}
		out = append(out, section{
			result:   it.Result,
			captions: videos.OrderCaptions(it.Result.Captions),
		})
		out[len(out)-1].heading = videoHeading(len(out), it.FileName)
	}
	if len(out) == 0 {
		return nil, ErrNothingToExport
	}
	return out, nil
}

func videoHeading(n int, fileName string) string {
	name := strings.TrimSpace(fileName)
	if name == "" {
		name = "video"
	}
	return "Video " + strconv.Itoa(n) + ": " + name
}

func platformLine(c videos.SocialCaption) string {
	return c.Platform + " (" + c.Strategy + ")"
}
