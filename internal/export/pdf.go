package export

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"caption-backend/internal/videos"
)

const (
	pdfMargin = 15.0
	pdfTop    = 20.0
	pdfFont   = "DejaVu"
)

var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	fontRegular []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	fontBold []byte
)

type rgb struct{ r, g, b int }

var (
	brandColor = rgb{14, 165, 233}
	mutedColor = rgb{100, 100, 100}
	bodyColor  = rgb{0, 0, 0}
	labelColor = rgb{50, 50, 50}
)

// PDF renders the completed items as a paginated report.
func PDF(items []videos.Item, opts Options) ([]byte, error) {
	secs, err := sections(items)
	if err != nil {
		return nil, err
	}
	now := opts.now()

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pdfMargin, pdfTop, pdfMargin)
	doc.SetAutoPageBreak(true, pdfMargin)
	doc.SetCreationDate(now)
	doc.SetTitle(opts.title(), true)
	doc.AddUTF8FontFromBytes(pdfFont, "", fontRegular)
	doc.AddUTF8FontFromBytes(pdfFont, "B", fontBold)
	w := &pdfWriter{doc: doc}

	doc.AddPage()
	w.text(opts.title(), "", 22, brandColor, 10)
	w.text(generatedOn(now), "", 10, mutedColor, 15)

	for _, s := range secs {
		w.ensure(40)
		pageW, _ := doc.GetPageSize()
		doc.SetDrawColor(200, 200, 200)
		y := doc.GetY()
		doc.Line(pdfMargin, y, pageW-pdfMargin, y)
		doc.Ln(10)

		w.text(s.heading, "", 16, bodyColor, 8)

		w.text("Summary", "B", 12, labelColor, 6)
		w.wrapped(s.result.Summary, 0, 10, labelColor, 6)

		w.text("Target Audience & Keywords", "B", 12, labelColor, 6)
		w.wrapped("Audience: "+s.result.AudienceProfile, 0, 10, labelColor, 4)
		w.wrapped("Keywords: "+strings.Join(s.result.Keywords, ", "), 0, 10, labelColor, 8)

		w.text("Generated Captions", "B", 12, labelColor, 8)
		for _, c := range s.captions {
			w.ensure(60)
			w.text(platformLine(c), "B", 11, brandColor, 6)
			if strings.TrimSpace(c.Title) != "" {
				w.wrappedStyle(c.Title, "B", 2, 11, bodyColor, 2)
			}
			w.wrapped(c.Body, 2, 10, bodyColor, 4)
			w.wrapped(strings.Join(c.Hashtags, " "), 2, 9, mutedColor, 8)
		}
		doc.Ln(5)
	}

	if err := doc.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfWriter struct {
	doc *fpdf.Fpdf
}

// pdfText drops runes outside the Basic Multilingual Plane, which the
// embedded font tables cannot index.
func pdfText(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xFFFF {
			return -1
		}
		return r
	}, s)
}

func (w *pdfWriter) ensure(height float64) {
	_, pageH := w.doc.GetPageSize()
	if w.doc.GetY()+height > pageH-pdfMargin {
		w.doc.AddPage()
	}
}

func (w *pdfWriter) text(s, style string, size float64, c rgb, advance float64) {
	w.doc.SetFont(pdfFont, style, size)
	w.doc.SetTextColor(c.r, c.g, c.b)
	w.doc.SetX(pdfMargin)
	w.doc.CellFormat(0, advance, pdfText(s), "", 1, "L", false, 0, "")
}

func (w *pdfWriter) wrapped(s string, indent, size float64, c rgb, after float64) {
	w.wrappedStyle(s, "", indent, size, c, after)
}

func (w *pdfWriter) wrappedStyle(s, style string, indent, size float64, c rgb, after float64) {
	w.doc.SetFont(pdfFont, style, size)
	w.doc.SetTextColor(c.r, c.g, c.b)
	w.doc.SetX(pdfMargin + indent)
	w.doc.MultiCell(0, 5, pdfText(s), "", "L", false)
	w.doc.Ln(after)
}
