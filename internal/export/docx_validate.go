package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

type wmlParagraph struct {
	style     string
	pageBreak bool
	text      string
}

// readParagraphs decodes document.xml into its paragraphs with their text
// unescaped and line breaks restored.
func readParagraphs(document string) ([]wmlParagraph, error) {
	decoder := xml.NewDecoder(strings.NewReader(document))
	var out []wmlParagraph
	var cur *wmlParagraph
	var text strings.Builder
	inText := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document.xml parse failed: %w", err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			switch {
			case isWmlElement(t.Name, "p"):
				if cur != nil {
					return nil, fmt.Errorf("document.xml has nested <w:p>")
				}
				cur = &wmlParagraph{}
				text.Reset()
			case cur == nil:
			case isWmlElement(t.Name, "pStyle"):
				cur.style = wmlVal(t)
			case isWmlElement(t.Name, "pageBreakBefore"):
				cur.pageBreak = true
			case isWmlElement(t.Name, "br"):
				text.WriteByte('\n')
			case isWmlElement(t.Name, "t"):
				inText = true
			}
		case xml.CharData:
			if inText {
				text.Write(t)
			}
		case xml.EndElement:
			switch {
			case isWmlElement(t.Name, "t"):
				inText = false
			case isWmlElement(t.Name, "p") && cur != nil:
				cur.text = text.String()
				out = append(out, *cur)
				cur = nil
			}
		}
	}
	return out, nil
}

// validateOutline checks document.xml against the sections it was built from:
// one Heading1 per completed video in queue order, a page break before every
// heading but the first, and each video's platform lines in caption order.
func validateOutline(document string, secs []section) error {
	paras, err := readParagraphs(document)
	if err != nil {
		return err
	}

	var headings []int
	breaks := 0
	for i, p := range paras {
		if p.style == "Heading1" {
			headings = append(headings, i)
		}
		if p.pageBreak {
			breaks++
			if i+1 >= len(paras) || paras[i+1].style != "Heading1" {
				return fmt.Errorf("page break at paragraph %d is not followed by a video heading", i)
			}
		}
	}
	if len(headings) != len(secs) {
		return fmt.Errorf("document has %d video headings, want %d", len(headings), len(secs))
	}
	if want := len(secs) - 1; breaks != want {
		return fmt.Errorf("document has %d page breaks, want %d", breaks, want)
	}

	for n, start := range headings {
		s := secs[n]
		if got := paras[start].text; got != s.heading {
			return fmt.Errorf("heading %d is %q, want %q", n+1, got, s.heading)
		}
		end := len(paras)
		if n+1 < len(headings) {
			end = headings[n+1]
		}
		next := start + 1
		for _, c := range s.captions {
			want := platformLine(c)
			for next < end && paras[next].text != want {
				next++
			}
			if next == end {
				return fmt.Errorf("%s: caption %q missing or out of order", s.heading, want)
			}
			next++
		}
	}
	return nil
}

func wmlVal(el xml.StartElement) string {
	for _, a := range el.Attr {
		if a.Name.Local == "val" {
			return a.Value
		}
	}
	return ""
}

func isWmlElement(name xml.Name, local string) bool {
	return name.Local == local && name.Space == wmlNamespace
}
