package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"caption-backend/internal/videos"
)

const wmlNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// DOCX renders the completed items as a Word document, one page per video.
func DOCX(items []videos.Item, opts Options) ([]byte, error) {
	secs, err := sections(items)
	if err != nil {
		return nil, err
	}
	now := opts.now()

	var body bytes.Buffer
	writeParagraph(&body, paragraph{pStyle: "Title", align: "center", after: 300, runs: []run{{text: opts.title()}}})
	writeParagraph(&body, paragraph{align: "center", after: 500, runs: []run{{text: generatedOn(now)}}})

	for i, s := range secs {
		writeParagraph(&body, paragraph{pStyle: "Heading1", before: 400, after: 200, borderBottom: true, runs: []run{{text: s.heading}}})

		labelled(&body, "Summary", s.result.Summary)
		labelled(&body, "Target Audience", s.result.AudienceProfile)
		labelled(&body, "Keywords", strings.Join(s.result.Keywords, ", "))

		writeParagraph(&body, paragraph{pStyle: "Heading2", before: 200, after: 200, runs: []run{{text: "Generated Captions"}}})
		for _, c := range s.captions {
			writeParagraph(&body, paragraph{before: 100, after: 100, runs: []run{{text: platformLine(c), style: StyleMap["platform"]}}})
			if strings.TrimSpace(c.Title) != "" {
				writeParagraph(&body, paragraph{after: 100, runs: []run{{text: c.Title, style: StyleMap["captionTitle"]}}})
			}
			writeParagraph(&body, paragraph{after: 100, runs: []run{{text: c.Body, style: StyleMap["body"]}}})
			writeParagraph(&body, paragraph{after: 300, runs: []run{{text: strings.Join(c.Hashtags, " "), style: StyleMap["hashtags"]}}})
		}

		if i < len(secs)-1 {
			writeParagraph(&body, paragraph{pageBreakBefore: true})
		}
	}

	document := documentXML(body.String())
	if err := validateOutline(document, secs); err != nil {
		return nil, err
	}

	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", rootRelsXML},
		{"docProps/core.xml", coreXML(opts.title(), now)},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/styles.xml", stylesXML},
		{"word/document.xml", document},
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, p := range parts {
		header := &zip.FileHeader{Name: p.name, Method: zip.Deflate, Modified: now}
		dst, err := zw.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", p.name, err)
		}
		if _, err := dst.Write([]byte(p.content)); err != nil {
			return nil, fmt.Errorf("write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close docx: %w", err)
	}
	return out.Bytes(), nil
}

func labelled(buf *bytes.Buffer, label, text string) {
	writeParagraph(buf, paragraph{after: 100, runs: []run{{text: label, style: StyleMap["label"]}}})
	writeParagraph(buf, paragraph{after: 300, runs: []run{{text: text}}})
}

type run struct {
	text  string
	style RunStyle
}

type paragraph struct {
	pStyle          string
	align           string
	before, after   int
	borderBottom    bool
	pageBreakBefore bool
	runs            []run
}

func writeParagraph(buf *bytes.Buffer, p paragraph) {
	buf.WriteString("<w:p><w:pPr>")
	if p.pStyle != "" {
		buf.WriteString(`<w:pStyle w:val="` + p.pStyle + `"/>`)
	}
	if p.pageBreakBefore {
		buf.WriteString("<w:pageBreakBefore/>")
	}
	if p.borderBottom {
		buf.WriteString(`<w:pBdr><w:bottom w:val="single" w:sz="6" w:space="1" w:color="E2E8F0"/></w:pBdr>`)
	}
	if p.before > 0 || p.after > 0 {
		buf.WriteString(`<w:spacing w:before="` + strconv.Itoa(p.before) + `" w:after="` + strconv.Itoa(p.after) + `"/>`)
	}
	if p.align != "" {
		buf.WriteString(`<w:jc w:val="` + p.align + `"/>`)
	}
	buf.WriteString("</w:pPr>")
	for _, r := range p.runs {
		writeRun(buf, r)
	}
	buf.WriteString("</w:p>")
}

func writeRun(buf *bytes.Buffer, r run) {
	buf.WriteString("<w:r>")
	s := r.style
	if s.Bold || s.Italic || s.Size > 0 || s.Color != "" {
		buf.WriteString("<w:rPr>")
		if s.Bold {
			buf.WriteString("<w:b/>")
		}
		if s.Italic {
			buf.WriteString("<w:i/>")
		}
		if s.Color != "" {
			buf.WriteString(`<w:color w:val="` + s.Color + `"/>`)
		}
		if s.Size > 0 {
			buf.WriteString(`<w:sz w:val="` + strconv.Itoa(s.Size) + `"/>`)
		}
		buf.WriteString("</w:rPr>")
	}
	lines := strings.Split(strings.ReplaceAll(r.text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if i > 0 {
			buf.WriteString("<w:br/>")
		}
		buf.WriteString(`<w:t xml:space="preserve">`)
		_ = xml.EscapeText(buf, []byte(line))
		buf.WriteString("</w:t>")
	}
	buf.WriteString("</w:r>")
}

func documentXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:document xmlns:w="` + wmlNamespace + `" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
		`<w:body>` + body +
		`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1134" w:right="850" w:bottom="1134" w:left="850" w:header="708" w:footer="708" w:gutter="0"/></w:sectPr>` +
		`</w:body></w:document>`
}

func coreXML(title string, created time.Time) string {
	var t bytes.Buffer
	_ = xml.EscapeText(&t, []byte(title))
	stamp := created.UTC().Format(time.RFC3339)
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:title>` + t.String() + `</dc:title>` +
		`<dcterms:created xsi:type="dcterms:W3CDTF">` + stamp + `</dcterms:created>` +
		`<dcterms:modified xsi:type="dcterms:W3CDTF">` + stamp + `</dcterms:modified>` +
		`</cp:coreProperties>`
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`</Types>`

const rootRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`</Relationships>`

const documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

const stylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri" w:cs="Calibri"/><w:sz w:val="22"/></w:rPr></w:rPrDefault></w:docDefaults>` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/><w:rPr><w:b/><w:color w:val="` + BrandColor + `"/><w:sz w:val="52"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:pPr><w:keepNext/><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:pPr><w:keepNext/><w:outlineLvl w:val="1"/></w:pPr><w:rPr><w:b/><w:sz w:val="28"/></w:rPr></w:style>` +
	`</w:styles>`
