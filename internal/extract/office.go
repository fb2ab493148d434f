package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	docxDocumentXMLPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// wtTag matches <w:t>text</w:t> with any attributes.
	wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	// atTag matches <a:t>text</a:t> with any attributes.
	atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	// mainPartRe finds the main document part in either attribute order.
	mainPartRe = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"` +
		`|<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
	slideRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

func openZip(content []byte, format string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return zr, nil
}

// readZipEntry returns the content of the named entry, or nil when absent.
func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return buf.Bytes(), nil
	}
	return nil, nil
}

// joinMatches joins the first non-empty capture group of every match with spaces.
func joinMatches(re *regexp.Regexp, s string) string {
	var b strings.Builder
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		for _, g := range m[1:] {
			if g == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.TrimSpace(g))
			break
		}
	}
	return strings.TrimSpace(b.String())
}

// extractDOCX returns the text of every <w:t> run in the main document part.
// The main part is located through [Content_Types].xml, falling back to word/document.xml.
func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return "", err
	}
	docPath := docxDocumentXMLPath
	if types, err := readZipEntry(zr, contentTypesPath); err == nil && types != nil {
		if m := mainPartRe.FindStringSubmatch(string(types)); m != nil {
			for _, g := range m[1:] {
				if g != "" {
					docPath = strings.TrimPrefix(g, "/")
					break
				}
			}
		}
	}
	docXML, err := readZipEntry(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}
	return joinMatches(wtTag, string(docXML)), nil
}

// extractPPTX returns one Page per slide with text, in slide-number order.
func extractPPTX(content []byte) ([]Page, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return nil, err
	}
	type slide struct {
		num  int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		if m := slideRe.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, slide{num: n, name: f.Name})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var pages []Page
	for _, s := range slides {
		data, err := readZipEntry(zr, s.name)
		if err != nil {
			return nil, fmt.Errorf("extract PPTX: %w", err)
		}
		if text := joinMatches(atTag, string(data)); text != "" {
			pages = append(pages, Page{Number: s.num, Label: fmt.Sprintf("slide %d", s.num), Text: text})
		}
	}
	return pages, nil
}
