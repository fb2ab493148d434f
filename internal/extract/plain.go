package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extractPlain reads text content. Form feeds mark page breaks, the way pdftotext
// and most print pipelines emit them; text without one is a single page 1.
// Invalid UTF-8 sequences are replaced with the replacement character.
func extractPlain(content []byte) ([]Page, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\ufffd")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	if !strings.Contains(text, "\f") {
		return []Page{{Number: 1, Text: text}}, nil
	}
	parts := strings.Split(text, "\f")
	pages := make([]Page, 0, len(parts))
	for i, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		pages = append(pages, Page{Number: i + 1, Text: part})
	}
	if len(pages) == 0 {
		pages = append(pages, Page{Number: 1})
	}
	return pages, nil
}
