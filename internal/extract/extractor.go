// Package extract turns document files into page-numbered plain text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Page is the text of one page of a source document. Number is 1-based; formats
// without pages (DOCX, OpenDocument, plain text without form feeds) yield a single page 1. Label names
// the page where the format has one (sheet name, slide file).
type Page struct {
	Number int    `json:"page"`
	Label  string `json:"label,omitempty"`
	Text   string `json:"text"`
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// SupportedExtensions lists the extensions with a dedicated decoder. Anything else is read as plain text.
var SupportedExtensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".pptx", ".odp", ".ods"}

// ExtractPages reads the file at path and returns its pages in order.
func (e *Extractor) ExtractPages(path string) ([]Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractPagesBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractPagesBytes extracts pages from content based on ext, which includes the leading dot.
// Pages with no text after trimming are dropped, except that plain text always yields one page.
func (e *Extractor) ExtractPagesBytes(content []byte, ext string) ([]Page, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".xlsx":
		return extractExcel(content)
	case ".pptx":
		return extractPPTX(content)
	case ".docx":
		return singlePage(extractDOCX(content))
	case ".odp", ".ods":
		return singlePage(extractOpenDocument(content, ext))
	default:
		// .txt, .md, .rst and unknown extensions
		return extractPlain(content)
	}
}

// Extract returns the whole text of the file at path, pages separated by blank lines.
func (e *Extractor) Extract(path string) (string, error) {
	pages, err := e.ExtractPages(path)
	if err != nil {
		return "", err
	}
	return JoinPages(pages), nil
}

// ExtractBytes is Extract for in-memory content.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	pages, err := e.ExtractPagesBytes(content, ext)
	if err != nil {
		return "", err
	}
	return JoinPages(pages), nil
}

// JoinPages concatenates page texts with a blank line between pages.
func JoinPages(pages []Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n\n")
}

func singlePage(text string, err error) ([]Page, error) {
	if err != nil {
		return nil, err
	}
	return []Page{{Number: 1, Text: text}}, nil
}
