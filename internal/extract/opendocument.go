package extract

import (
	"fmt"
	"regexp"
	"strings"
)

const openDocumentContentPath = "content.xml"

// odfText matches text:p, text:h and text:span elements that hold plain text, in document order.
var odfText = regexp.MustCompile(`<text:(?:p|h|span)(?:\s[^>]*)?>([^<]*)</text:(?:p|h|span)>`)

// extractOpenDocument returns the text of an .odp or .ods file's content.xml.
func extractOpenDocument(content []byte, ext string) (string, error) {
	format := strings.ToUpper(strings.TrimPrefix(ext, "."))
	zr, err := openZip(content, format)
	if err != nil {
		return "", err
	}
	data, err := readZipEntry(zr, openDocumentContentPath)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", format, err)
	}
	if data == nil {
		return "", fmt.Errorf("extract %s: %s not found", format, openDocumentContentPath)
	}
	return joinMatches(odfText, string(data)), nil
}
