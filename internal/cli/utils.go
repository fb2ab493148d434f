// Package cli renders bunko command output.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/bunko/internal/models"
	"github.com/hyperjump/bunko/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one line per result.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value. Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return OutputText, nil
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text, compact or json)", s)
	}
}

// WriteQueryResults writes the sources of a query response to w in the given format.
func WriteQueryResults(w io.Writer, response *models.QueryResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for i, src := range response.Sources {
			fmt.Fprintf(w, "%d. [%.4f] %s%s: %s\n", i+1, src.Distance, src.Title, pageSuffix(src.Page),
				TruncateWords(oneLine(src.Text), 20))
		}
		return nil
	default:
		writeQueryResultsText(w, response)
		return nil
	}
}

func writeQueryResultsText(w io.Writer, response *models.QueryResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms\n\n", len(response.Sources), response.QueryTime)
	for i, src := range response.Sources {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "[%d] Distance: %.4f\n", i+1, src.Distance)
		fmt.Fprintf(w, "Document: %s\n", src.DocID)
		fmt.Fprintf(w, "Title: %s%s\n", src.Title, pageSuffix(src.Page))
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(src.Text, 200))
	}
}

// PrintQueryResults prints a query response to stdout as text.
func PrintQueryResults(response *models.QueryResponse) {
	_ = WriteQueryResults(os.Stdout, response, OutputText)
}

// Status is the summary printed by the status command.
type Status struct {
	StoreDir       string `json:"store_dir"`
	Documents      int    `json:"documents"`
	Searchable     int    `json:"searchable"`
	Chunks         int    `json:"chunks"`
	Rows           int    `json:"rows"`
	IndexType      string `json:"index_type"`
	LedgerBackend  string `json:"ledger_backend"`
	DiskUsageBytes int64  `json:"disk_usage_bytes"`
}

// WriteStatus writes st to w in the given format.
func WriteStatus(w io.Writer, st *Status, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, st)
	case OutputCompact:
		fmt.Fprintf(w, "documents=%d searchable=%d chunks=%d rows=%d disk=%s\n",
			st.Documents, st.Searchable, st.Chunks, st.Rows, FormatBytes(st.DiskUsageBytes))
		return nil
	default:
		fmt.Fprintf(w, "Store:       %s\n", st.StoreDir)
		fmt.Fprintf(w, "Documents:   %d (%d searchable)\n", st.Documents, st.Searchable)
		fmt.Fprintf(w, "Chunks:      %d\n", st.Chunks)
		fmt.Fprintf(w, "Index rows:  %d\n", st.Rows)
		fmt.Fprintf(w, "Index type:  %s\n", st.IndexType)
		fmt.Fprintf(w, "Ledger:      %s\n", st.LedgerBackend)
		fmt.Fprintf(w, "Disk usage:  %s\n", FormatBytes(st.DiskUsageBytes))
		return nil
	}
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func pageSuffix(page int) string {
	if page <= 0 {
		return ""
	}
	return fmt.Sprintf(" (p. %d)", page)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
