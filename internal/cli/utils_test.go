package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/hyperjump/bunko/internal/models"
)

func sampleResponse() *models.QueryResponse {
	return &models.QueryResponse{
		Query:     "notice period",
		QueryTime: 42,
		Sources: []*models.Source{
			{Title: "Lease", DocID: "lease", Page: 3, Text: "Either party may terminate\nwith 30 days notice.", Distance: 0.0123},
			{Title: "Unknown", DocID: "memo", Text: "No page here", Distance: 0.5},
		},
		Context: "RELEVANT INFORMATION:\n\n",
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{" compact ", OutputCompact, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteQueryResults_JSON(t *testing.T) {
	response := sampleResponse()
	var buf bytes.Buffer
	if err := WriteQueryResults(&buf, response, OutputJSON); err != nil {
		t.Fatalf("WriteQueryResults(json): %v", err)
	}
	var decoded models.QueryResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != response.Query || decoded.QueryTime != 42 || len(decoded.Sources) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Sources[0].DocID != "lease" || decoded.Sources[0].Page != 3 {
		t.Errorf("first source = %+v", decoded.Sources[0])
	}
}

func TestWriteQueryResults_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteQueryResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Found 2 results", "42ms", "Distance: 0.0123", "Document: lease", "Title: Lease (p. 3)", "30 days notice", "Title: Unknown\n"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteQueryResults_compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteQueryResults(&buf, sampleResponse(), OutputCompact); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected one line per source, got %q", buf.String())
	}
	if lines[0] != "1. [0.0123] Lease (p. 3): Either party may terminate with 30 days notice." {
		t.Errorf("line 1 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2. [0.5000] Unknown: ") {
		t.Errorf("line 2 = %q", lines[1])
	}
}

func TestWriteQueryResults_unknownFormatTreatedAsText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteQueryResults(&buf, &models.QueryResponse{}, OutputFormat("unknown")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Found 0 results") {
		t.Errorf("unknown format should fall back to text; got %q", buf.String())
	}
}

func TestWriteStatus(t *testing.T) {
	st := &Status{StoreDir: "/data", Documents: 3, Searchable: 2, Chunks: 10, Rows: 8, IndexType: "flat", LedgerBackend: "file", DiskUsageBytes: 2048}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, st, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"/data", "3 (2 searchable)", "Chunks:      10", "2.0 KiB"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("status text missing %q:\n%s", sub, buf.String())
		}
	}
	buf.Reset()
	_ = WriteStatus(&buf, st, OutputCompact)
	if got := buf.String(); got != "documents=3 searchable=2 chunks=10 rows=8 disk=2.0 KiB\n" {
		t.Errorf("compact status = %q", got)
	}
	buf.Reset()
	_ = WriteStatus(&buf, st, OutputJSON)
	var decoded Status
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil || decoded != *st {
		t.Errorf("json status = %+v, %v", decoded, err)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:       "0 B",
		1023:    "1023 B",
		1024:    "1.0 KiB",
		1536:    "1.5 KiB",
		1 << 20: "1.0 MiB",
	}
	for n, want := range tests {
		if got := FormatBytes(n); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"exact", "one two three", 3, "one two three"},
		{"more", "one two three four", 3, "one two three..."},
		{"single long", "word", 1, "word"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateWords(tt.s, tt.maxWords); got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}

func TestPrintQueryResults(t *testing.T) {
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = oldStdout
		_ = w.Close()
	}()
	PrintQueryResults(&models.QueryResponse{QueryTime: 1})
	_ = w.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	if !strings.Contains(buf.String(), "Found 0 results") {
		t.Errorf("PrintQueryResults should write to stdout; got %q", buf.String())
	}
}
