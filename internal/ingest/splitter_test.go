package ingest

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitter_Split(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
		text          string
		want          []string
	}{
		{"short text is one chunk", 100, 10, "  hello world  ", []string{"hello world"}},
		{"empty", 100, 10, "", nil},
		{"whitespace only", 100, 10, " \n\n  ", nil},
		{"paragraphs first", 5, 0, "aaa\n\nbbb", []string{"aaa", "bbb"}},
		{"word overlap", 10, 4, "one two three four five six", []string{"one two", "two three", "four five", "six"}},
		{"character fallback", 4, 1, "abcdefghij", []string{"abcd", "defg", "ghij"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Splitter{ChunkSize: tt.size, ChunkOverlap: tt.overlap, Separators: DefaultSeparators}
			if got := s.Split(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestSplitter_ChunksRespectSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog. ")
		if i%7 == 0 {
			b.WriteString("\n\n")
		}
		if i%3 == 0 {
			b.WriteString("ÄÖÜ naïve café\n")
		}
	}
	s := NewSplitter(120, 30)
	chunks := s.Split(b.String())
	if len(chunks) < 10 {
		t.Fatalf("expected many chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 120 {
			t.Errorf("chunk %d has %d runes", i, n)
		}
		if strings.TrimSpace(c) != c || c == "" {
			t.Errorf("chunk %d not trimmed: %q", i, c)
		}
	}
}

func TestNewSplitter_Clamps(t *testing.T) {
	s := NewSplitter(0, -5)
	if s.ChunkSize != 1000 || s.ChunkOverlap != 0 {
		t.Errorf("got %+v", s)
	}
	s = NewSplitter(100, 150)
	if s.ChunkOverlap >= s.ChunkSize {
		t.Errorf("overlap not clamped: %+v", s)
	}
}

func TestNormalize(t *testing.T) {
	in := "Title  \r\n\r\n\r\n\r\nFirst line\t\nsecond line\r\rNext para\n\n"
	want := "Title\n\nFirst line\nsecond line\n\nNext para"
	if got := Normalize(in); got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}
