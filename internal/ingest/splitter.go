package ingest

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order: paragraphs, lines, sentences, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter splits text recursively: it cuts on the first separator present in the
// text, merges the pieces back into chunks of at most ChunkSize characters with up
// to ChunkOverlap characters shared between neighbours, and re-splits any piece that
// is still too long with the next separator. Sizes are counted in runes.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewSplitter returns a splitter with the default separators. An overlap that is
// negative or not smaller than size is clamped.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}
	return &Splitter{ChunkSize: size, ChunkOverlap: overlap, Separators: DefaultSeparators}
}

// Split returns the chunks of text in order. Whitespace-only input yields no chunks.
func (s *Splitter) Split(text string) []string {
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return s.split(text, seps)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var chunks, good []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good)...)
	}
	return chunks
}

// splitKeepingSeparator cuts text on sep and prefixes every piece after the first
// with the separator. Empty pieces are dropped. An empty sep splits into runes.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}

// merge greedily packs pieces into chunks no longer than ChunkSize, carrying
// trailing pieces totalling at most ChunkOverlap into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var (
		chunks  []string
		current []string
		total   int
	)
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > s.ChunkSize && len(current) > 0 {
			if chunk := joinChunk(current); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for len(current) > 0 && (total > s.ChunkOverlap || total+n > s.ChunkSize) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if chunk := joinChunk(current); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func joinChunk(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
