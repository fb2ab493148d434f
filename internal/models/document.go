// Package models defines core data structures for chunks, documents, and search hits.
package models

import (
	"fmt"
	"strconv"
)

// Metadata keys attached to every ingested chunk.
const (
	MetaDocID   = "doc_id"
	MetaTitle   = "title"
	MetaPage    = "page"
	MetaChunkID = "chunk_id"
	MetaSource  = "source"
)

// Chunk is one retrievable passage. Content is opaque to the store; Metadata is round-tripped as-is.
type Chunk struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Title returns the chunk's title metadata, or "Unknown" when unset.
func (c Chunk) Title() string {
	return metaString(c.Metadata, MetaTitle, "Unknown")
}

// DocID returns the chunk's doc_id metadata, or "Unknown" when unset.
func (c Chunk) DocID() string {
	return metaString(c.Metadata, MetaDocID, "Unknown")
}

// Page returns the source page number, or 0 when unset or not numeric.
func (c Chunk) Page() int {
	v, ok := c.Metadata[MetaPage]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		x, _ := strconv.Atoi(n)
		return x
	default:
		return 0
	}
}

func metaString(m map[string]interface{}, key, fallback string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// ChunkInput is one chunk with its externally computed embedding.
type ChunkInput struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Vector   []float32              `json:"vector"`
}

// DocumentInput is the input for adding a document whose chunks are already embedded.
type DocumentInput struct {
	ID     string       `json:"id"`
	Chunks []ChunkInput `json:"chunks"`
}

// Split returns the chunk list and the parallel vector list.
func (in *DocumentInput) Split() ([]Chunk, [][]float32) {
	chunks := make([]Chunk, len(in.Chunks))
	vectors := make([][]float32, len(in.Chunks))
	for i, c := range in.Chunks {
		chunks[i] = Chunk{Content: c.Content, Metadata: c.Metadata}
		vectors[i] = c.Vector
	}
	return chunks, vectors
}
