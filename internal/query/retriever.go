// Package query answers text queries against the store: embed the question,
// search the partitions and present the hits as citable sources and an
// LLM-ready context block.
package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/bunko/internal/embedding"
	"github.com/hyperjump/bunko/internal/models"
	"github.com/hyperjump/bunko/internal/store"
	"github.com/hyperjump/bunko/pkg/utils"
)

// SourceTextLimit is the number of characters of chunk text shown in a Source.
const SourceTextLimit = 200

// Retriever embeds query text and searches a store.
type Retriever struct {
	store    *store.Store
	embedder embedding.Embedder
}

// NewRetriever returns a Retriever over s using embedder for query texts.
func NewRetriever(s *store.Store, embedder embedding.Embedder) *Retriever {
	return &Retriever{store: s, embedder: embedder}
}

// Result holds the raw hits of a query alongside their presentation.
type Result struct {
	Hits     []*models.Hit
	Response *models.QueryResponse
}

// Retrieve embeds text and returns the k nearest chunks across docIDs (all documents when empty).
func (r *Retriever) Retrieve(ctx context.Context, text string, k int, docIDs []string) (*Result, error) {
	start := time.Now()
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	hits, err := r.store.Search(ctx, vec, k, docIDs)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return &Result{
		Hits: hits,
		Response: &models.QueryResponse{
			Query:     text,
			Sources:   Sources(hits),
			Context:   FormatContext(hits),
			QueryTime: time.Since(start).Milliseconds(),
		},
	}, nil
}

// Sources converts hits into citations. Text longer than SourceTextLimit characters
// is cut and suffixed with "...".
func Sources(hits []*models.Hit) []*models.Source {
	out := make([]*models.Source, 0, len(hits))
	for _, h := range hits {
		out = append(out, &models.Source{
			Title:    h.Chunk.Title(),
			DocID:    h.Chunk.DocID(),
			Page:     h.Chunk.Page(),
			Text:     utils.Truncate(h.Chunk.Content, SourceTextLimit),
			Distance: h.Distance,
		})
	}
	return out
}

// FormatContext renders hits as the numbered context block handed to a language model.
func FormatContext(hits []*models.Hit) string {
	var b strings.Builder
	b.WriteString("RELEVANT INFORMATION:\n\n")
	for i, h := range hits {
		title := "Unknown Document"
		if _, ok := h.Chunk.Metadata[models.MetaTitle]; ok {
			title = h.Chunk.Title()
		}
		page := "Unknown"
		if p := h.Chunk.Page(); p > 0 {
			page = strconv.Itoa(p)
		}
		fmt.Fprintf(&b, "[DOCUMENT %d] %s\n", i+1, title)
		fmt.Fprintf(&b, "Page: %s\n", page)
		fmt.Fprintf(&b, "Text: %s\n\n", h.Chunk.Content)
	}
	return b.String()
}
