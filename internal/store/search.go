package store

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/bunko/internal/models"
	"github.com/hyperjump/bunko/internal/vector"
)

// Search returns the k chunks nearest to query across the candidate documents,
// ordered by ascending squared L2 distance, then doc ID, then row.
// Candidates are the IDs in filter when it is non-empty, otherwise every searchable
// document. Documents without a loaded index are skipped, and so is any partition
// whose query fails (no rows, a different dimension, a backend error). Only context
// errors fail the search. An empty store yields an empty result.
func (s *Store) Search(ctx context.Context, query []float32, k int, filter []string) ([]*models.Hit, error) {
	if k <= 0 {
		return []*models.Hit{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type partition struct {
		docID string
		index vector.Index
	}
	var candidates []partition
	if len(filter) > 0 {
		seen := make(map[string]struct{}, len(filter))
		for _, docID := range filter {
			if _, dup := seen[docID]; dup {
				continue
			}
			seen[docID] = struct{}{}
			if idx, ok := s.indices[docID]; ok {
				candidates = append(candidates, partition{docID, idx})
			}
		}
	} else {
		for docID, idx := range s.indices {
			candidates = append(candidates, partition{docID, idx})
		}
	}
	if len(candidates) == 0 {
		return []*models.Hit{}, nil
	}

	results := make([][]*models.Hit, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			neighbors, err := c.index.Query(query, k)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				// Empty partitions, dimension mismatches and backend failures only drop this partition.
				s.logger.Debug("skipping partition", zap.String("doc_id", c.docID), zap.Error(err))
				return nil
			}
			results[i] = s.toHits(c.docID, neighbors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []*models.Hit
	for _, hits := range results {
		merged = append(merged, hits...)
	}
	return MergeHits(merged, k), nil
}

// toHits translates index rows into hits through the ledger. Caller holds s.mu.
func (s *Store) toHits(docID string, neighbors []vector.Neighbor) []*models.Hit {
	chunks, _ := s.ledger.Get(docID)
	hits := make([]*models.Hit, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Row < 0 || n.Row >= len(chunks) {
			continue
		}
		hits = append(hits, &models.Hit{
			Chunk:    chunks[n.Row],
			Distance: n.Distance,
			DocID:    docID,
			Row:      n.Row,
		})
	}
	return hits
}

// MergeHits sorts hits by distance, doc ID and row, and keeps the first k.
// NaN distances sort after all others.
func MergeHits(hits []*models.Hit, k int) []*models.Hit {
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if vector.DistanceLess(a.Distance, b.Distance) {
			return true
		}
		if vector.DistanceLess(b.Distance, a.Distance) {
			return false
		}
		if a.DocID != b.DocID {
			return a.DocID < b.DocID
		}
		return a.Row < b.Row
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	if hits == nil {
		hits = []*models.Hit{}
	}
	return hits
}
