// Package vector provides per-document exact nearest-neighbor indices.
package vector

import "errors"

var (
	// ErrDimensionMismatch is returned when vectors in one index, or a query and an index, disagree in length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyIndex is returned when a query asks for neighbors from an index with no rows.
	ErrEmptyIndex = errors.New("vector index is empty")
	// ErrCorruptIndex is returned when an index file was not produced by Save or does not match its header.
	ErrCorruptIndex = errors.New("corrupt vector index")
)

// Index is a write-once vector index over one document's vectors.
// Row i is the i-th vector passed at construction; rows are never reordered.
type Index interface {
	// Query returns at most min(k, Len()) neighbors ordered by ascending squared L2 distance,
	// ties broken by ascending row.
	Query(query []float32, k int) ([]Neighbor, error)
	Save(path string) error
	Len() int
	Dimensions() int
	// Tag is an opaque value stored in the index file alongside the rows. The store
	// records a digest of the document's chunk list here.
	Tag() uint64
	Type() string
	Close() error
}

// Neighbor is a single nearest-neighbor hit within one index.
type Neighbor struct {
	Row      int
	Distance float64 // squared Euclidean distance, no square root
}
