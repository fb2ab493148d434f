package vector

import (
	"fmt"
	"io"
	"os"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeFlat uses the pure Go brute-force index. Exact results, no external dependencies.
	IndexTypeFlat IndexType = "flat"
	// IndexTypeFAISS uses a FAISS IndexFlatL2. Same exact results, faster scans on large partitions.
	// Requires FAISS library and build tag -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// NewIndex builds an index of the specified type over vectors. tag is saved with
// the index and returned by its Tag method after a reload.
// Supported types: "flat" (default), "faiss".
func NewIndex(indexType IndexType, vectors [][]float32, tag uint64) (Index, error) {
	switch indexType {
	case IndexTypeFlat, "":
		idx, err := BuildFlatIndex(vectors)
		if err != nil {
			return nil, err
		}
		idx.tag = tag
		return idx, nil
	case IndexTypeFAISS:
		if len(vectors) == 0 {
			// FAISS cannot hold a zero-dimension index; empty partitions stay flat.
			return &FlatIndex{tag: tag}, nil
		}
		idx, err := BuildFAISSIndex(vectors)
		if err != nil {
			return nil, err
		}
		idx.tag = tag
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat, faiss)", indexType)
	}
}

// OpenIndex loads an index of the specified type from path.
func OpenIndex(indexType IndexType, path string) (Index, error) {
	switch indexType {
	case IndexTypeFlat, "":
		idx, err := LoadFlatIndex(path)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case IndexTypeFAISS:
		if isFlatIndexFile(path) {
			idx, err := LoadFlatIndex(path)
			if err != nil {
				return nil, err
			}
			return idx, nil
		}
		idx, err := LoadFAISSIndex(path)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat, faiss)", indexType)
	}
}

// IsFAISSAvailable returns true if FAISS support is compiled in.
// This is determined by the build tag -tags=faiss.
func IsFAISSAvailable() bool {
	idx, err := BuildFAISSIndex([][]float32{{0}})
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}

// isFlatIndexFile reports whether path starts with the FlatIndex magic.
func isFlatIndexFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	magic := make([]byte, len(flatMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return false
	}
	return string(magic) == flatMagic
}
