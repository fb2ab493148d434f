//go:build !faiss || !cgo
// +build !faiss !cgo

package vector

import "fmt"

// FAISSIndex is a stub that returns an error when FAISS is not available.
// Build with -tags=faiss to enable FAISS support.
type FAISSIndex struct {
	tag uint64
}

var errFAISSUnavailable = fmt.Errorf("FAISS not available: build with -tags=faiss and install FAISS library")

// BuildFAISSIndex returns an error because FAISS is not available.
func BuildFAISSIndex(vectors [][]float32) (*FAISSIndex, error) {
	return nil, errFAISSUnavailable
}

// LoadFAISSIndex returns an error because FAISS is not available.
func LoadFAISSIndex(path string) (*FAISSIndex, error) {
	return nil, errFAISSUnavailable
}

// Query is not implemented without FAISS.
func (f *FAISSIndex) Query(query []float32, k int) ([]Neighbor, error) {
	return nil, errFAISSUnavailable
}

// Save is not implemented without FAISS.
func (f *FAISSIndex) Save(path string) error {
	return errFAISSUnavailable
}

// Len returns 0 without FAISS.
func (f *FAISSIndex) Len() int {
	return 0
}

// Dimensions returns 0 without FAISS.
func (f *FAISSIndex) Dimensions() int {
	return 0
}

// Tag returns the value recorded with the index.
func (f *FAISSIndex) Tag() uint64 {
	return f.tag
}

// Close is a no-op without FAISS.
func (f *FAISSIndex) Close() error {
	return nil
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
