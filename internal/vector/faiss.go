//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"unsafe"
)

// FAISS files carry the index tag in a trailer after the native FAISS stream:
// tag (8, little endian) | "BKTG". FAISS reads only its own stream and ignores it.
const (
	faissTagMagic = "BKTG"
	faissTagSize  = 8 + len(faissTagMagic)
)

// FAISSIndex is a write-once FAISS IndexFlatL2. FAISS reports squared L2 distances,
// the same metric as FlatIndex, so results from both types merge consistently.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
	rows       int
	tag        uint64
	mu         sync.RWMutex
}

// faissLastError returns the last FAISS error message.
func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// BuildFAISSIndex creates an IndexFlatL2 holding exactly len(vectors) rows in insertion order.
func BuildFAISSIndex(vectors [][]float32) (*FAISSIndex, error) {
	if len(vectors) == 0 {
		return nil, errors.New("FAISS index needs at least one vector")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: row 0 has zero length", ErrDimensionMismatch)
	}
	flat := make([]float32, 0, len(vectors)*dim)
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d", ErrDimensionMismatch, i, len(vec), dim)
		}
		flat = append(flat, vec...)
	}

	var flatL2 *C.FaissIndexFlatL2
	if ret := C.faiss_IndexFlatL2_new_with(&flatL2, C.idx_t(dim)); ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}
	index := (*C.FaissIndex)(unsafe.Pointer(flatL2))
	ret := C.faiss_Index_add(index, C.idx_t(len(vectors)), (*C.float)(unsafe.Pointer(&flat[0])))
	if ret != 0 {
		C.faiss_Index_free(index)
		return nil, fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}
	return &FAISSIndex{index: index, dimensions: dim, rows: len(vectors)}, nil
}

// LoadFAISSIndex reads an index written by Save.
func LoadFAISSIndex(path string) (*FAISSIndex, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("read index file: %w", err)
	}
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	tag, err := readFAISSTag(path)
	if err != nil {
		return nil, err
	}
	var index *C.FaissIndex
	if ret := C.faiss_read_index_fname(cPath, 0, &index); ret != 0 {
		return nil, fmt.Errorf("%w: %s", ErrCorruptIndex, faissLastError())
	}
	return &FAISSIndex{
		index:      index,
		dimensions: int(C.faiss_Index_d(index)),
		rows:       int(C.faiss_Index_ntotal(index)),
		tag:        tag,
	}, nil
}

func readFAISSTag(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("read index file: %w", err)
	}
	defer f.Close()
	if _, err := f.Seek(-int64(faissTagSize), io.SeekEnd); err != nil {
		return 0, fmt.Errorf("%w: no tag trailer", ErrCorruptIndex)
	}
	trailer := make([]byte, faissTagSize)
	if _, err := io.ReadFull(f, trailer); err != nil {
		return 0, fmt.Errorf("%w: read tag trailer: %v", ErrCorruptIndex, err)
	}
	if string(trailer[8:]) != faissTagMagic {
		return 0, fmt.Errorf("%w: no tag trailer", ErrCorruptIndex)
	}
	return binary.LittleEndian.Uint64(trailer[:8]), nil
}

func appendFAISSTag(path string, tag uint64) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return err
	}
	trailer := make([]byte, 0, faissTagSize)
	trailer = binary.LittleEndian.AppendUint64(trailer, tag)
	trailer = append(trailer, faissTagMagic...)
	if _, err := f.Write(trailer); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Query returns the k nearest rows by squared L2 distance.
func (f *FAISSIndex) Query(query []float32, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}
	if f.rows == 0 {
		return nil, ErrEmptyIndex
	}
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d values, index expects %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.index == nil {
		return nil, errors.New("FAISS index is closed")
	}
	if k > f.rows {
		k = f.rows
	}
	distances := make([]float32, k)
	labels := make([]int64, k)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}
	out := make([]Neighbor, 0, k)
	for i := 0; i < k; i++ {
		if labels[i] < 0 {
			continue
		}
		out = append(out, Neighbor{Row: int(labels[i]), Distance: float64(distances[i])})
	}
	// FAISS does not promise an order among equal distances.
	sortNeighbors(out)
	return out, nil
}

// Save writes the index to path via a temp file and rename.
func (f *FAISSIndex) Save(path string) error {
	if path == "" {
		return fmt.Errorf("save index: empty path")
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.index == nil {
		return errors.New("FAISS index is empty or closed")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := path + ".faiss-tmp"
	cPath := C.CString(tmp)
	defer C.free(unsafe.Pointer(cPath))
	if ret := C.faiss_write_index_fname(f.index, cPath); ret != 0 {
		return fmt.Errorf("failed to save FAISS index: %s", faissLastError())
	}
	if err := appendFAISSTag(tmp, f.tag); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write index tag: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// Len returns the number of rows.
func (f *FAISSIndex) Len() int {
	return f.rows
}

// Dimensions returns the vector length, or 0 for an empty index.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Tag returns the value recorded with the index by NewIndex.
func (f *FAISSIndex) Tag() uint64 {
	return f.tag
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
