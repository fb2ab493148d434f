// Package ledger stores the ordered chunk list of every document partition.
package ledger

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/bunko/internal/models"
)

// ErrCorruptLedger is returned when a persisted ledger cannot be decoded.
var ErrCorruptLedger = errors.New("corrupt chunk ledger")

// Backend names accepted by New.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

func init() {
	// Metadata values are interface{}; gob needs every concrete type stored in one
	// registered. Basic kinds and their slices are built in.
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
	gob.Register([]map[string]interface{}{})
	gob.Register(map[string]string{})
	gob.Register(map[string]int{})
	gob.Register(map[string]int64{})
	gob.Register(map[string]float64{})
	gob.Register(map[string]bool{})
	gob.Register(map[string][]string{})
	gob.Register(time.Time{})
	gob.Register(time.Duration(0))
}

// Ledger maps a document ID to its ordered chunk list. Position i of a document's
// list corresponds to row i of that document's vector index.
//
// Chunk metadata may hold basic values, time.Time, time.Duration and the maps and
// slices registered in this package. Other concrete types must be registered with
// gob.Register before they are persisted.
type Ledger interface {
	// Put inserts or replaces the chunk list for docID.
	Put(docID string, chunks []models.Chunk)
	// Remove deletes the entry for docID; absent IDs are ignored.
	Remove(docID string)
	Get(docID string) ([]models.Chunk, bool)
	// DocIDs returns all document IDs in ascending order.
	DocIDs() []string
	Len() int
	// Persist writes the ledger to its backing file.
	Persist() error
	// Reload replaces the in-memory ledger with the persisted one. A missing file yields an empty ledger.
	Reload() error
	Close() error
}

// New opens a ledger with the given backend ("file" or "sqlite") at path.
func New(backend, path string) (Ledger, error) {
	switch backend {
	case BackendFile, "":
		return NewFileLedger(path), nil
	case BackendSQLite:
		return NewSQLiteLedger(path)
	default:
		return nil, fmt.Errorf("unknown ledger backend: %s (supported: file, sqlite)", backend)
	}
}

// entries is the in-memory mapping shared by all backends.
type entries struct {
	docs map[string][]models.Chunk
	mu   sync.RWMutex
}

func newEntries() entries {
	return entries{docs: make(map[string][]models.Chunk)}
}

func (e *entries) Put(docID string, chunks []models.Chunk) {
	cp := make([]models.Chunk, len(chunks))
	copy(cp, chunks)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docs[docID] = cp
}

func (e *entries) Remove(docID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.docs, docID)
}

func (e *entries) Get(docID string) ([]models.Chunk, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	chunks, ok := e.docs[docID]
	return chunks, ok
}

func (e *entries) DocIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.docs))
	for id := range e.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *entries) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.docs)
}

func (e *entries) replace(docs map[string][]models.Chunk) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docs = docs
}

func encodeChunks(chunks []models.Chunk) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(chunks); err != nil {
		return nil, fmt.Errorf("encode chunks: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeChunks(data []byte) ([]models.Chunk, error) {
	var chunks []models.Chunk
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&chunks); err != nil {
		return nil, fmt.Errorf("%w: decode chunks: %v", ErrCorruptLedger, err)
	}
	return chunks, nil
}
