// Package store implements the document-partitioned vector store: one write-once
// vector index per document, a chunk ledger mapping rows back to chunks, and an
// exact merged top-k search across partitions.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/bunko/internal/ledger"
	"github.com/hyperjump/bunko/internal/models"
	"github.com/hyperjump/bunko/internal/vector"
	"github.com/hyperjump/bunko/pkg/utils"
)

var (
	// ErrChunkCountMismatch is returned when a document's chunk and vector counts differ.
	ErrChunkCountMismatch = errors.New("chunk count does not match vector count")
	// ErrInvalidDocID is returned for IDs that cannot be used as an index file name.
	ErrInvalidDocID = errors.New("invalid document id")
)

const (
	// IndexExt is the file extension of per-document index files.
	IndexExt          = ".index"
	DefaultLedgerFile = "chunks.ledger"
)

// Store is a directory of per-document indices plus the chunk ledger.
// All methods are safe for concurrent use.
type Store struct {
	dir         string
	indexType   vector.IndexType
	ledger      ledger.Ledger
	indices     map[string]vector.Index
	parallelism int
	logger      *zap.Logger
	mu          sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for boot inconsistencies and skipped partitions.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIndexType selects the index implementation used for new documents.
func WithIndexType(t vector.IndexType) Option {
	return func(s *Store) {
		if t != "" {
			s.indexType = t
		}
	}
}

// WithLedger replaces the default file ledger.
func WithLedger(l ledger.Ledger) Option {
	return func(s *Store) {
		s.ledger = l
	}
}

// WithParallelism bounds the number of partitions queried concurrently. n <= 0 means GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(s *Store) {
		s.parallelism = n
	}
}

// Open loads the store rooted at dir, creating the directory if needed.
// A ledger that cannot be decoded is fatal; a missing or unreadable index only
// degrades its document to listed-but-unsearchable.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	s := &Store{
		dir:       dir,
		indexType: vector.IndexTypeFlat,
		indices:   make(map[string]vector.Index),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parallelism <= 0 {
		s.parallelism = runtime.GOMAXPROCS(0)
	}
	if s.ledger == nil {
		s.ledger = ledger.NewFileLedger(filepath.Join(dir, DefaultLedgerFile))
	}
	if err := s.ledger.Reload(); err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	s.loadIndices()
	s.removeStrayFiles()
	return s, nil
}

func (s *Store) loadIndices() {
	for _, docID := range s.ledger.DocIDs() {
		chunks, _ := s.ledger.Get(docID)
		idx, err := vector.OpenIndex(s.indexType, s.indexPath(docID))
		if err != nil {
			s.logger.Warn("document index unavailable, document is not searchable",
				zap.String("doc_id", docID), zap.Error(err))
			continue
		}
		if idx.Len() != len(chunks) {
			s.logger.Warn("document index row count disagrees with ledger, document is not searchable",
				zap.String("doc_id", docID), zap.Int("rows", idx.Len()), zap.Int("chunks", len(chunks)))
			_ = idx.Close()
			continue
		}
		if idx.Tag() != chunkDigest(chunks) {
			s.logger.Warn("document index was built for a different chunk list, document is not searchable",
				zap.String("doc_id", docID), zap.Int("rows", idx.Len()))
			_ = idx.Close()
			continue
		}
		s.indices[docID] = idx
	}
}

// removeStrayFiles deletes index files with no ledger entry and leftover temp files.
func (s *Store) removeStrayFiles() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("scan store directory failed", zap.Error(err))
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		var stray bool
		if strings.HasSuffix(name, IndexExt) {
			_, listed := s.ledger.Get(strings.TrimSuffix(name, IndexExt))
			stray = !listed
		} else {
			stray = utils.IsTempFile(name) || strings.HasSuffix(name, ".faiss-tmp")
		}
		if !stray {
			continue
		}
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil {
			s.logger.Warn("remove stray file failed", zap.String("path", path), zap.Error(err))
			continue
		}
		s.logger.Warn("removed stray file", zap.String("path", path))
	}
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) indexPath(docID string) string {
	return filepath.Join(s.dir, docID+IndexExt)
}

// ValidateDocID reports whether id can name a document partition.
func ValidateDocID(id string) error {
	switch {
	case id == "", id == ".", id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidDocID, id)
	case strings.ContainsAny(id, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator or NUL", ErrInvalidDocID, id)
	}
	return nil
}

// AddDocument builds the document's index and records its chunks. An existing
// document with the same ID is replaced. On any error neither the index file nor
// the ledger is changed.
func (s *Store) AddDocument(ctx context.Context, docID string, chunks []models.Chunk, vectors [][]float32) error {
	if err := ValidateDocID(docID); err != nil {
		return err
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", ErrChunkCountMismatch, len(chunks), len(vectors))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	idx, err := vector.NewIndex(s.indexType, vectors, chunkDigest(chunks))
	if err != nil {
		return fmt.Errorf("build index for %s: %w", docID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.indexPath(docID)
	previous, hadPrevious := s.ledger.Get(docID)
	var backup []byte
	if hadPrevious {
		if b, err := os.ReadFile(path); err == nil {
			backup = b
		}
	}

	if err := idx.Save(path); err != nil {
		_ = idx.Close()
		return fmt.Errorf("write index for %s: %w", docID, err)
	}
	s.ledger.Put(docID, chunks)
	if err := s.ledger.Persist(); err != nil {
		s.rollbackAdd(docID, path, previous, hadPrevious, backup)
		_ = idx.Close()
		return fmt.Errorf("persist ledger: %w", err)
	}

	if old, ok := s.indices[docID]; ok {
		_ = old.Close()
	}
	s.indices[docID] = idx
	s.logger.Info("document added", zap.String("doc_id", docID), zap.Int("chunks", len(chunks)))
	return nil
}

// rollbackAdd restores the ledger entry and index file that existed before a failed add.
func (s *Store) rollbackAdd(docID, path string, previous []models.Chunk, hadPrevious bool, backup []byte) {
	if hadPrevious {
		s.ledger.Put(docID, previous)
	} else {
		s.ledger.Remove(docID)
	}
	var err error
	if backup != nil {
		err = utils.WriteFileAtomic(path, backup, 0644)
	} else {
		err = os.Remove(path)
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("restore index file after failed add", zap.String("doc_id", docID), zap.Error(err))
	}
}

// RemoveDocument deletes a document's ledger entry and index. Unknown IDs are a no-op.
// The ledger is persisted before the index file is deleted, so a failed delete leaves
// an orphan file that the next Open removes.
func (s *Store) RemoveDocument(ctx context.Context, docID string) error {
	if err := ValidateDocID(docID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, ok := s.ledger.Get(docID)
	if !ok {
		return nil
	}
	s.ledger.Remove(docID)
	if err := s.ledger.Persist(); err != nil {
		s.ledger.Put(docID, previous)
		return fmt.Errorf("persist ledger: %w", err)
	}
	if idx, ok := s.indices[docID]; ok {
		_ = idx.Close()
		delete(s.indices, docID)
	}
	if err := os.Remove(s.indexPath(docID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete index for %s: %w", docID, err)
	}
	s.logger.Info("document removed", zap.String("doc_id", docID))
	return nil
}

// ListDocuments returns every document ID in the ledger, searchable or not, sorted.
func (s *Store) ListDocuments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.DocIDs()
}

// Chunks returns a document's chunks in row order.
func (s *Store) Chunks(docID string) ([]models.Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks, ok := s.ledger.Get(docID)
	if !ok {
		return nil, false
	}
	out := make([]models.Chunk, len(chunks))
	copy(out, chunks)
	return out, true
}

// Searchable reports whether a document has a loaded index.
func (s *Store) Searchable(docID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indices[docID]
	return ok
}

// Stats summarizes the store contents.
type Stats struct {
	Documents  int    `json:"documents"`
	Searchable int    `json:"searchable"`
	Chunks     int    `json:"chunks"`
	Rows       int    `json:"rows"`
	IndexType  string `json:"index_type"`
}

// Stats returns document, chunk and row counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{IndexType: string(s.indexType)}
	for _, docID := range s.ledger.DocIDs() {
		chunks, _ := s.ledger.Get(docID)
		st.Documents++
		st.Chunks += len(chunks)
	}
	for _, idx := range s.indices {
		st.Searchable++
		st.Rows += idx.Len()
	}
	return st
}

// Close releases every loaded index and the ledger.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, idx := range s.indices {
		_ = idx.Close()
		delete(s.indices, id)
	}
	return s.ledger.Close()
}
