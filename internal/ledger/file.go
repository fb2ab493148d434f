package ledger

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"

	"github.com/hyperjump/bunko/internal/models"
	"github.com/hyperjump/bunko/pkg/utils"
)

const fileLedgerVersion = 1

// fileImage is the gob-encoded content of a ledger file.
type fileImage struct {
	Version int
	Docs    map[string][]models.Chunk
}

// FileLedger persists the whole mapping as one gob file, replaced atomically on every Persist.
type FileLedger struct {
	entries
	path string
}

// NewFileLedger returns an empty ledger backed by path. Call Reload to read existing content.
func NewFileLedger(path string) *FileLedger {
	return &FileLedger{entries: newEntries(), path: path}
}

// Path returns the backing file path.
func (l *FileLedger) Path() string {
	return l.path
}

// Persist writes the whole ledger to its file.
func (l *FileLedger) Persist() error {
	l.mu.RLock()
	img := fileImage{Version: fileLedgerVersion, Docs: l.docs}
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(img)
	l.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := utils.WriteFileAtomic(l.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

// Reload reads the ledger file. A missing file yields an empty ledger.
func (l *FileLedger) Reload() error {
	content, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.replace(make(map[string][]models.Chunk))
			return nil
		}
		return fmt.Errorf("read ledger: %w", err)
	}
	var img fileImage
	if err := gob.NewDecoder(bytes.NewReader(content)).Decode(&img); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptLedger, l.path, err)
	}
	if img.Version != fileLedgerVersion {
		return fmt.Errorf("%w: %s: unsupported version %d", ErrCorruptLedger, l.path, img.Version)
	}
	if img.Docs == nil {
		img.Docs = make(map[string][]models.Chunk)
	}
	l.replace(img.Docs)
	return nil
}

// Close is a no-op for FileLedger.
func (l *FileLedger) Close() error {
	return nil
}
