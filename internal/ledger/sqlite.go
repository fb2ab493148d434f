package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/bunko/internal/models"
)

// SQLiteLedger keeps one row per document. Persist only rewrites the documents
// touched since the previous Persist, inside a single transaction.
type SQLiteLedger struct {
	entries
	db    *sql.DB
	path  string
	dirty map[string]struct{}
}

// NewSQLiteLedger opens or creates the database at path and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, wrapSQLiteError(path, fmt.Errorf("failed to enable WAL: %w", err))
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, wrapSQLiteError(path, fmt.Errorf("failed to initialize schema: %w", err))
	}
	return &SQLiteLedger{
		entries: newEntries(),
		db:      db,
		path:    path,
		dirty:   make(map[string]struct{}),
	}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		doc_id TEXT PRIMARY KEY,
		chunk_count INTEGER NOT NULL,
		chunks BLOB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// wrapSQLiteError reports a file that is not a SQLite database as a corrupt ledger.
func wrapSQLiteError(path string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrNotADB || sqliteErr.Code == sqlite3.ErrCorrupt) {
		return fmt.Errorf("%w: %s: %v", ErrCorruptLedger, path, err)
	}
	return err
}

// Path returns the database file path.
func (l *SQLiteLedger) Path() string {
	return l.path
}

// Put inserts or replaces the chunk list for docID.
func (l *SQLiteLedger) Put(docID string, chunks []models.Chunk) {
	l.entries.Put(docID, chunks)
	l.markDirty(docID)
}

// Remove deletes the entry for docID.
func (l *SQLiteLedger) Remove(docID string) {
	l.entries.Remove(docID)
	l.markDirty(docID)
}

func (l *SQLiteLedger) markDirty(docID string) {
	l.mu.Lock()
	l.dirty[docID] = struct{}{}
	l.mu.Unlock()
}

// Persist writes every document changed since the last Persist.
func (l *SQLiteLedger) Persist() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.dirty) == 0 {
		return nil
	}

	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert, err := tx.Prepare(`INSERT INTO documents (doc_id, chunk_count, chunks, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(doc_id) DO UPDATE SET
			chunk_count = excluded.chunk_count,
			chunks = excluded.chunks,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer upsert.Close()

	for docID := range l.dirty {
		chunks, ok := l.docs[docID]
		if !ok {
			if _, err := tx.Exec(`DELETE FROM documents WHERE doc_id = ?`, docID); err != nil {
				return fmt.Errorf("delete ledger entry %s: %w", docID, err)
			}
			continue
		}
		blob, err := encodeChunks(chunks)
		if err != nil {
			return err
		}
		if _, err := upsert.Exec(docID, len(chunks), blob); err != nil {
			return fmt.Errorf("write ledger entry %s: %w", docID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}
	l.dirty = make(map[string]struct{})
	return nil
}

// Reload reads every document from the database, discarding unpersisted changes.
func (l *SQLiteLedger) Reload() error {
	rows, err := l.db.Query(`SELECT doc_id, chunk_count, chunks FROM documents`)
	if err != nil {
		return wrapSQLiteError(l.path, fmt.Errorf("read ledger: %w", err))
	}
	defer rows.Close()

	docs := make(map[string][]models.Chunk)
	for rows.Next() {
		var docID string
		var count int
		var blob []byte
		if err := rows.Scan(&docID, &count, &blob); err != nil {
			return wrapSQLiteError(l.path, fmt.Errorf("scan ledger row: %w", err))
		}
		chunks, err := decodeChunks(blob)
		if err != nil {
			return fmt.Errorf("%s: %w", docID, err)
		}
		if len(chunks) != count {
			return fmt.Errorf("%w: %s has %d chunks, row declares %d", ErrCorruptLedger, docID, len(chunks), count)
		}
		docs[docID] = chunks
	}
	if err := rows.Err(); err != nil {
		return wrapSQLiteError(l.path, err)
	}

	l.mu.Lock()
	l.docs = docs
	l.dirty = make(map[string]struct{})
	l.mu.Unlock()
	return nil
}

// Close closes the database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
