package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/hyperjump/bunko/internal/models"
)

func sampleChunks() []models.Chunk {
	return []models.Chunk{
		{Content: "first", Metadata: map[string]interface{}{
			models.MetaTitle: "Report",
			models.MetaPage:  3,
			"score":          0.5,
			"tags":           []interface{}{"a", "b"},
			"nested":         map[string]interface{}{"k": "v"},
		}},
		{Content: "second", Metadata: map[string]interface{}{models.MetaTitle: "Report"}},
	}
}

func openBackends(t *testing.T) map[string]func() Ledger {
	t.Helper()
	dir := t.TempDir()
	return map[string]func() Ledger{
		BackendFile: func() Ledger {
			l, err := New(BackendFile, filepath.Join(dir, "chunks.ledger"))
			if err != nil {
				t.Fatal(err)
			}
			return l
		},
		BackendSQLite: func() Ledger {
			l, err := New(BackendSQLite, filepath.Join(dir, "chunks.db"))
			if err != nil {
				t.Fatal(err)
			}
			return l
		},
	}
}

func TestLedger_PersistReload(t *testing.T) {
	for name, open := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			l := open()
			l.Put("doc-b", sampleChunks())
			l.Put("doc-a", sampleChunks()[:1])
			l.Put("empty", nil)
			if err := l.Persist(); err != nil {
				t.Fatal(err)
			}
			if err := l.Close(); err != nil {
				t.Fatal(err)
			}

			reopened := open()
			defer reopened.Close()
			if err := reopened.Reload(); err != nil {
				t.Fatal(err)
			}
			if got, want := reopened.DocIDs(), []string{"doc-a", "doc-b", "empty"}; !reflect.DeepEqual(got, want) {
				t.Errorf("DocIDs = %v, want %v", got, want)
			}
			chunks, ok := reopened.Get("doc-b")
			if !ok || len(chunks) != 2 {
				t.Fatalf("doc-b: ok=%v len=%d", ok, len(chunks))
			}
			if chunks[0].Content != "first" || chunks[1].Content != "second" {
				t.Errorf("chunk order not preserved: %+v", chunks)
			}
			if chunks[0].Page() != 3 {
				t.Errorf("page = %d, want 3", chunks[0].Page())
			}
			if !reflect.DeepEqual(chunks[0].Metadata, sampleChunks()[0].Metadata) {
				t.Errorf("metadata = %#v", chunks[0].Metadata)
			}
			empty, ok := reopened.Get("empty")
			if !ok || len(empty) != 0 {
				t.Errorf("empty doc: ok=%v len=%d", ok, len(empty))
			}
		})
	}
}

func TestLedger_MetadataValueTypes(t *testing.T) {
	stamp := time.Date(2024, 3, 1, 12, 30, 0, 500, time.UTC)
	meta := map[string]interface{}{
		"labels":   map[string]string{"lang": "en"},
		"counts":   map[string]int{"words": 12},
		"flags":    map[string]bool{"ocr": true},
		"sections": []map[string]interface{}{{"name": "intro"}},
		"aliases":  map[string][]string{"a": {"x", "y"}},
		"parsed":   stamp,
		"elapsed":  1500 * time.Millisecond,
		"size":     int64(42),
		"keywords": []string{"lease", "rent"},
		"missing":  nil,
	}
	for name, open := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			l := open()
			l.Put("doc", []models.Chunk{{Content: "typed", Metadata: meta}})
			if err := l.Persist(); err != nil {
				t.Fatalf("Persist: %v", err)
			}
			if err := l.Close(); err != nil {
				t.Fatal(err)
			}

			reopened := open()
			defer reopened.Close()
			if err := reopened.Reload(); err != nil {
				t.Fatal(err)
			}
			chunks, ok := reopened.Get("doc")
			if !ok || len(chunks) != 1 {
				t.Fatalf("doc: ok=%v len=%d", ok, len(chunks))
			}
			got := chunks[0].Metadata
			for key, want := range meta {
				if key == "parsed" {
					continue
				}
				if !reflect.DeepEqual(got[key], want) {
					t.Errorf("%s = %#v, want %#v", key, got[key], want)
				}
			}
			if parsed, ok := got["parsed"].(time.Time); !ok || !parsed.Equal(stamp) {
				t.Errorf("parsed = %#v, want %v", got["parsed"], stamp)
			}
		})
	}
}

func TestLedger_RemoveAndMissingFile(t *testing.T) {
	for name, open := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			l := open()
			defer l.Close()
			if err := l.Reload(); err != nil {
				t.Fatalf("reload of fresh ledger: %v", err)
			}
			if l.Len() != 0 {
				t.Fatalf("Len = %d, want 0", l.Len())
			}
			l.Remove("absent")
			l.Put("doc", sampleChunks())
			if err := l.Persist(); err != nil {
				t.Fatal(err)
			}
			l.Remove("doc")
			if err := l.Persist(); err != nil {
				t.Fatal(err)
			}
			if err := l.Reload(); err != nil {
				t.Fatal(err)
			}
			if _, ok := l.Get("doc"); ok {
				t.Error("removed doc still present after reload")
			}
		})
	}
}

func TestLedger_ReloadDiscardsUnpersisted(t *testing.T) {
	for name, open := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			l := open()
			defer l.Close()
			l.Put("kept", sampleChunks())
			if err := l.Persist(); err != nil {
				t.Fatal(err)
			}
			l.Put("pending", sampleChunks())
			if err := l.Reload(); err != nil {
				t.Fatal(err)
			}
			if _, ok := l.Get("pending"); ok {
				t.Error("unpersisted entry survived reload")
			}
			if _, ok := l.Get("kept"); !ok {
				t.Error("persisted entry lost")
			}
		})
	}
}

func TestLedger_PutCopiesSlice(t *testing.T) {
	l := NewFileLedger(filepath.Join(t.TempDir(), "chunks.ledger"))
	chunks := sampleChunks()
	l.Put("doc", chunks)
	chunks[0] = models.Chunk{Content: "mutated"}
	got, _ := l.Get("doc")
	if got[0].Content != "first" {
		t.Errorf("ledger entry changed through caller slice: %q", got[0].Content)
	}
}

func TestFileLedger_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.ledger")
	if err := os.WriteFile(path, []byte("definitely not gob"), 0644); err != nil {
		t.Fatal(err)
	}
	l := NewFileLedger(path)
	if err := l.Reload(); !errors.Is(err, ErrCorruptLedger) {
		t.Errorf("Reload err = %v, want ErrCorruptLedger", err)
	}
}

func TestSQLiteLedger_NotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.db")
	garbage := make([]byte, 4096)
	for i := range garbage {
		garbage[i] = byte(i)
	}
	if err := os.WriteFile(path, garbage, 0644); err != nil {
		t.Fatal(err)
	}
	l, err := NewSQLiteLedger(path)
	if err == nil {
		err = l.Reload()
		l.Close()
	}
	if !errors.Is(err, ErrCorruptLedger) {
		t.Errorf("err = %v, want ErrCorruptLedger", err)
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New("redis", "x"); err == nil {
		t.Error("expected error for unknown backend")
	}
}
