package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()

	// Single file
	f1 := filepath.Join(dir, "f1.txt")
	if err := os.WriteFile(f1, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := DiskUsageBytes(f1)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("single file: got %d bytes, want 5", got)
	}

	// Directory
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "a"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = DiskUsageBytes(sub)
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Errorf("dir: got %d bytes, want 3", got)
	}

	// Multiple paths (file + dir)
	got, err = DiskUsageBytes(f1, sub)
	if err != nil {
		t.Fatal(err)
	}
	if got != 8 {
		t.Errorf("file+dir: got %d bytes, want 8", got)
	}

	// Missing path is skipped
	got, err = DiskUsageBytes(f1, filepath.Join(dir, "nonexistent"), sub)
	if err != nil {
		t.Fatal(err)
	}
	if got != 8 {
		t.Errorf("with missing: got %d bytes, want 8", got)
	}

	// Empty path is skipped
	got, err = DiskUsageBytes("", f1)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("with empty path: got %d bytes, want 5", got)
	}
}

func TestStoreUsage(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, n int) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), make([]byte, n), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("a.index", 10)
	write("b.index", 20)
	write("chunks.db", 7)
	write("chunks.db-wal", 3)
	write("notes.txt", 1)

	u, err := StoreUsage(dir, filepath.Join(dir, "chunks.db"), ".index")
	if err != nil {
		t.Fatal(err)
	}
	want := Usage{Indices: 30, Ledger: 10, Other: 1, Total: 41}
	if u != want {
		t.Errorf("StoreUsage = %+v, want %+v", u, want)
	}
}

func TestStoreUsage_LedgerOutsideDir(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.index"), make([]byte, 4), 0644); err != nil {
		t.Fatal(err)
	}
	ledgerPath := filepath.Join(other, "chunks.ledger")
	if err := os.WriteFile(ledgerPath, make([]byte, 6), 0644); err != nil {
		t.Fatal(err)
	}
	u, err := StoreUsage(dir, ledgerPath, ".index")
	if err != nil {
		t.Fatal(err)
	}
	if u.Indices != 4 || u.Ledger != 6 || u.Total != 10 {
		t.Errorf("StoreUsage = %+v", u)
	}
}

func TestStoreUsage_MissingDir(t *testing.T) {
	u, err := StoreUsage(filepath.Join(t.TempDir(), "missing"), "", ".index")
	if err != nil {
		t.Fatal(err)
	}
	if u.Total != 0 {
		t.Errorf("missing dir usage = %+v", u)
	}
}
