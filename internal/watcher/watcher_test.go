package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/bunko/internal/ingest"
)

type recordingHandler struct {
	mu      sync.Mutex
	synced  []string
	removed []string
}

func (h *recordingHandler) SyncFile(_ context.Context, path string) (*ingest.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.synced = append(h.synced, path)
	return &ingest.Result{DocID: "file-x", Chunks: 1}, nil
}

func (h *recordingHandler) RemoveFile(_ context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = append(h.removed, path)
	return nil
}

func (h *recordingHandler) snapshot() (synced, removed []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.synced...), append([]string(nil), h.removed...)
}

func hasSuffix(paths []string, suffix string) bool {
	for _, p := range paths {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func startWatcher(t *testing.T, roots []string, exts []string, h Handler) *Watcher {
	t.Helper()
	w := New(roots, exts, true, h, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	return w
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, nil, []string{".txt"}, &recordingHandler{})

	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || dirs[0] != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}
	if err := w.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 0 {
		t.Errorf("after remove: %v", w.Directories())
	}
}

func TestWatcher_SyncsCreatedFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	h := &recordingHandler{}
	startWatcher(t, []string{dir}, []string{".txt"}, h)

	if err := os.WriteFile(filepath.Join(sub, "f.txt"), []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "f.xyz"), []byte("skip"), 0600); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { s, _ := h.snapshot(); return hasSuffix(s, "f.txt") }) {
		s, _ := h.snapshot()
		t.Fatalf("f.txt was not synced: %v", s)
	}
	s, _ := h.snapshot()
	if hasSuffix(s, "f.xyz") {
		t.Errorf("unmatched extension synced: %v", s)
	}
}

func TestWatcher_RemovedFileRemovesDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	if err := os.WriteFile(path, []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}
	h := &recordingHandler{}
	startWatcher(t, []string{dir}, []string{".txt"}, h)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { _, r := h.snapshot(); return hasSuffix(r, "gone.txt") }) {
		t.Fatal("removal was not forwarded")
	}
}

func TestWatcher_IgnoresTempFiles(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{}
	startWatcher(t, []string{dir}, nil, h)

	if err := os.WriteFile(filepath.Join(dir, ".notes.txt.tmp-123"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "real.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { s, _ := h.snapshot(); return hasSuffix(s, "real.txt") }) {
		t.Fatal("real.txt was not synced")
	}
	s, _ := h.snapshot()
	if hasSuffix(s, ".tmp-123") {
		t.Errorf("temp file synced: %v", s)
	}
}

func TestWatcher_NewDirectorySyncsNestedFiles(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{}
	startWatcher(t, []string{dir}, []string{".txt", ".md"}, h)

	nested := filepath.Join(dir, "level1", "level2")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "deep.txt"), []byte("deep"), 0600); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { s, _ := h.snapshot(); return hasSuffix(s, "deep.txt") }) {
		s, _ := h.snapshot()
		t.Errorf("expected deep.txt to be synced, got %v", s)
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0600)
	_ = os.WriteFile(filepath.Join(dir, "ignore.xyz"), []byte("x"), 0600)

	h := &recordingHandler{}
	w := startWatcher(t, []string{dir}, []string{".txt"}, h)
	w.SyncExistingFiles()

	s, _ := h.snapshot()
	if len(s) != 1 || !strings.HasSuffix(s[0], "a.txt") {
		t.Errorf("expected one synced file a.txt, got %v", s)
	}
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	startWatcher(t, []string{root}, nil, &recordingHandler{})
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{"txt"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.extensions); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}
