package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/bunko/internal/config"
	"github.com/hyperjump/bunko/internal/ingest"
	"github.com/hyperjump/bunko/internal/models"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"notice period", "-k", "3"},
			expected: []string{"-k", "3", "notice period"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-k", "3", "notice period"},
			expected: []string{"-k", "3", "notice period"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"notice period"},
			expected: []string{"notice period"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "two", "--output", "json"},
			expected: []string{"--output", "json", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := argsReorder(tt.args); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"deposit"}, "deposit"},
		{"multiple words", []string{"notice", "period"}, "notice period"},
		{"single quoted phrase", []string{"notice period"}, "notice period"},
		{"empty", nil, ""},
		{"blank", []string{"  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuery(tt.args); got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestParseDocIDs(t *testing.T) {
	if got := parseDocIDs(""); got != nil {
		t.Errorf("parseDocIDs(\"\") = %v, want nil", got)
	}
	if got := parseDocIDs(" a, ,b ,"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("parseDocIDs = %v", got)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
store:
  dir: "./store"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestLoadConfig_explicitMissingFileFails(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing explicit config")
	}
}

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Store.Dir = t.TempDir()
	cfg.Store.LedgerBackend = backend
	cfg.Embedding.Dimensions = 16
	cfg.Ingest.ChunkSize = 200
	cfg.Ingest.ChunkOverlap = 20
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestInitializeComponents_AddQueryReopen(t *testing.T) {
	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "lease.txt")
			text := "The deposit equals two months of rent.\n\nTenants may keep one cat."
			if err := os.WriteFile(path, []byte(text), 0600); err != nil {
				t.Fatal(err)
			}

			c, err := initializeComponents(cfg, zap.NewNop())
			if err != nil {
				t.Fatal(err)
			}
			res, err := c.Ingestor.IngestFile(ctx, path, ingest.Options{DocID: "lease"})
			if err != nil {
				t.Fatal(err)
			}
			if res.Chunks < 1 {
				t.Fatalf("result = %+v", res)
			}
			c.Close()

			c, err = initializeComponents(cfg, zap.NewNop())
			if err != nil {
				t.Fatal(err)
			}
			defer c.Close()
			if ids := c.Store.ListDocuments(); len(ids) != 1 || ids[0] != "lease" {
				t.Fatalf("documents after reopen = %v", ids)
			}
			out, err := c.Retriever.Retrieve(ctx, "deposit", 3, nil)
			if err != nil {
				t.Fatal(err)
			}
			if len(out.Hits) != res.Chunks || out.Response.Sources[0].Title != "lease.txt" {
				t.Errorf("retrieved %+v", out.Response.Sources)
			}

			st := localStatus(cfg, c.Store)
			if st.Documents != 1 || st.Chunks != res.Chunks || st.DiskUsageBytes <= 0 || st.LedgerBackend != backend {
				t.Errorf("status = %+v", st)
			}
		})
	}
}

func TestInitializeComponents_FAISSFallsBackToFlat(t *testing.T) {
	cfg := testConfig(t, "file")
	cfg.Store.IndexType = "faiss"
	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()
	chunks := []models.Chunk{{Content: "a"}, {Content: "b"}}
	if err := c.Store.AddDocument(ctx, "d", chunks, [][]float32{{0, 0}, {1, 1}}); err != nil {
		t.Fatal(err)
	}
	hits, err := c.Store.Search(ctx, []float32{1, 1}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Row != 1 {
		t.Errorf("hits = %+v", hits)
	}
}

func TestQueryViaHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/query" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req models.QueryRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(models.QueryResponse{
			Query:   req.Query,
			Sources: []*models.Source{{Title: "Lease", DocID: "lease", Distance: 0.1}},
		})
	}))
	defer srv.Close()

	resp, err := queryViaHTTP(srv.URL, &models.QueryRequest{Query: "deposit", K: 2})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Query != "deposit" || len(resp.Sources) != 1 || resp.Sources[0].DocID != "lease" {
		t.Errorf("response = %+v", resp)
	}
}

func TestDoJSON_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"query cannot be empty"}`))
	}))
	defer srv.Close()

	err := doJSON(http.MethodPost, srv.URL+"/api/v1/query", map[string]string{}, http.StatusOK, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if want := `server returned 400: {"error":"query cannot be empty"}`; err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}
