// Package config provides configuration loading and structs for the bunko server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Search    SearchConfig    `yaml:"search"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig holds the vector store location and backends.
type StoreConfig struct {
	Dir           string `yaml:"dir"`
	LedgerBackend string `yaml:"ledger_backend"`
	IndexType     string `yaml:"index_type"`
	LedgerFile    string `yaml:"ledger_file"`
}

// LedgerPath returns the ledger file path. A relative ledger_file lives inside the store directory.
func (s *StoreConfig) LedgerPath() string {
	if filepath.IsAbs(s.LedgerFile) {
		return s.LedgerFile
	}
	return filepath.Join(s.Dir, s.LedgerFile)
}

// SearchConfig holds query settings.
type SearchConfig struct {
	DefaultK    int `yaml:"default_k"`
	MaxK        int `yaml:"max_k"`
	Parallelism int `yaml:"parallelism"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
	APIKeyEnv  string `yaml:"api_key_env"`
	BaseURL    string `yaml:"base_url,omitempty"`
	ModelPath  string `yaml:"model_path,omitempty"`
	MaxTokens  int    `yaml:"max_tokens,omitempty"`
}

// APIKey returns the provider API key from the configured environment variable.
func (e *EmbeddingConfig) APIKey() string {
	return os.Getenv(e.APIKeyEnv)
}

// IngestConfig holds chunking settings and the file types accepted for ingestion.
type IngestConfig struct {
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	Extensions   []string `yaml:"extensions"`
}

// AllowsExtension reports whether files with ext (including the dot) are ingested.
func (i *IngestConfig) AllowsExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range i.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Store.Dir = expandPath(cfg.Store.Dir, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Validate checks enumerated settings after defaults are applied.
func Validate(cfg *Config) error {
	switch cfg.Store.LedgerBackend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("invalid store.ledger_backend %q (supported: file, sqlite)", cfg.Store.LedgerBackend)
	}
	switch cfg.Store.IndexType {
	case "flat", "faiss":
	default:
		return fmt.Errorf("invalid store.index_type %q (supported: flat, faiss)", cfg.Store.IndexType)
	}
	switch cfg.Embedding.Provider {
	case "mock", "openai", "onnx":
	default:
		return fmt.Errorf("invalid embedding.provider %q (supported: mock, openai, onnx)", cfg.Embedding.Provider)
	}
	if cfg.Ingest.ChunkOverlap >= cfg.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap (%d) must be smaller than ingest.chunk_size (%d)",
			cfg.Ingest.ChunkOverlap, cfg.Ingest.ChunkSize)
	}
	if cfg.Search.DefaultK > cfg.Search.MaxK {
		return fmt.Errorf("search.default_k (%d) exceeds search.max_k (%d)", cfg.Search.DefaultK, cfg.Search.MaxK)
	}
	return nil
}

// Save writes the config to path. Used for persisting watch directory changes.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
