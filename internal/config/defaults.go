package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = "/usr/local/var/bunko/data/store"
	}
	if cfg.Store.LedgerBackend == "" {
		cfg.Store.LedgerBackend = "file"
	}
	if cfg.Store.IndexType == "" {
		cfg.Store.IndexType = "flat"
	}
	if cfg.Store.LedgerFile == "" {
		if cfg.Store.LedgerBackend == "sqlite" {
			cfg.Store.LedgerFile = "chunks.db"
		} else {
			cfg.Store.LedgerFile = "chunks.ledger"
		}
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 5
	}
	if cfg.Search.MaxK == 0 {
		cfg.Search.MaxK = 100
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		if cfg.Embedding.Provider == "onnx" {
			cfg.Embedding.Dimensions = 384
		} else {
			cfg.Embedding.Dimensions = 1536
		}
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Provider == "onnx" {
		if cfg.Embedding.ModelPath == "" {
			cfg.Embedding.ModelPath = "/usr/local/var/bunko/data/models/all-MiniLM-L6-v2.onnx"
		}
		if cfg.Embedding.MaxTokens == 0 {
			cfg.Embedding.MaxTokens = 256
		}
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 200
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".pptx", ".odp", ".ods"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
