// Package embedding turns text into fixed-dimension vectors for the store.
// Providers: a deterministic mock, the OpenAI embeddings API and a local ONNX model.
package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/bunko/internal/config"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// New builds the configured provider wrapped in an LRU cache.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	var (
		base Embedder
		err  error
	)
	switch cfg.Provider {
	case "mock", "":
		base = NewMockEmbedder(cfg.Dimensions)
	case "openai":
		base, err = NewOpenAIEmbedder(OpenAIOptions{
			APIKey:     cfg.APIKey(),
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	case "onnx":
		base, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize <= 0 {
		return base, nil
	}
	return NewCachedEmbedder(base, cfg.CacheSize), nil
}
