package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/bunko/pkg/utils"
)

// maxOpenAIBatch is the number of inputs sent per embeddings request.
const maxOpenAIBatch = 512

// OpenAIOptions configures an OpenAIEmbedder.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string // optional; for compatible endpoints
	Model      string
	Dimensions int
}

// OpenAIEmbedder calls the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAIEmbedder creates an embedder for the given model. The API key is required.
func NewOpenAIEmbedder(opts OpenAIOptions) (*OpenAIEmbedder, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai embedder: API key not set")
	}
	clientCfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		clientCfg.BaseURL = opts.BaseURL
	}
	model := openai.SmallEmbedding3
	if opts.Model != "" {
		model = openai.EmbeddingModel(opts.Model)
	}
	dim := opts.Dimensions
	if dim <= 0 {
		dim = 1536
		if model == openai.LargeEmbedding3 {
			dim = 3072
		}
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		dimensions: dim,
	}, nil
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in request-sized batches, preserving input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += maxOpenAIBatch {
		end := start + maxOpenAIBatch
		if end > len(texts) {
			end = len(texts)
		}
		if err := e.embedInto(ctx, texts[start:end], out[start:end]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedInto(ctx context.Context, texts []string, out [][]float32) error {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	}
	if e.model != openai.AdaEmbeddingV2 {
		req.Dimensions = e.dimensions
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return fmt.Errorf("openai embedding failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return fmt.Errorf("openai returned embedding index %d out of range", d.Index)
		}
		if len(d.Embedding) != e.dimensions {
			return fmt.Errorf("openai returned %d dimensions, expected %d", len(d.Embedding), e.dimensions)
		}
		v := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			v[i] = float32(x)
		}
		utils.NormalizeL2(v)
		out[d.Index] = v
	}
	return nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client needs no teardown.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
