// Package embedding turns text into vectors through a hosted or local model.
package embedding

import (
	"context"
	"fmt"
	"time"
)

// Providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Embedder generates embedding vectors.
type Embedder interface {
	// Model is the embedding model name; cached indexes are only reused
	// with the model that built them.
	Model() string
	// EmbedBatch returns one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Options configures New.
type Options struct {
	Provider string
	BaseURL  string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// New builds the Embedder for opts.Provider.
func New(opts Options) (Embedder, error) {
	switch opts.Provider {
	case ProviderOpenAI, "":
		return NewOpenAI(opts)
	case ProviderOllama:
		return NewOllama(opts)
	default:
		return nil, fmt.Errorf("embedding: unsupported provider %q", opts.Provider)
	}
}

// Embed is a convenience for embedding a single text.
func Embed(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding: expected 1 vector, got %d", len(vecs))
	}
	return vecs[0], nil
}
