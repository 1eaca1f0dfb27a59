package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	ollama "github.com/ollama/ollama/api"
)

// Ollama defaults.
const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"
)

// Ollama embeds text through a local Ollama server. No credential is needed.
type Ollama struct {
	client *ollama.Client
	model  string
}

// NewOllama creates an Ollama embedder.
func NewOllama(opts Options) (*Ollama, error) {
	base := opts.BaseURL
	if base == "" {
		base = DefaultOllamaURL
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("embedding: invalid ollama url: %w", err)
	}
	httpClient := http.DefaultClient
	if opts.Timeout > 0 {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	model := opts.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	return &Ollama{
		client: ollama.NewClient(parsed, httpClient),
		model:  model,
	}, nil
}

// Model returns the embedding model name.
func (o *Ollama) Model() string { return o.model }

// EmbedBatch embeds texts with one /api/embed call.
func (o *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := o.client.Embed(ctx, &ollama.EmbedRequest{
		Model: o.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: ollama: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding: ollama returned %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

var _ Embedder = (*Ollama)(nil)
