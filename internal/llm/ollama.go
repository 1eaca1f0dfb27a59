package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"
)

// Ollama defaults.
const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "llama3.1"
)

// Ollama generates answers with a local Ollama server.
type Ollama struct {
	client *ollama.Client
	model  string
}

// NewOllama creates an Ollama generator.
func NewOllama(opts Options) (*Ollama, error) {
	base := opts.BaseURL
	if base == "" {
		base = DefaultOllamaURL
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("llm: invalid ollama url: %w", err)
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

// Generate runs a non-streaming generation.
func (o *Ollama) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	stream := false
	var sb strings.Builder
	err := o.client.Generate(ctx, &ollama.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"num_predict": p.MaxTokens,
			"temperature": p.Temperature,
		},
	}, func(resp ollama.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("llm: ollama generate: %w", err)
	}
	return sb.String(), nil
}

var _ Generator = (*Ollama)(nil)
