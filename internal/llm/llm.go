// Package llm wraps the language models that generate grounded answers.
package llm

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

// Params bounds a single generation.
type Params struct {
	MaxTokens   int
	Temperature float32
}

// Generator produces text for a fully assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, p Params) (string, error)
}

// Options configures New.
type Options struct {
	Provider string
	BaseURL  string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// New builds the Generator for opts.Provider.
func New(opts Options) (Generator, error) {
	switch opts.Provider {
	case ProviderOpenAI, "":
		return NewOpenAI(opts)
	case ProviderOllama:
		return NewOllama(opts)
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", opts.Provider)
	}
}
