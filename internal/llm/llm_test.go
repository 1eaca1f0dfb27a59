package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/bookbot/internal/apperr"
)

func TestNewProviders(t *testing.T) {
	_, err := New(Options{Provider: "gemini"})
	assert.Error(t, err)

	_, err = New(Options{Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, apperr.ErrMissingCredential)

	g, err := New(Options{Provider: ProviderOllama})
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, g)
}

func TestOpenAIGenerateSendsBounds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req struct {
			Model       string  `json:"model"`
			MaxTokens   int     `json:"max_tokens"`
			Temperature float64 `json:"temperature"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultOpenAIModel, req.Model)
		assert.Equal(t, 300, req.MaxTokens)
		assert.InDelta(t, 0.3, req.Temperature, 0.001)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "the prompt", req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"The theme is courage."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	g, err := NewOpenAI(Options{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "the prompt", Params{MaxTokens: 300, Temperature: 0.3})
	require.NoError(t, err)
	assert.Equal(t, "The theme is courage.", out)
}

func TestOpenAIGenerateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	g, err := NewOpenAI(Options{APIKey: "sk-bad", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "p", Params{MaxTokens: 100})
	assert.Error(t, err)
}
