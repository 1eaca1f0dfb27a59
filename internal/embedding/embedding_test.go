package embedding

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

func TestNewUnsupportedProvider(t *testing.T) {
	_, err := New(Options{Provider: "gemini"})
	assert.Error(t, err)
}

func TestOpenAIRequiresKey(t *testing.T) {
	_, err := New(Options{Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, apperr.ErrMissingCredential)
}

func TestOllamaDefaults(t *testing.T) {
	e, err := New(Options{Provider: ProviderOllama})
	require.NoError(t, err)
	assert.Equal(t, DefaultOllamaModel, e.Model())
}

func TestOpenAIEmbedBatchOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultOpenAIModel, req.Model)
		assert.Equal(t, []string{"first", "second"}, req.Input)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		]}`))
	}))
	defer srv.Close()

	e, err := NewOpenAI(Options{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)

	single, err := Embed(context.Background(), e, "first")
	// The fake always answers with two vectors.
	assert.Error(t, err)
	assert.Nil(t, single)
}

func TestOpenAIEmbedBatchEmpty(t *testing.T) {
	e, err := NewOpenAI(Options{APIKey: "sk-test", BaseURL: "http://127.0.0.1:0"})
	require.NoError(t, err)
	vecs, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}
