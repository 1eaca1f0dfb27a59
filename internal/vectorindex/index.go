// Package vectorindex builds, searches, and serializes the in-memory vector
// index of a book's chunks.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/bookbot/internal/embedding"
)

// DefaultTopK is the number of chunks retrieved per query.
const DefaultTopK = 5

// Index holds chunk texts and their L2-normalised embedding vectors.
// It is immutable after Build or Load and safe for concurrent reads.
type Index struct {
	model     string
	dimension int
	chunks    []string
	vectors   [][]float32
	createdAt time.Time
}

// Hit is one retrieved chunk.
type Hit struct {
	Position int     `json:"position"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

// BuildOptions tunes Build.
type BuildOptions struct {
	// BatchSize is the number of chunks per embedding request (default 16).
	BatchSize int
	// RatePerSecond caps embedding requests per second; 0 means unlimited.
	RatePerSecond float64
	// Progress, if set, is called after each batch with done/total chunk counts.
	Progress func(done, total int)
}

// Build embeds chunks and returns a searchable index.
func Build(ctx context.Context, chunks []string, emb embedding.Embedder, opts BuildOptions) (*Index, error) {
	if len(chunks) == 0 {
		return nil, errors.New("vectorindex: no chunks to index")
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 16
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	limiter := rate.NewLimiter(limit, 1)

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += batch {
		end := min(start+batch, len(chunks))
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("vectorindex: rate limit: %w", err)
		}
		vecs, err := emb.EmbedBatch(ctx, chunks[start:end])
		if err != nil {
			return nil, fmt.Errorf("vectorindex: embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("vectorindex: got %d vectors for %d chunks", len(vecs), end-start)
		}
		vectors = append(vectors, vecs...)
		if opts.Progress != nil {
			opts.Progress(end, len(chunks))
		}
	}
	return newIndex(emb.Model(), chunks, vectors, time.Now().UTC())
}

func newIndex(model string, chunks []string, vectors [][]float32, createdAt time.Time) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("vectorindex: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(vectors) == 0 {
		return nil, errors.New("vectorindex: empty index")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, errors.New("vectorindex: zero-dimension vectors")
	}
	normed := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vectorindex: vector %d has dimension %d, want %d", i, len(v), dim)
		}
		normed[i] = normalize(v)
	}
	return &Index{
		model:     model,
		dimension: dim,
		chunks:    append([]string(nil), chunks...),
		vectors:   normed,
		createdAt: createdAt,
	}, nil
}

// Model returns the embedding model that produced the vectors.
func (idx *Index) Model() string { return idx.model }

// Dimension returns the vector dimension.
func (idx *Index) Dimension() int { return idx.dimension }

// Len returns the number of chunks.
func (idx *Index) Len() int { return len(idx.chunks) }

// CreatedAt returns when the index was built.
func (idx *Index) CreatedAt() time.Time { return idx.createdAt }

// Chunk returns the text of chunk i.
func (idx *Index) Chunk(i int) string { return idx.chunks[i] }

// Search returns the k chunks most similar to vec, best first.
// Ties keep document order.
func (idx *Index) Search(vec []float32, k int) []Hit {
	if k <= 0 {
		k = DefaultTopK
	}
	if len(vec) != idx.dimension {
		return nil
	}
	q := normalize(vec)
	hits := make([]Hit, len(idx.vectors))
	for i, v := range idx.vectors {
		hits[i] = Hit{Position: i, Text: idx.chunks[i], Score: dot(q, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k]
}

// Retrieve embeds query with emb and searches the index.
func (idx *Index) Retrieve(ctx context.Context, emb embedding.Embedder, query string, k int) ([]Hit, error) {
	vec, err := embedding.Embed(ctx, emb, query)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: embed query: %w", err)
	}
	if len(vec) != idx.dimension {
		return nil, fmt.Errorf("vectorindex: query dimension %d, index dimension %d", len(vec), idx.dimension)
	}
	return idx.Search(vec, k), nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	n := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
