// Package testutil provides shared test helpers: sample PDFs and fake model
// clients.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/go-pdf/fpdf"

	"github.com/starford/bookbot/internal/llm"
)

// BookPDF renders a small PDF with one page per entry in pages.
// An empty string produces a blank page.
func BookPDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		pdf.AddPage()
		if text != "" {
			pdf.MultiCell(0, 8, text, "", "L", false)
		}
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	return buf.Bytes()
}

// Embedder is a deterministic bag-of-words embedder. Texts sharing words
// get similar vectors, which is enough for retrieval tests.
type Embedder struct {
	Dim  int
	Name string
	Err  error

	mu    sync.Mutex
	calls int
	texts int
}

// Model returns the fake model name.
func (e *Embedder) Model() string {
	if e.Name == "" {
		return "fake-embed"
	}
	return e.Name
}

// EmbedBatch hashes each word into a bucket and L2-normalises the result.
func (e *Embedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.texts += len(texts)
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	dim := e.Dim
	if dim <= 0 {
		dim = 64
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, dim)
		for _, w := range strings.Fields(strings.ToLower(text)) {
			w = strings.Trim(w, ".,;:!?\"'()")
			if w == "" {
				continue
			}
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			vec[h.Sum32()%uint32(dim)]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v * v)
		}
		if norm > 0 {
			n := float32(math.Sqrt(norm))
			for j := range vec {
				vec[j] /= n
			}
		}
		out[i] = vec
	}
	return out, nil
}

// Calls returns how many batches were embedded.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Texts returns how many texts were embedded in total.
func (e *Embedder) Texts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.texts
}

// Generator is a scripted llm.Generator.
type Generator struct {
	Reply string
	Err   error
	Panic bool

	mu      sync.Mutex
	Prompts []string
	Params  []llm.Params
}

// ErrGenerator is a canned failure for Generator.Err.
var ErrGenerator = errors.New("model unavailable")

// Generate records the prompt and returns the scripted reply.
func (g *Generator) Generate(_ context.Context, prompt string, p llm.Params) (string, error) {
	g.mu.Lock()
	g.Prompts = append(g.Prompts, prompt)
	g.Params = append(g.Params, p)
	g.mu.Unlock()
	if g.Panic {
		panic("generator exploded")
	}
	return g.Reply, g.Err
}

// LastPrompt returns the most recent prompt or "".
func (g *Generator) LastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.Prompts) == 0 {
		return ""
	}
	return g.Prompts[len(g.Prompts)-1]
}
