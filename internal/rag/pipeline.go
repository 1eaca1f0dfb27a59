// Package rag answers questions about a book from its vector index.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/bookbot/internal/apperr"
	"github.com/starford/bookbot/internal/embedding"
	"github.com/starford/bookbot/internal/llm"
	"github.com/starford/bookbot/internal/vectorindex"
)

// Answer length bounds in tokens.
const (
	MinMaxTokens     = 100
	MaxMaxTokens     = 500
	DefaultMaxTokens = 300
)

// DefaultTemperature is the sampling temperature used for answers.
const DefaultTemperature float32 = 0.3

// DefaultRefusalMarkers are substrings that mark a model reply as a refusal.
// Matching is a best-effort heuristic: a genuine answer containing a marker
// is reported as not relevant.
var DefaultRefusalMarkers = []string{"Sorry,", "Kechirasiz"}

// Options tunes a Pipeline. Zero values select the defaults. Temperature
// is a pointer so that an explicit 0 is kept; nil means DefaultTemperature.
type Options struct {
	TopK           int
	MaxTokens      int
	Temperature    *float32
	RefusalMarkers []string
	Logger         *slog.Logger
}

// Pipeline is immutable and safe for concurrent use.
type Pipeline struct {
	index     *vectorindex.Index
	embedder  embedding.Embedder
	generator llm.Generator
	opts      Options
	log       *slog.Logger
}

// ValidateMaxTokens reports whether n is an allowed answer bound.
func ValidateMaxTokens(n int) error {
	if n < MinMaxTokens || n > MaxMaxTokens {
		return fmt.Errorf("%w: %d not in [%d, %d]", apperr.ErrInvalidAnswerLimit, n, MinMaxTokens, MaxMaxTokens)
	}
	return nil
}

// NewPipeline binds an index to the models that answer from it.
func NewPipeline(index *vectorindex.Index, emb embedding.Embedder, gen llm.Generator, opts Options) (*Pipeline, error) {
	if index == nil || emb == nil || gen == nil {
		return nil, fmt.Errorf("rag: index, embedder and generator are required")
	}
	if opts.TopK <= 0 {
		opts.TopK = vectorindex.DefaultTopK
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if err := ValidateMaxTokens(opts.MaxTokens); err != nil {
		return nil, err
	}
	temp := DefaultTemperature
	if opts.Temperature != nil {
		temp = *opts.Temperature
	}
	opts.Temperature = &temp
	if opts.RefusalMarkers == nil {
		opts.RefusalMarkers = DefaultRefusalMarkers
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{index: index, embedder: emb, generator: gen, opts: opts, log: log}, nil
}

// MaxTokens returns the answer bound.
func (p *Pipeline) MaxTokens() int { return p.opts.MaxTokens }

// WithMaxTokens returns a copy of p with a different answer bound.
func (p *Pipeline) WithMaxTokens(n int) (*Pipeline, error) {
	opts := p.opts
	opts.MaxTokens = n
	return NewPipeline(p.index, p.embedder, p.generator, opts)
}

// Ask answers query. It never returns an error and never panics: failures
// become OutcomeFailed with ApologyText, and the cause is logged.
func (p *Pipeline) Ask(ctx context.Context, query string, mode Mode) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("rag: pipeline panic", slog.String("panic", fmt.Sprint(r)))
			out = Outcome{Kind: OutcomeFailed, Text: ApologyText}
		}
	}()

	hits, err := p.index.Retrieve(ctx, p.embedder, query, p.opts.TopK)
	if err != nil {
		p.log.Error("rag: retrieve failed", slog.String("error", err.Error()))
		return Outcome{Kind: OutcomeFailed, Text: ApologyText}
	}

	prompt := BuildPrompt(query, mode, hits)
	reply, err := p.generator.Generate(ctx, prompt, llm.Params{
		MaxTokens:   p.opts.MaxTokens,
		Temperature: *p.opts.Temperature,
	})
	if err != nil {
		p.log.Error("rag: generate failed", slog.String("error", err.Error()))
		return Outcome{Kind: OutcomeFailed, Text: ApologyText}
	}

	sources := make([]Source, len(hits))
	for i, h := range hits {
		sources[i] = Source{Position: h.Position, Score: h.Score}
	}

	reply = strings.TrimSpace(reply)
	if reply == "" || p.isRefusal(reply) {
		p.log.Info("rag: reply treated as not relevant", slog.Int("reply_len", len(reply)))
		return Outcome{Kind: OutcomeNotRelevant, Text: NotRelevantText, Sources: sources}
	}
	return Outcome{Kind: OutcomeAnswered, Text: reply, Sources: sources}
}

func (p *Pipeline) isRefusal(reply string) bool {
	for _, m := range p.opts.RefusalMarkers {
		if m != "" && strings.Contains(reply, m) {
			return true
		}
	}
	return false
}
