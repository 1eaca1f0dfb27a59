// Package bookservice implements the session interactions: loading a book,
// tuning the answer length, asking, exporting the transcript, and reset.
package bookservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/starford/bookbot/internal/apperr"
	"github.com/starford/bookbot/internal/catalog"
	"github.com/starford/bookbot/internal/embedding"
	"github.com/starford/bookbot/internal/export"
	"github.com/starford/bookbot/internal/fingerprint"
	"github.com/starford/bookbot/internal/indexcache"
	"github.com/starford/bookbot/internal/llm"
	"github.com/starford/bookbot/internal/pdftext"
	"github.com/starford/bookbot/internal/rag"
	"github.com/starford/bookbot/internal/session"
	"github.com/starford/bookbot/internal/splitter"
	"github.com/starford/bookbot/internal/sse"
	"github.com/starford/bookbot/internal/vectorindex"
)

// Models creates the model clients for a session credential.
type Models struct {
	Embedder  func(credential string) (embedding.Embedder, error)
	Generator func(credential string) (llm.Generator, error)
}

// Events receives progress notifications. *sse.Broker implements it.
type Events interface {
	Publish(event sse.Event)
	PublishProgress(topic string, done, total int)
}

// Config holds the tuning knobs of the service.
type Config struct {
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	Temperature    *float32 // nil selects rag.DefaultTemperature
	RefusalMarkers []string
	EmbedBatchSize int
	EmbedRate      float64
	// RequireCredential rejects loads without an API key (hosted providers).
	RequireCredential bool
}

// Service coordinates the cache, the catalog and the models for sessions.
type Service struct {
	cache   *indexcache.Cache
	catalog catalog.Catalog
	models  Models
	cfg     Config
	events  Events
	log     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEvents sets the progress event sink.
func WithEvents(e Events) Option {
	return func(s *Service) { s.events = e }
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithCatalog enables ListBooks.
func WithCatalog(c catalog.Catalog) Option {
	return func(s *Service) { s.catalog = c }
}

// New creates a book service.
func New(cache *indexcache.Cache, models Models, cfg Config, opts ...Option) *Service {
	s := &Service{cache: cache, models: models, cfg: cfg, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) publish(topic, typ string, data any) {
	if s.events != nil {
		s.events.Publish(sse.Event{Topic: topic, Type: typ, Data: data})
	}
}

// LoadBook fingerprints data, obtains its index from the cache (building it
// on a miss), and makes it the session's active book. An empty credential
// keeps the one the session already holds. On failure the session is left
// unchanged.
func (s *Service) LoadBook(ctx context.Context, sess *session.Session, name string, data []byte, credential string) (*session.Book, error) {
	var book *session.Book
	err := sess.Do(func(st *session.State) error {
		cred := strings.TrimSpace(credential)
		if cred == "" {
			cred = st.Credential
		}
		if cred == "" && s.cfg.RequireCredential {
			return apperr.ErrMissingCredential
		}
		if err := pdftext.Detect(data); err != nil {
			return err
		}

		fp := fingerprint.Sum(data)
		s.publish(sess.ID, sse.EventBookFingerprinted, map[string]string{"name": name, "fingerprint": string(fp)})

		emb, err := s.models.Embedder(cred)
		if err != nil {
			return fmt.Errorf("bookservice: embedder: %w", err)
		}
		gen, err := s.models.Generator(cred)
		if err != nil {
			return fmt.Errorf("bookservice: generator: %w", err)
		}

		res, err := s.cache.Materialize(indexcache.WithLabel(ctx, name), fp, s.builder(sess.ID, data, emb))
		if err != nil {
			return err
		}

		p, err := rag.NewPipeline(res.Index, emb, gen, rag.Options{
			TopK:           s.cfg.TopK,
			MaxTokens:      st.MaxTokens,
			Temperature:    s.cfg.Temperature,
			RefusalMarkers: s.cfg.RefusalMarkers,
			Logger:         s.log,
		})
		if err != nil {
			return err
		}

		book = &session.Book{Name: name, Fingerprint: fp, Chunks: res.Index.Len(), FromCache: res.Hit}
		st.Credential = cred
		st.Book = book
		st.Index = res.Index
		st.Pipeline = p

		if res.Hit {
			s.publish(sess.ID, sse.EventIndexCacheHit, book)
		}
		s.publish(sess.ID, sse.EventIndexReady, book)
		s.log.Info("book loaded",
			slog.String("session", sess.ID),
			slog.String("fingerprint", fp.Short()),
			slog.Int("chunks", book.Chunks),
			slog.Bool("cached", res.Hit),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

func (s *Service) builder(topic string, data []byte, emb embedding.Embedder) indexcache.BuildFunc {
	return func(ctx context.Context) (*vectorindex.Index, error) {
		s.publish(topic, sse.EventIndexBuilding, map[string]any{})
		text, err := pdftext.Extract(data)
		if err != nil {
			return nil, err
		}
		chunks, err := splitter.New(s.cfg.ChunkSize, s.cfg.ChunkOverlap).Split(text)
		if err != nil {
			return nil, err
		}
		if len(chunks) == 0 {
			return nil, apperr.ErrEmptyDocument
		}
		return vectorindex.Build(ctx, chunks, emb, vectorindex.BuildOptions{
			BatchSize:     s.cfg.EmbedBatchSize,
			RatePerSecond: s.cfg.EmbedRate,
			Progress: func(done, total int) {
				if s.events != nil {
					s.events.PublishProgress(topic, done, total)
				}
			},
		})
	}
}

// SetAnswerLimit changes the answer bound; it applies to the current book
// and to books loaded later.
func (s *Service) SetAnswerLimit(sess *session.Session, n int) error {
	if err := rag.ValidateMaxTokens(n); err != nil {
		return err
	}
	return sess.Do(func(st *session.State) error {
		if st.Pipeline != nil {
			p, err := st.Pipeline.WithMaxTokens(n)
			if err != nil {
				return err
			}
			st.Pipeline = p
		}
		st.MaxTokens = n
		return nil
	})
}

// Ask answers question from the active book and records the exchange.
// Pipeline failures come back as an Outcome, not an error.
func (s *Service) Ask(ctx context.Context, sess *session.Session, question string, mode rag.Mode) (rag.Outcome, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return rag.Outcome{}, apperr.ErrEmptyQuestion
	}
	var out rag.Outcome
	err := sess.Do(func(st *session.State) error {
		if !st.HasBook() {
			return apperr.ErrNoBook
		}
		out = st.Pipeline.Ask(ctx, question, mode)
		st.Transcript.Append(session.QAPair{
			Question: question,
			Answer:   out.Text,
			Kind:     out.Kind,
			AskedAt:  time.Now().UTC(),
		})
		return nil
	})
	if err != nil {
		return rag.Outcome{}, err
	}
	s.publish(sess.ID, sse.EventAnswerReady, map[string]string{"kind": out.Kind.String()})
	return out, nil
}

// Document is a rendered transcript ready to download.
type Document struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Export renders the session transcript in format ("pdf" or "xlsx").
func (s *Service) Export(sess *session.Session, format string) (*Document, error) {
	e, err := export.For(format)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := e.Export(&buf, sess.Transcript()); err != nil {
		return nil, err
	}
	return &Document{FileName: e.FileName(), ContentType: e.ContentType(), Data: buf.Bytes()}, nil
}

// Reset clears the session: credential, book, pipeline and transcript.
func (s *Service) Reset(sess *session.Session) {
	sess.Reset()
	s.publish(sess.ID, sse.EventSessionReset, map[string]any{})
	s.log.Info("session reset", slog.String("session", sess.ID))
}

// ListBooks returns catalogued books, most recently used first.
func (s *Service) ListBooks(ctx context.Context, limit, offset int, filter string) ([]catalog.BookRow, int, error) {
	if s.catalog == nil {
		return []catalog.BookRow{}, 0, nil
	}
	return s.catalog.List(ctx, limit, offset, filter)
}

// GetBook returns the catalog row of a cached book.
func (s *Service) GetBook(ctx context.Context, fp fingerprint.Fingerprint) (*catalog.BookRow, error) {
	if !fp.Valid() || s.catalog == nil {
		return nil, fmt.Errorf("bookservice: book %q: %w", fp, apperr.ErrNotFound)
	}
	return s.catalog.Get(ctx, fp)
}

// EvictBook drops the cached index of fp and its catalog row. Sessions that
// already loaded the book keep answering from their in-memory index; the
// next load of the same bytes rebuilds it.
func (s *Service) EvictBook(ctx context.Context, fp fingerprint.Fingerprint) (*catalog.BookRow, error) {
	if !fp.Valid() {
		return nil, fmt.Errorf("bookservice: book %q: %w", fp, apperr.ErrNotFound)
	}

	row := &catalog.BookRow{Fingerprint: fp}
	known := false
	if s.catalog != nil {
		got, err := s.catalog.Get(ctx, fp)
		switch {
		case err == nil:
			row, known = got, true
		case !errors.Is(err, apperr.ErrNotFound):
			return nil, err
		}
	}
	if !known {
		entries, err := s.cache.Entries()
		if err != nil {
			return nil, err
		}
		known = slices.Contains(entries, fp)
	}
	if !known {
		return nil, fmt.Errorf("bookservice: book %s: %w", fp.Short(), apperr.ErrNotFound)
	}

	if err := s.cache.Evict(ctx, fp); err != nil {
		return nil, err
	}
	s.publish("", sse.EventCatalogChanged, map[string]string{"change": "evicted", "fingerprint": fp.String()})
	s.log.Info("book evicted", slog.String("fingerprint", fp.Short()), slog.String("name", row.FileName))
	return row, nil
}
