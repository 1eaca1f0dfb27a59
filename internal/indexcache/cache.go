// Package indexcache maps document fingerprints to persisted vector indexes
// so that a book is embedded at most once per content.
//
// Each fingerprint owns exactly one namespace directory under the cache root,
// named vector_store_<fingerprint>. The cache trusts these names and never
// re-derives a fingerprint from stored contents.
package indexcache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/bookbot/internal/fingerprint"
	"github.com/starford/bookbot/internal/storage"
	"github.com/starford/bookbot/internal/vectorindex"
)

const namespacePrefix = "vector_store_"

// BuildFunc constructs an index on a cache miss.
type BuildFunc func(ctx context.Context) (*vectorindex.Index, error)

// Result is what Materialize produced.
type Result struct {
	Index *vectorindex.Index
	// Hit is true when the index came from disk and the builder was not run.
	Hit bool
	// StoreErr is the persistence failure after a build, if any. The index is
	// still usable; the next lookup for the same fingerprint will miss.
	StoreErr error
}

// Meta describes a stored entry to a Recorder.
type Meta struct {
	Label          string
	EmbeddingModel string
	Dimension      int
	Chunks         int
	CreatedAt      time.Time
}

// Recorder is notified of cache activity. Recorder errors are logged and
// otherwise ignored.
type Recorder interface {
	RecordStore(ctx context.Context, fp fingerprint.Fingerprint, meta Meta) error
	RecordHit(ctx context.Context, fp fingerprint.Fingerprint, label string) error
	RecordEvict(ctx context.Context, fp fingerprint.Fingerprint) error
}

// Cache is safe for concurrent use. Two concurrent Stores for the same
// fingerprint race; the last writer wins and either result is valid.
type Cache struct {
	store    storage.Provider
	model    string
	log      *slog.Logger
	recorder Recorder
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithRecorder attaches a Recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Cache) { c.recorder = r }
}

// WithEmbeddingModel makes entries built with any other embedding model
// load as misses.
func WithEmbeddingModel(model string) Option {
	return func(c *Cache) { c.model = model }
}

// New returns a cache rooted at store.
func New(store storage.Provider, opts ...Option) *Cache {
	c := &Cache{store: store, log: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Namespace returns the directory name that holds fp's index.
func Namespace(fp fingerprint.Fingerprint) string {
	return namespacePrefix + string(fp)
}

// Lookup loads the index stored for fp. Any failure to load is logged and
// reported as a miss.
func (c *Cache) Lookup(ctx context.Context, fp fingerprint.Fingerprint) (*vectorindex.Index, bool) {
	if !fp.Valid() {
		c.log.Warn("index cache: invalid fingerprint", slog.String("fingerprint", string(fp)))
		return nil, false
	}
	ns := Namespace(fp)
	ok, err := c.store.Exists(ns)
	if err != nil {
		c.log.Warn("index cache: stat namespace failed", slog.String("namespace", ns), slog.String("error", err.Error()))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	idx, err := vectorindex.Load(c.store, ns, c.model)
	if err != nil {
		c.log.Warn("index cache: load failed, rebuilding",
			slog.String("namespace", ns),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	c.log.Info("index cache: hit", slog.String("fingerprint", fp.Short()), slog.Int("chunks", idx.Len()))
	if c.recorder != nil {
		if err := c.recorder.RecordHit(ctx, fp, labelFrom(ctx)); err != nil {
			c.log.Warn("index cache: record hit", slog.String("error", err.Error()))
		}
	}
	return idx, true
}

// Store replaces whatever is stored for fp with idx. The old namespace is
// removed before the new one is written, so a crash in between leaves a
// torn entry that the next Lookup treats as a miss.
func (c *Cache) Store(ctx context.Context, fp fingerprint.Fingerprint, idx *vectorindex.Index) error {
	if err := c.replace(fp, idx); err != nil {
		c.log.Error("index cache: store failed",
			slog.String("fingerprint", string(fp)),
			slog.String("error", err.Error()),
		)
		return err
	}

	c.log.Info("index cache: stored", slog.String("fingerprint", fp.Short()), slog.Int("chunks", idx.Len()))
	if c.recorder != nil {
		meta := Meta{
			Label:          labelFrom(ctx),
			EmbeddingModel: idx.Model(),
			Dimension:      idx.Dimension(),
			Chunks:         idx.Len(),
			CreatedAt:      idx.CreatedAt(),
		}
		if err := c.recorder.RecordStore(ctx, fp, meta); err != nil {
			c.log.Warn("index cache: record store", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (c *Cache) replace(fp fingerprint.Fingerprint, idx *vectorindex.Index) error {
	if !fp.Valid() {
		return fmt.Errorf("indexcache: invalid fingerprint %q", fp)
	}
	if idx == nil {
		return fmt.Errorf("indexcache: nil index")
	}
	ns := Namespace(fp)
	if err := c.store.RemoveAll(ns); err != nil {
		return fmt.Errorf("indexcache: clear %s: %w", ns, err)
	}
	if err := idx.Save(c.store, ns); err != nil {
		return fmt.Errorf("indexcache: save %s: %w", ns, err)
	}
	return nil
}

// Materialize returns the cached index for fp or builds and stores one.
// The builder runs at most once per call and never on a hit. A failed
// Store does not fail the call; only a builder error is returned.
func (c *Cache) Materialize(ctx context.Context, fp fingerprint.Fingerprint, build BuildFunc) (Result, error) {
	if idx, ok := c.Lookup(ctx, fp); ok {
		return Result{Index: idx, Hit: true}, nil
	}

	started := time.Now()
	idx, err := build(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("indexcache: build: %w", err)
	}
	if idx == nil {
		return Result{}, fmt.Errorf("indexcache: build returned no index")
	}
	c.log.Info("index cache: built",
		slog.String("fingerprint", fp.Short()),
		slog.Int("chunks", idx.Len()),
		slog.Duration("took", time.Since(started)),
	)

	return Result{Index: idx, StoreErr: c.Store(ctx, fp, idx)}, nil
}

// Evict removes the entry for fp, if any.
func (c *Cache) Evict(ctx context.Context, fp fingerprint.Fingerprint) error {
	if !fp.Valid() {
		return fmt.Errorf("indexcache: invalid fingerprint %q", fp)
	}
	if err := c.store.RemoveAll(Namespace(fp)); err != nil {
		return fmt.Errorf("indexcache: evict: %w", err)
	}
	if c.recorder != nil {
		if err := c.recorder.RecordEvict(ctx, fp); err != nil {
			c.log.Warn("index cache: record evict", slog.String("error", err.Error()))
		}
	}
	return nil
}

// Entries lists the fingerprints that have a namespace on disk. Entries are
// not validated; a listed entry may still miss on Lookup.
func (c *Cache) Entries() ([]fingerprint.Fingerprint, error) {
	dirs, err := c.store.ListDirs()
	if err != nil {
		return nil, fmt.Errorf("indexcache: list: %w", err)
	}
	var out []fingerprint.Fingerprint
	for _, d := range dirs {
		if fp, ok := ParseNamespace(d); ok {
			out = append(out, fp)
		}
	}
	return out, nil
}

// ParseNamespace extracts the fingerprint from a namespace directory name.
func ParseNamespace(name string) (fingerprint.Fingerprint, bool) {
	rest, ok := strings.CutPrefix(name, namespacePrefix)
	if !ok {
		return "", false
	}
	fp := fingerprint.Fingerprint(rest)
	return fp, fp.Valid()
}

type labelKey struct{}

// WithLabel attaches a human-readable label (the uploaded file name) that
// is passed on to the Recorder.
func WithLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, labelKey{}, label)
}

func labelFrom(ctx context.Context) string {
	s, _ := ctx.Value(labelKey{}).(string)
	return s
}
