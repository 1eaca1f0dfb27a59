package indexcache

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/bookbot/internal/fingerprint"
	"github.com/starford/bookbot/internal/storage"
	"github.com/starford/bookbot/internal/testutil"
	"github.com/starford/bookbot/internal/vectorindex"
)

var chunks = []string{
	"Call me Ishmael.",
	"The whale was white and very large.",
	"Queequeg carved his coffin into a life buoy.",
}

type counter struct {
	emb   *testutil.Embedder
	calls int
}

func (c *counter) build(ctx context.Context) (*vectorindex.Index, error) {
	c.calls++
	return vectorindex.Build(ctx, chunks, c.emb, vectorindex.BuildOptions{})
}

type fakeRecorder struct {
	mu      sync.Mutex
	stores  []Meta
	hits    []string
	evicted []fingerprint.Fingerprint
}

func (r *fakeRecorder) RecordStore(_ context.Context, _ fingerprint.Fingerprint, m Meta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores = append(r.stores, m)
	return nil
}

func (r *fakeRecorder) RecordHit(_ context.Context, _ fingerprint.Fingerprint, label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits = append(r.hits, label)
	return nil
}

func (r *fakeRecorder) RecordEvict(_ context.Context, fp fingerprint.Fingerprint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evicted = append(r.evicted, fp)
	return nil
}

// failingWrites wraps a provider and fails every Write.
type failingWrites struct {
	storage.Provider
}

func (failingWrites) Write(string, []byte) error { return errors.New("disk full") }

func newStore(t *testing.T) storage.Provider {
	t.Helper()
	s, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	return s
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

func TestLookupMissOnEmptyCache(t *testing.T) {
	c := New(newStore(t))
	idx, ok := c.Lookup(context.Background(), fingerprint.Sum([]byte("book")))
	assert.False(t, ok)
	assert.Nil(t, idx)
}

func TestMaterializeBuildsOnceThenHits(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	fp := fingerprint.Sum([]byte("moby dick"))
	b := &counter{emb: &testutil.Embedder{}}

	first, err := New(store).Materialize(ctx, fp, b.build)
	require.NoError(t, err)
	assert.False(t, first.Hit)
	assert.NoError(t, first.StoreErr)
	assert.Equal(t, 1, b.calls)

	// A fresh cache over the same root models a new session or process.
	second, err := New(store).Materialize(ctx, fp, b.build)
	require.NoError(t, err)
	assert.True(t, second.Hit)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, first.Index.Len(), second.Index.Len())
	for i := 0; i < first.Index.Len(); i++ {
		assert.Equal(t, first.Index.Chunk(i), second.Index.Chunk(i))
	}
}

func TestStoreThenLookup(t *testing.T) {
	ctx := context.Background()
	c := New(newStore(t))
	fp := fingerprint.Sum([]byte("x"))
	idx, err := vectorindex.Build(ctx, chunks, &testutil.Embedder{}, vectorindex.BuildOptions{})
	require.NoError(t, err)

	require.NoError(t, c.Store(ctx, fp, idx))
	got, ok := c.Lookup(ctx, fp)
	require.True(t, ok)
	assert.Equal(t, idx.Len(), got.Len())
	assert.Equal(t, idx.Model(), got.Model())
}

func TestStoreReplacesWholeEntry(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c := New(store)
	fp := fingerprint.Sum([]byte("x"))
	emb := &testutil.Embedder{}

	a, err := vectorindex.Build(ctx, chunks, emb, vectorindex.BuildOptions{})
	require.NoError(t, err)
	require.NoError(t, c.Store(ctx, fp, a))
	require.NoError(t, store.Write(Namespace(fp)+"/stale.bin", []byte("left over")))

	b, err := vectorindex.Build(ctx, chunks[:1], emb, vectorindex.BuildOptions{})
	require.NoError(t, err)
	require.NoError(t, c.Store(ctx, fp, b))

	entries, err := c.Entries()
	require.NoError(t, err)
	assert.Equal(t, []fingerprint.Fingerprint{fp}, entries)

	stale, err := store.Exists(Namespace(fp) + "/stale.bin")
	require.NoError(t, err)
	assert.False(t, stale)

	got, ok := c.Lookup(ctx, fp)
	require.True(t, ok)
	assert.Equal(t, 1, got.Len())
}

func TestCorruptEntryIsRebuilt(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	log, buf := bufferLogger()
	c := New(store, WithLogger(log))
	fp := fingerprint.Sum([]byte("corrupt"))
	require.NoError(t, store.Write(Namespace(fp)+"/"+vectorindex.ManifestFile, []byte("garbage")))

	_, ok := c.Lookup(ctx, fp)
	assert.False(t, ok)
	assert.Contains(t, buf.String(), `"level":"WARN"`)

	b := &counter{emb: &testutil.Embedder{}}
	res, err := c.Materialize(ctx, fp, b.build)
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, 1, b.calls)

	_, ok = c.Lookup(ctx, fp)
	assert.True(t, ok)
}

func TestTruncatedPayloadAfterStoreIsRebuilt(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	fp := fingerprint.Sum([]byte("truncated"))
	b := &counter{emb: &testutil.Embedder{}}

	first, err := New(store).Materialize(ctx, fp, b.build)
	require.NoError(t, err)
	require.NoError(t, first.StoreErr)

	// A crash mid-write leaves a short payload behind a valid manifest.
	payload := Namespace(fp) + "/" + vectorindex.PayloadFile
	data, err := store.Read(payload)
	require.NoError(t, err)
	require.NoError(t, store.Write(payload, data[:len(data)/2]))

	log, buf := bufferLogger()
	c := New(store, WithLogger(log))
	res, err := c.Materialize(ctx, fp, b.build)
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, 2, b.calls, "a torn entry must be rebuilt")
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	require.Equal(t, len(chunks), res.Index.Len())
	for i := range chunks {
		assert.Equal(t, chunks[i], res.Index.Chunk(i))
	}

	got, ok := c.Lookup(ctx, fp)
	require.True(t, ok, "the rebuilt entry replaces the torn one")
	assert.Equal(t, len(chunks), got.Len())
}

func TestOtherEmbeddingModelMisses(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	fp := fingerprint.Sum([]byte("model"))
	b := &counter{emb: &testutil.Embedder{Name: "small"}}
	_, err := New(store, WithEmbeddingModel("small")).Materialize(ctx, fp, b.build)
	require.NoError(t, err)

	_, ok := New(store, WithEmbeddingModel("large")).Lookup(ctx, fp)
	assert.False(t, ok)
	_, ok = New(store, WithEmbeddingModel("small")).Lookup(ctx, fp)
	assert.True(t, ok)
}

func TestStoreFailureStillReturnsIndex(t *testing.T) {
	ctx := context.Background()
	log, buf := bufferLogger()
	c := New(failingWrites{newStore(t)}, WithLogger(log))
	fp := fingerprint.Sum([]byte("readonly"))
	b := &counter{emb: &testutil.Embedder{}}

	res, err := c.Materialize(ctx, fp, b.build)
	require.NoError(t, err)
	require.NotNil(t, res.Index)
	assert.Error(t, res.StoreErr)
	assert.Equal(t, len(chunks), res.Index.Len())
	assert.Contains(t, buf.String(), `"level":"ERROR"`)

	_, ok := c.Lookup(ctx, fp)
	assert.False(t, ok)
}

func TestBuilderFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	c := New(newStore(t))
	fp := fingerprint.Sum([]byte("fail"))
	boom := errors.New("embedding quota")

	_, err := c.Materialize(ctx, fp, func(context.Context) (*vectorindex.Index, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	entries, err := c.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDistinctFingerprintsDistinctNamespaces(t *testing.T) {
	ctx := context.Background()
	c := New(newStore(t))
	emb := &testutil.Embedder{}
	one := fingerprint.Sum([]byte("one"))
	two := fingerprint.Sum([]byte("two"))
	assert.NotEqual(t, Namespace(one), Namespace(two))

	_, err := c.Materialize(ctx, one, (&counter{emb: emb}).build)
	require.NoError(t, err)
	_, err = c.Materialize(ctx, two, (&counter{emb: emb}).build)
	require.NoError(t, err)

	entries, err := c.Entries()
	require.NoError(t, err)
	assert.ElementsMatch(t, []fingerprint.Fingerprint{one, two}, entries)
}

func TestRecorderAndEvict(t *testing.T) {
	ctx := WithLabel(context.Background(), "moby.pdf")
	rec := &fakeRecorder{}
	c := New(newStore(t), WithRecorder(rec))
	fp := fingerprint.Sum([]byte("rec"))
	b := &counter{emb: &testutil.Embedder{Dim: 8}}

	_, err := c.Materialize(ctx, fp, b.build)
	require.NoError(t, err)
	_, err = c.Materialize(ctx, fp, b.build)
	require.NoError(t, err)

	require.Len(t, rec.stores, 1)
	assert.Equal(t, "moby.pdf", rec.stores[0].Label)
	assert.Equal(t, 8, rec.stores[0].Dimension)
	assert.Equal(t, len(chunks), rec.stores[0].Chunks)
	assert.Equal(t, []string{"moby.pdf"}, rec.hits)

	require.NoError(t, c.Evict(ctx, fp))
	assert.Equal(t, []fingerprint.Fingerprint{fp}, rec.evicted)
	_, ok := c.Lookup(ctx, fp)
	assert.False(t, ok)
}

func TestInvalidFingerprint(t *testing.T) {
	ctx := context.Background()
	c := New(newStore(t))
	_, ok := c.Lookup(ctx, "../../etc")
	assert.False(t, ok)
	assert.Error(t, c.Evict(ctx, "nope"))
}

func TestParseNamespace(t *testing.T) {
	fp := fingerprint.Sum([]byte("p"))
	got, ok := ParseNamespace(Namespace(fp))
	assert.True(t, ok)
	assert.Equal(t, fp, got)

	_, ok = ParseNamespace("vector_store_xyz")
	assert.False(t, ok)
	_, ok = ParseNamespace("other")
	assert.False(t, ok)
}
