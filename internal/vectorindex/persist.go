package vectorindex

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/starford/bookbot/internal/fingerprint"
	"github.com/starford/bookbot/internal/storage"
)

// FormatVersion is bumped whenever the on-disk layout changes.
const FormatVersion = 1

// Files inside a namespace. The manifest is written last and marks the
// entry as complete.
const (
	ManifestFile = "manifest.json"
	PayloadFile  = "index.zst"
)

var (
	// ErrIncompatible means the entry was written by another format version
	// or embedding model.
	ErrIncompatible = errors.New("vectorindex: incompatible entry")
	// ErrCorrupt means the entry is unreadable, truncated, or fails its checksum.
	ErrCorrupt = errors.New("vectorindex: corrupt entry")
)

// Manifest describes a stored index without loading its payload.
type Manifest struct {
	FormatVersion  int       `json:"format_version"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	Chunks         int       `json:"chunks"`
	PayloadSHA256  string    `json:"payload_sha256"`
	CreatedAt      time.Time `json:"created_at"`
}

type payload struct {
	Chunks  []string    `json:"chunks"`
	Vectors [][]float32 `json:"vectors"`
}

// Save writes the index into dir under store.
func (idx *Index) Save(store storage.Provider, dir string) error {
	raw, err := json.Marshal(payload{Chunks: idx.chunks, Vectors: idx.vectors})
	if err != nil {
		return fmt.Errorf("vectorindex: encode payload: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("vectorindex: zstd writer: %w", err)
	}
	compressed := enc.EncodeAll(raw, nil)
	_ = enc.Close()

	if err := store.Write(path.Join(dir, PayloadFile), compressed); err != nil {
		return err
	}

	m, err := json.MarshalIndent(Manifest{
		FormatVersion:  FormatVersion,
		EmbeddingModel: idx.model,
		Dimension:      idx.dimension,
		Chunks:         len(idx.chunks),
		PayloadSHA256:  fingerprint.Sum(raw).String(),
		CreatedAt:      idx.createdAt,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("vectorindex: encode manifest: %w", err)
	}
	return store.Write(path.Join(dir, ManifestFile), m)
}

// ReadManifest reads only the manifest of the index stored in dir.
func ReadManifest(store storage.Provider, dir string) (Manifest, error) {
	var m Manifest
	raw, err := store.Read(path.Join(dir, ManifestFile))
	if err != nil {
		return m, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("%w: manifest: %w", ErrCorrupt, err)
	}
	if m.FormatVersion != FormatVersion {
		return m, fmt.Errorf("%w: format version %d, want %d", ErrIncompatible, m.FormatVersion, FormatVersion)
	}
	return m, nil
}

// Load reads the index stored in dir. When expectModel is non-empty the entry
// must have been built with that embedding model.
func Load(store storage.Provider, dir, expectModel string) (*Index, error) {
	m, err := ReadManifest(store, dir)
	if err != nil {
		return nil, err
	}
	if expectModel != "" && m.EmbeddingModel != expectModel {
		return nil, fmt.Errorf("%w: embedding model %q, want %q", ErrIncompatible, m.EmbeddingModel, expectModel)
	}

	compressed, err := store.Read(path.Join(dir, PayloadFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: zstd reader: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %w", ErrCorrupt, err)
	}
	if sum := fingerprint.Sum(raw).String(); sum != m.PayloadSHA256 {
		return nil, fmt.Errorf("%w: payload checksum mismatch", ErrCorrupt)
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrCorrupt, err)
	}
	if len(p.Chunks) != m.Chunks {
		return nil, fmt.Errorf("%w: %d chunks, manifest says %d", ErrCorrupt, len(p.Chunks), m.Chunks)
	}
	idx, err := newIndex(m.EmbeddingModel, p.Chunks, p.Vectors, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if idx.dimension != m.Dimension {
		return nil, fmt.Errorf("%w: dimension %d, manifest says %d", ErrCorrupt, idx.dimension, m.Dimension)
	}
	return idx, nil
}
