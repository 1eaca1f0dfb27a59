package catalog

import (
	"context"

	"github.com/starford/bookbot/internal/fingerprint"
	"github.com/starford/bookbot/internal/indexcache"
)

// Catalog defines the book catalog operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type Catalog interface {
	indexcache.Recorder
	Get(ctx context.Context, fp fingerprint.Fingerprint) (*BookRow, error)
	List(ctx context.Context, limit, offset int, filter string) ([]BookRow, int, error)
	Delete(ctx context.Context, fp fingerprint.Fingerprint) error
	AllFingerprints(ctx context.Context) (map[fingerprint.Fingerprint]struct{}, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)
