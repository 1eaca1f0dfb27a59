package catalog

import (
	"context"
	"log/slog"

	"github.com/starford/bookbot/internal/fingerprint"
	"github.com/starford/bookbot/internal/indexcache"
	"github.com/starford/bookbot/internal/storage"
	"github.com/starford/bookbot/internal/vectorindex"
)

// Change kinds reported by Reconcile and Watch.
const (
	ChangeAdded   = "added"
	ChangeRemoved = "removed"
)

// EventCallback is called after a catalog change caused by the cache
// directory. kind is ChangeAdded or ChangeRemoved.
type EventCallback func(kind string, fp fingerprint.Fingerprint)

// Reconcile brings the catalog in line with the cache directory:
//   - rows whose namespace no longer exists are deleted
//   - namespaces with a readable manifest but no row are added
//
// Namespaces without a readable manifest are left alone; the cache treats
// them as misses and replaces them on the next store.
func Reconcile(ctx context.Context, db Catalog, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	dirs, err := store.ListDirs()
	if err != nil {
		return err
	}
	known, err := db.AllFingerprints(ctx)
	if err != nil {
		return err
	}

	disk := make(map[fingerprint.Fingerprint]string, len(dirs))
	for _, d := range dirs {
		if fp, ok := indexcache.ParseNamespace(d); ok {
			disk[fp] = d
		}
	}

	for fp := range known {
		if _, ok := disk[fp]; ok {
			continue
		}
		if err := db.Delete(ctx, fp); err != nil {
			logger.Warn("reconcile: delete failed", slog.String("fingerprint", fp.Short()), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("reconcile: removed stale", slog.String("fingerprint", fp.Short()))
		if cb != nil {
			cb(ChangeRemoved, fp)
		}
	}

	for fp, dir := range disk {
		if _, ok := known[fp]; ok {
			continue
		}
		m, err := vectorindex.ReadManifest(store, dir)
		if err != nil {
			logger.Debug("reconcile: skip unreadable entry", slog.String("namespace", dir), slog.String("error", err.Error()))
			continue
		}
		meta := indexcache.Meta{
			EmbeddingModel: m.EmbeddingModel,
			Dimension:      m.Dimension,
			Chunks:         m.Chunks,
			CreatedAt:      m.CreatedAt,
		}
		if err := db.RecordStore(ctx, fp, meta); err != nil {
			logger.Warn("reconcile: add failed", slog.String("fingerprint", fp.Short()), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("reconcile: added untracked", slog.String("fingerprint", fp.Short()))
		if cb != nil {
			cb(ChangeAdded, fp)
		}
	}
	return nil
}
