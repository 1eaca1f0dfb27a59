package catalog

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/bookbot/internal/indexcache"
	"github.com/starford/bookbot/internal/storage"
)

const reconcileDelay = 200 * time.Millisecond

// Watch follows namespace directories appearing in or disappearing from
// the cache root until ctx is cancelled, reconciling the catalog after
// each burst of changes. It calls cb (if non-nil) for every row added or
// removed.
//
// Events are debounced because a store removes and recreates its
// namespace in quick succession.
func Watch(ctx context.Context, db Catalog, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := store.Root()
	if err := w.Add(root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(reconcileDelay)
			timerCh = timer.C
		} else {
			timer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			if err := Reconcile(ctx, db, store, logger, cb); err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if _, ok := indexcache.ParseNamespace(filepath.Base(ev.Name)); !ok {
				continue
			}
			logger.Debug("watcher: namespace changed", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
