package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	SkipHidden  bool          // ignore dot files and dot directories
	InitialScan bool          // if true, walk roots and emit existing documents as the first burst
	Debounce    time.Duration // coalesce rapid create/write bursts into one emission
	Logger      *slog.Logger
}

// StartWatcher emits the sorted set of Markdown paths touched during each quiet-terminated burst.
// Both channels close when ctx ends.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan []string, <-chan error, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		log.Error("ingest.watch.start_failed", "error", "no roots provided")
		return nil, nil, errors.New("no roots provided")
	}
	evCh := make(chan []string, 16)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error("ingest.watch.start_failed", "error", err)
		return nil, nil, err
	}

	pending := map[string]struct{}{}
	addDir := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if cfg.SkipHidden && path != root && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && AllowedExt(filepath.Ext(path)) {
				pending[path] = struct{}{}
			}
			return nil
		})
	}
	for _, r := range cfg.Roots {
		if err := addDir(r); err != nil {
			log.Error("ingest.watch.add_failed", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func(w *fsnotify.Watcher) {
			if err := w.Close(); err != nil {
				log.Warn("ingest.watch.close_failed", "error", err)
			}
		}(w)

		debounce := cfg.Debounce
		if debounce <= 0 {
			debounce = time.Millisecond
		}
		timer := time.NewTimer(time.Hour)
		timer.Stop()
		if len(pending) > 0 {
			timer.Reset(debounce)
		}

		flush := func() {
			if len(pending) == 0 {
				return
			}
			burst := make([]string, 0, len(pending))
			for p := range pending {
				burst = append(burst, p)
			}
			sort.Strings(burst)
			clear(pending)
			select {
			case evCh <- burst:
				log.Info("ingest.watch.burst", "documents", len(burst))
			case <-ctx.Done():
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if cfg.SkipHidden && IsHidden(e.Name) {
					continue
				}
				if e.Op&fsnotify.Create == fsnotify.Create {
					// new directories are watched too; Add fails harmlessly for files
					_ = w.Add(e.Name)
				}
				if AllowedExt(filepath.Ext(e.Name)) && e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					pending[e.Name] = struct{}{}
					timer.Reset(debounce)
				}
			case <-timer.C:
				flush()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error("ingest.watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}
