package ingest

import (
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/TFMV/dirgraph/models"
)

// DefaultDebounce is how long Watch waits after the last write before
// reading the file.
const DefaultDebounce = 100 * time.Millisecond

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	debounce time.Duration
	logger   *log.Logger
}

// WithDebounce sets the quiet period after the last change event.
func WithDebounce(d time.Duration) WatchOption {
	return func(c *watchConfig) { c.debounce = d }
}

// WithWatchLogger sets the watcher's logger.
func WithWatchLogger(l *log.Logger) WatchOption {
	return func(c *watchConfig) { c.logger = l }
}

// Watch calls fn with the parsed contents of path each time the file is
// written or created, which covers replacement by rename. Bursts of events
// are debounced. Parse failures are passed to fn so the caller decides whether to keep
// the previous data. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, fn func([]*models.Edge, error), opts ...WatchOption) error {
	cfg := watchConfig{debounce: DefaultDebounce, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(&cfg)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace files by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	cfg.logger.Debug("watching", "path", abs)

	// Idle until the first event arms the timer.
	debounce := time.NewTimer(math.MaxInt64)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			debounce.Reset(cfg.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cfg.logger.Warn("watcher error", "path", abs, "err", err)

		case <-debounce.C:
			edges, err := ProcessFile(abs)
			if err == nil {
				cfg.logger.Info("reloaded", "path", abs, "edges", len(edges))
			}
			fn(edges, err)
		}
	}
}
