package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ItemWatcher watches a directory tree or a single file and emits debounced
// batches of file events.
type ItemWatcher struct {
	opts      Options
	fsWatcher *fsnotify.Watcher
	poller    *PollingWatcher
	debouncer *Debouncer

	events chan []FileEvent
	errors chan error
	stopCh chan struct{}

	mu      sync.RWMutex
	stopped bool
	root    string
	// only restricts events to one file when a file was watched.
	only string

	droppedBatches atomic.Uint64
}

// New creates a watcher. fsnotify is tried first unless opts.ForcePolling
// is set; polling is used if fsnotify cannot be initialised.
func New(opts Options) (*ItemWatcher, error) {
	opts = opts.WithDefaults()

	w := &ItemWatcher{
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsWatcher = fsw
			return w, nil
		}
		slog.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
	}
	w.poller = NewPollingWatcher(opts.PollInterval, opts.accept)
	return w, nil
}

// Start watches root until Stop is called or ctx is done. It blocks.
func (w *ItemWatcher) Start(ctx context.Context, root string) error {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}

	w.mu.Lock()
	w.root = absPath
	if !info.IsDir() {
		w.only = absPath
	}
	w.mu.Unlock()

	go w.forwardDebouncedEvents(ctx)

	if w.fsWatcher != nil {
		return w.startFsnotify(ctx, absPath, info.IsDir())
	}
	return w.startPolling(ctx, absPath)
}

func (w *ItemWatcher) startFsnotify(ctx context.Context, root string, isDir bool) error {
	if isDir {
		if err := w.addRecursive(root); err != nil {
			return fmt.Errorf("add directories to watcher: %w", err)
		}
	} else if err := w.fsWatcher.Add(filepath.Dir(root)); err != nil {
		return fmt.Errorf("add directory to watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *ItemWatcher) startPolling(ctx context.Context, root string) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case event, ok := <-w.poller.Events():
				if !ok {
					return
				}
				if w.wanted(event.Path) {
					w.debouncer.Add(event)
				}
			case err, ok := <-w.poller.Errors():
				if !ok {
					return
				}
				w.emitError(err)
			}
		}
	}()

	return w.poller.Start(ctx, root)
}

// handleFsnotifyEvent converts and filters fsnotify events.
func (w *ItemWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	if isDir {
		w.mu.RLock()
		single := w.only != ""
		w.mu.RUnlock()
		if event.Op&fsnotify.Create != 0 && !single && !hidden(filepath.Base(event.Name)) {
			_ = w.addRecursive(event.Name)
		}
		return
	}
	if !w.wanted(event.Name) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		op = OpDelete
	default:
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      event.Name,
		Operation: op,
		Timestamp: time.Now(),
	})
}

// wanted reports whether events for path are reported.
func (w *ItemWatcher) wanted(path string) bool {
	w.mu.RLock()
	only := w.only
	w.mu.RUnlock()

	if only != "" {
		return path == only
	}
	if hidden(filepath.Base(path)) {
		return false
	}
	return w.opts.accept(path)
}

// addRecursive adds root and its non-hidden subdirectories.
func (w *ItemWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// forwardDebouncedEvents forwards debounced batches to the output channel.
func (w *ItemWatcher) forwardDebouncedEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case events, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			if len(events) > 0 {
				w.emitEvents(events)
			}
		}
	}
}

func (w *ItemWatcher) emitEvents(events []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}
	select {
	case w.events <- events:
	default:
		count := w.droppedBatches.Add(1)
		slog.Warn("event_buffer_full",
			slog.Int("batch_size", len(events)),
			slog.Uint64("total_dropped_batches", count))
	}
}

func (w *ItemWatcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Stop stops the watcher and closes its channels. Safe to call multiple
// times.
func (w *ItemWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)

	w.debouncer.Stop()
	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	if w.poller != nil {
		_ = w.poller.Stop()
	}

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of batched file events.
func (w *ItemWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns the channel of non-fatal watcher errors.
func (w *ItemWatcher) Errors() <-chan error {
	return w.errors
}

// DroppedBatches returns the number of batches dropped on a full buffer.
func (w *ItemWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

// Mode returns "fsnotify" or "polling".
func (w *ItemWatcher) Mode() string {
	if w.fsWatcher != nil {
		return "fsnotify"
	}
	return "polling"
}
