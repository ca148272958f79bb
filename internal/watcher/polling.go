package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PollingWatcher detects changes by periodically scanning the watched path.
// Used as a fallback when fsnotify is not available or fails.
type PollingWatcher struct {
	interval time.Duration
	accept   func(path string) bool

	mu        sync.Mutex
	fileState map[string]fileSnapshot
	events    chan FileEvent
	errors    chan error
	stopCh    chan struct{}
	stopped   bool
	root      string
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a polling watcher reporting files for which
// accept returns true. A nil accept reports every file.
func NewPollingWatcher(interval time.Duration, accept func(string) bool) *PollingWatcher {
	if accept == nil {
		accept = func(string) bool { return true }
	}
	return &PollingWatcher{
		interval:  interval,
		accept:    accept,
		fileState: make(map[string]fileSnapshot),
		events:    make(chan FileEvent, 100),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}
}

// Start scans root every interval until Stop is called or ctx is done.
// root may be a directory or a single file.
func (p *PollingWatcher) Start(ctx context.Context, root string) error {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	p.mu.Lock()
	p.root = absPath
	p.fileState = p.snapshot()
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.detectChanges()
		}
	}
}

// snapshot walks root and records accepted files. Must be called with
// lock held.
func (p *PollingWatcher) snapshot() map[string]fileSnapshot {
	state := make(map[string]fileSnapshot)
	_ = filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == p.root && !os.IsNotExist(err) {
				p.emitError(fmt.Errorf("scan %s: %w", path, err))
			}
			return nil
		}
		if d.IsDir() || !p.accept(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		state[path] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	return state
}

// detectChanges compares a fresh snapshot with the previous one.
func (p *PollingWatcher) detectChanges() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}

	now := time.Now()
	current := p.snapshot()
	for path, snap := range current {
		prev, ok := p.fileState[path]
		switch {
		case !ok:
			p.emitEvent(FileEvent{Path: path, Operation: OpCreate, Timestamp: now})
		case prev != snap:
			p.emitEvent(FileEvent{Path: path, Operation: OpModify, Timestamp: now})
		}
	}
	for path := range p.fileState {
		if _, ok := current[path]; !ok {
			p.emitEvent(FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
		}
	}
	p.fileState = current
}

// emitEvent sends without blocking. Must be called with lock held.
func (p *PollingWatcher) emitEvent(event FileEvent) {
	if p.stopped {
		return
	}
	select {
	case p.events <- event:
	default:
		slog.Warn("polling_buffer_full",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()))
	}
}

// emitError sends without blocking. Must be called with lock held.
func (p *PollingWatcher) emitError(err error) {
	if p.stopped {
		return
	}
	select {
	case p.errors <- err:
	default:
	}
}

// Stop stops the polling watcher. Safe to call multiple times.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns the channel of scan errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}
