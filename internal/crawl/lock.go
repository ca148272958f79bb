package crawl

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	crawlerrors "github.com/Aman-CERP/fieldcrawl/internal/errors"
)

// LockFileName is the lock file created in the index data directory.
const LockFileName = ".crawl.lock"

// IndexLock guards an on-disk index against concurrent crawlers, across
// processes, using gofrs/flock.
type IndexLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewIndexLock creates a lock for the index data directory dir.
func NewIndexLock(dir string) *IndexLock {
	lockPath := filepath.Join(dir, LockFileName)
	return &IndexLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Acquire takes the lock without blocking. If another crawler holds it the
// error has code ERR_204_INDEX_LOCKED.
func (l *IndexLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return crawlerrors.IOError("failed to create lock directory", err).WithDetail("path", l.path)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return crawlerrors.IOError("failed to acquire index lock", err).WithDetail("path", l.path)
	}
	if !acquired {
		return crawlerrors.New(crawlerrors.ErrCodeIndexLocked, "index is being written by another crawler", nil).
			WithDetail("path", l.path).
			WithSuggestion("Wait for the other crawl to finish or point index.path elsewhere")
	}

	l.locked = true
	return nil
}

// Release releases the lock. Safe to call multiple times.
func (l *IndexLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *IndexLock) Path() string {
	return l.path
}

// IsLocked returns true if the lock is currently held.
func (l *IndexLock) IsLocked() bool {
	return l.locked
}
