package ingest

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/TomaszPitak/confluence/internal/errors"
)

// Lock serializes ingestion passes over one tree root using a
// cross-process file lock. Two concurrent passes would interleave
// read-modify-write cycles and corrupt merged records.
type Lock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewLock creates a lock for the tree rooted at dir. The lock file is
// created at <dir>/.ingest.lock.
func NewLock(dir string) *Lock {
	lockPath := filepath.Join(dir, ".ingest.lock")
	return &Lock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Acquire takes the lock without blocking. A held lock is an error, not
// a wait: the caller reports it and exits.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeFilePermission, err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return errors.Wrap(errors.ErrCodeWorkdirLocked, err)
	}
	if !acquired {
		return errors.New(errors.ErrCodeWorkdirLocked,
			"another ingestion is writing to this tree", nil).
			WithDetail("lock", l.path).
			WithSuggestion("Wait for the other ingestion to finish")
	}

	l.locked = true
	return nil
}

// Release releases the lock. Safe to call on an unlocked Lock.
func (l *Lock) Release() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		l.locked = false
		return errors.Wrap(errors.ErrCodeInternal, err)
	}
	l.locked = false
	return nil
}

// Path returns the path to the lock file.
func (l *Lock) Path() string {
	return l.path
}
