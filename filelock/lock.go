// Package filelock wraps an OS advisory exclusive lock around the path a
// Writer session holds open, so only one Writer can mutate a container file
// at a time (spec §5: "the file is guarded by an advisory OS-level
// exclusive lock for the entire Writer session; try-lock; fail fast if
// held").
package filelock

import (
	"fmt"

	"github.com/gofrs/flock"

	"github.com/RobLovegrove/umdf-go/errs"
)

// Lock holds an exclusive advisory lock on one path's ".lock" sibling file
// for the duration of a Writer session.
type Lock struct {
	fl *flock.Flock
}

// Acquire try-locks path's lock file, failing fast rather than blocking if
// another process already holds it (spec §5: "try-lock; fail fast if
// held").
func Acquire(path string) (*Lock, error) {
	fl := flock.New(path + ".lock")

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("filelock: try-lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", errs.ErrLockHeld, path)
	}

	return &Lock{fl: fl}, nil
}

// Release drops the lock. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("filelock: unlock: %w", err)
	}
	return nil
}
