// Package lock provides an exclusive filesystem lock so only one pipeline
// invocation runs at a time.
package lock

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrBusy means another invocation holds the lock
var ErrBusy = errors.New("pipeline lock is held by another process")

// DefaultPath is the lock file used when none is configured
const DefaultPath = ".pipeline.lock"

// FileLock is an exclusive lock backed by O_EXCL file creation. The file
// records the holder's PID for operator diagnostics.
type FileLock struct {
	path string
	held bool
}

// New creates a lock at path; empty path uses DefaultPath
func New(path string) *FileLock {
	if path == "" {
		path = DefaultPath
	}
	return &FileLock{path: path}
}

// Acquire takes the lock. It fails with ErrBusy when the lock file already
// exists, without blocking.
func (l *FileLock) Acquire() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%s: %w", l.path, ErrBusy)
		}
		return fmt.Errorf("failed to create lock file %s: %w", l.path, err)
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	if err := f.Close(); err != nil {
		_ = os.Remove(l.path)
		return fmt.Errorf("failed to write lock file %s: %w", l.path, err)
	}
	l.held = true
	return nil
}

// Release drops the lock. Safe to call when the lock was never acquired.
func (l *FileLock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file %s: %w", l.path, err)
	}
	return nil
}
