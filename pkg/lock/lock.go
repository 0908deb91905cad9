// Package lock provides cross-process advisory file locking used for the
// coarse settings lock and the per-identity toolchain locks (spec.md §5).
// Readers take a shared lock; installers take an exclusive lock.
package lock

import (
	"context"
	"fmt"
	"os"
	"time"
)

// warnAfter is how long Acquire waits before reporting progress to the
// caller-supplied callback, per spec.md §5 ("a progress message after 1s
// of waiting").
const warnAfter = 1 * time.Second

// Lock is a held advisory lock; call Unlock to release it.
type Lock struct {
	file *os.File
}

// Unlock releases the lock and closes the underlying file handle.
func (l *Lock) Unlock() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := unlockFile(l.file); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}

// AcquireShared blocks until a shared (reader) lock on path is obtained, or
// ctx is cancelled. onWait, if non-nil, is invoked once if the wait exceeds
// warnAfter.
func AcquireShared(ctx context.Context, path string, onWait func()) (*Lock, error) {
	return acquire(ctx, path, false, onWait)
}

// AcquireExclusive blocks until an exclusive (writer) lock on path is
// obtained, or ctx is cancelled.
func AcquireExclusive(ctx context.Context, path string, onWait func()) (*Lock, error) {
	return acquire(ctx, path, true, onWait)
}

func acquire(ctx context.Context, path string, exclusive bool, onWait func()) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file %s: %w", path, err)
	}

	done := make(chan error, 1)
	go func() { done <- lockFile(f, exclusive) }()

	timer := time.NewTimer(warnAfter)
	defer timer.Stop()

	for {
		select {
		case err := <-done:
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("locking %s: %w", path, err)
			}
			return &Lock{file: f}, nil
		case <-timer.C:
			if onWait != nil {
				onWait()
			}
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		}
	}
}
