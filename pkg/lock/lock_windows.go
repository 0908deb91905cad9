//go:build windows

package lock

import (
	"os"

	"golang.org/x/sys/windows"
)

// lockFile implements the same shared/exclusive semantics via LockFileEx,
// matching spec.md §9's note that Windows self-replacement and locking
// need their own pending/locked-file handling.
func lockFile(f *os.File, exclusive bool) error {
	var flags uint32
	if exclusive {
		flags = windows.LOCKFILE_EXCLUSIVE_LOCK
	}
	ol := new(windows.Overlapped)
	return windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, 1, 0, ol)
}

func unlockFile(f *os.File) error {
	ol := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, ol)
}
