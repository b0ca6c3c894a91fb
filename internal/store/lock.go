package store

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

// FileLock is an advisory, cross-process lock backed by flock(2). The store
// and installed-set database share one lock file per root so that two
// zerobrew processes never mutate the same keg or db concurrently.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock returns a FileLock for path. The lock file is created on
// first acquisition if missing.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// LockExclusive blocks until an exclusive lock on the file is held.
func (l *FileLock) LockExclusive() error {
	return l.lock(unix.LOCK_EX)
}

// LockShared blocks until a shared lock on the file is held.
func (l *FileLock) LockShared() error {
	return l.lock(unix.LOCK_SH)
}

func (l *FileLock) lock(how int) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	if err := unix.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		return &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	l.file = f
	return nil
}

// Unlock releases the lock and closes the underlying file descriptor.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	defer func() {
		l.file.Close()
		l.file = nil
	}()
	return unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
}
