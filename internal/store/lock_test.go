package store

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFileLockExclusiveBlocksSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	first := NewFileLock(path)
	if err := first.LockExclusive(); err != nil {
		t.Fatalf("first LockExclusive() error: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		second := NewFileLock(path)
		if err := second.LockExclusive(); err != nil {
			t.Errorf("second LockExclusive() error: %v", err)
			return
		}
		second.Unlock()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second LockExclusive() acquired while first still held")
	case <-time.After(100 * time.Millisecond):
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock() error: %v", err)
	}

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second LockExclusive() never acquired after first Unlock()")
	}
}

func TestFileLockSharedAllowsMultipleReaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	a := NewFileLock(path)
	b := NewFileLock(path)

	if err := a.LockShared(); err != nil {
		t.Fatalf("a.LockShared() error: %v", err)
	}
	defer a.Unlock()

	done := make(chan error, 1)
	go func() { done <- b.LockShared() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("b.LockShared() error: %v", err)
		}
		b.Unlock()
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent shared lock never acquired")
	}
}
