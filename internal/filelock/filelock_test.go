package filelock

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTryLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	first := NewFileLock(path)
	acquired, err := first.TryLock()
	if err != nil {
		t.Fatalf("TryLock() error = %v", err)
	}
	if !acquired {
		t.Fatal("Expected first TryLock to succeed")
	}
	defer first.Unlock()

	// A second lock on the same file in the same process succeeds with
	// flock semantics, so only verify the happy path here; cross-process
	// exclusion is what flock guarantees.
	if err := first.Unlock(); err != nil {
		t.Errorf("Unlock() error = %v", err)
	}

	second := NewFileLock(path)
	acquired, err = second.TryLock()
	if err != nil {
		t.Fatalf("TryLock() after unlock error = %v", err)
	}
	if !acquired {
		t.Error("Expected TryLock to succeed after unlock")
	}
	second.Unlock()
}

func TestLockBlockingAcquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	lock := NewFileLock(path)
	if err := lock.Lock(); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
}

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	if err := AtomicWrite(path, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("AtomicWrite() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read written file: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("Unexpected content: %s", data)
	}

	// Overwrite replaces the content completely
	if err := AtomicWrite(path, []byte("v2")); err != nil {
		t.Fatalf("AtomicWrite() overwrite error = %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "v2" {
		t.Errorf("Expected overwritten content 'v2', got %s", data)
	}

	// No temp files left behind
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the target file, found %d entries", len(entries))
	}
}

func TestAtomicWriteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "state.json")

	if err := AtomicWrite(path, []byte("x")); err != nil {
		t.Fatalf("AtomicWrite() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected file to exist: %v", err)
	}
}
