package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mnemo-oss/mnemo/internal/memory"
)

func TestLockHeldBy_NoLockFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")

	pid, held := lockHeldBy(path)
	if held {
		t.Fatalf("clean workspace reported as locked by pid %d", pid)
	}
}

func TestLockHeldBy_ActiveLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")

	lock, err := memory.AcquireLock(path)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	pid, held := lockHeldBy(path)
	if !held {
		t.Fatal("held lock reported as free")
	}
	if pid != os.Getpid() {
		t.Errorf("owner pid: got %d, want %d", pid, os.Getpid())
	}
}

func TestLockHeldBy_ReleasedLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")

	lock, err := memory.AcquireLock(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := lock.Release(); err != nil {
		t.Fatal(err)
	}

	if pid, held := lockHeldBy(path); held {
		t.Fatalf("released lock reported as held by pid %d", pid)
	}
}
