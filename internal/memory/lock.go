package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	mnemoErrors "github.com/mnemo-oss/mnemo/internal/errors"
)

// FileLock is an advisory lock guarding exclusive ownership of a
// persistence file. The lock is a sidecar file created with O_EXCL and
// holding the owner's pid; concurrent runs against the same persistence
// file refuse to start.
type FileLock struct {
	path string
}

// LockPath returns the lock sidecar path for a persistence file.
func LockPath(persistencePath string) string {
	return persistencePath + ".lock"
}

// AcquireLock takes the advisory lock for the given persistence file.
func AcquireLock(persistencePath string) (*FileLock, error) {
	path := LockPath(persistencePath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, mnemoErrors.Wrap(mnemoErrors.CodeIO, "failed to create lock directory", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			pid, _ := LockOwner(persistencePath)
			return nil, mnemoErrors.New(mnemoErrors.CodeLockHeld,
				fmt.Sprintf("persistence file is locked by pid %d", pid)).
				WithSuggestion("Stop the other mnemo instance, or remove the lock file if that process is gone")
		}
		return nil, mnemoErrors.Wrap(mnemoErrors.CodeIO, "failed to create lock file", err)
	}

	fmt.Fprintf(f, "%d\n", os.Getpid())
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, mnemoErrors.Wrap(mnemoErrors.CodeIO, "failed to write lock file", err)
	}

	return &FileLock{path: path}, nil
}

// Release removes the lock file.
func (l *FileLock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return mnemoErrors.Wrap(mnemoErrors.CodeIO, "failed to remove lock file", err)
	}
	return nil
}

// LockOwner returns the pid recorded in the lock file for a persistence
// path. When no lock is held the error satisfies os.IsNotExist, so
// callers can tell a free lock from an unreadable one.
func LockOwner(persistencePath string) (int, error) {
	data, err := os.ReadFile(LockPath(persistencePath))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed lock file: %w", err)
	}
	return pid, nil
}
