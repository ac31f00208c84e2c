// Package fsutil provides locked whole-file reads and writes for small state
// files shared between cooperating local processes.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// File permission constants
const (
	// PermStateFile is the permission for per-user state files.
	PermStateFile os.FileMode = 0600

	// PermStateDir is the permission for directories holding state files.
	PermStateDir os.FileMode = 0700
)

// ErrLockFailed is returned when the exclusive lock cannot be taken.
var ErrLockFailed = errors.New("fsutil: lock failed")

// LockFile acquires an exclusive lock on the whole file, blocking until it is
// available. This is platform-specific and uses flock on Unix.
func LockFile(f *os.File) error {
	if err := lockFile(f); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLockFailed, f.Name(), err)
	}
	return nil
}

// UnlockFile releases the exclusive lock on a file.
func UnlockFile(f *os.File) error {
	return unlockFile(f)
}

// ReadLocked reads the whole file while holding an exclusive lock on it.
// The lock is released before returning.
func ReadLocked(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := LockFile(f); err != nil {
		return nil, err
	}
	defer UnlockFile(f)

	return io.ReadAll(f)
}

// WriteLocked replaces the contents of path with data while holding an
// exclusive lock on it. The parent directory is created if needed. The file
// is only truncated once the lock is held, so a concurrent ReadLocked sees
// either the old or the new contents. A file that does not exist yet is
// created complete through a temporary file and a rename, so it is never
// visible empty.
func WriteLocked(path string, data []byte, perm os.FileMode) (err error) {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY, perm)
	if errors.Is(err, fs.ErrNotExist) {
		return writeNew(path, data, perm)
	}
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if err := LockFile(f); err != nil {
		return err
	}
	defer UnlockFile(f)

	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	if _, err := f.WriteAt(data, 0); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

func writeNew(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := writeTemp(tmp, data, perm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func writeTemp(f *os.File, data []byte, perm os.FileMode) error {
	if err := f.Chmod(perm); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

// EnsureDir creates dir (and parents) if it does not already exist.
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, PermStateDir); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// ModTime returns the modification time of path, or the zero time if the
// file does not exist.
func ModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
