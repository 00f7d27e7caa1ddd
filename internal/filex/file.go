// Package filex holds the file primitives the field configuration writer
// needs on shared hosting: directory creation, an advisory lock file and
// atomic replacement.
package filex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ErrLocked is returned by AcquireLock while another writer holds the lock.
var ErrLocked = errors.New("file is locked")

// StaleLockAge is how old a lock file may get before it is considered left
// behind by a crashed writer.
const StaleLockAge = 30 * time.Second

// EnsureDir creates dir and its parents if they do not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// LockPath returns the lock file guarding path.
func LockPath(path string) string {
	return path + ".lock"
}

// AcquireLock creates the lock file for path exclusively. The returned
// function removes it.
func AcquireLock(path string) (func() error, error) {
	lock := LockPath(path)

	f, err := os.OpenFile(lock, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o660)
	if errors.Is(err, os.ErrExist) && removeStale(lock) {
		f, err = os.OpenFile(lock, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o660)
	}
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lock)
	}
	if err != nil {
		return nil, fmt.Errorf("create lock %s: %w", lock, err)
	}

	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	if err := f.Close(); err != nil {
		_ = os.Remove(lock)
		return nil, fmt.Errorf("close lock %s: %w", lock, err)
	}

	return func() error {
		if err := os.Remove(lock); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}, nil
}

func removeStale(lock string) bool {
	fi, err := os.Stat(lock)
	if err != nil || time.Since(fi.ModTime()) < StaleLockAge {
		return false
	}
	return os.Remove(lock) == nil
}

// WriteAtomic writes data to a temporary file next to path and renames it
// over path, so readers see either the old or the new content.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	name := tmp.Name()
	cleanup := func() { _ = os.Remove(name) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(name, perm); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(name, path); err != nil {
		cleanup()
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
