// Package contentstore keeps raw CSV bytes on local disk, one file per
// storage name, under a private content directory.
//
// Writes go to a temporary file in the same directory, are fsynced, and are
// then renamed over the target, so a reader sees either the old content or
// the new content and never a partial file.
package contentstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when no blob exists for a storage name.
var ErrNotFound = errors.New("content not found")

// FileStore stores blobs as files in dir.
type FileStore struct {
	dir string
}

// New creates the content directory if needed and returns a FileStore.
func New(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("content directory is empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create content directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the content directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// Write replaces the blob for name with data and returns the bytes written.
// If ctx is done before the rename, the temporary file is removed and the
// previous content stays in place.
func (s *FileStore) Write(ctx context.Context, name string, data []byte) (int64, error) {
	full, err := s.path(name)
	if err != nil {
		return 0, err
	}

	f, err := os.CreateTemp(s.dir, "."+name+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()

	fail := func(err error) (int64, error) {
		f.Close()
		os.Remove(tmp)
		return 0, err
	}

	n, err := f.Write(data)
	if err != nil {
		return fail(fmt.Errorf("write %s: %w", name, err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("fsync %s: %w", name, err))
	}
	if err := f.Chmod(0o640); err != nil {
		return fail(fmt.Errorf("chmod %s: %w", name, err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("close %s: %w", name, err)
	}

	if err := ctx.Err(); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("write %s: %w", name, err)
	}

	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("rename %s: %w", name, err)
	}

	return int64(n), nil
}

// Read returns the full blob for name.
func (s *FileStore) Read(name string) ([]byte, error) {
	full, err := s.path(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// Delete removes the blob for name. A blob that is already gone yields
// ErrNotFound so callers can decide whether to tolerate it.
func (s *FileStore) Delete(name string) error {
	full, err := s.path(name)
	if err != nil {
		return err
	}

	err = os.Remove(full)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Exists reports whether a blob is present for name.
func (s *FileStore) Exists(name string) bool {
	full, err := s.path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}
