package ioutils

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrFilesystem marks directory creation, write and rename failures.
var ErrFilesystem = errors.New("filesystem error")

const (
	dirMode  = 0755
	fileMode = 0644
)

// Store wraps an afero.Fs with the handful of operations the rest of the
// program needs.
type Store struct {
	fs afero.Fs
}

// NewStore creates a Store backed by fsys.
func NewStore(fsys afero.Fs) *Store {
	return &Store{fs: fsys}
}

// NewOsStore creates a Store backed by the real filesystem.
func NewOsStore() *Store {
	return NewStore(afero.NewOsFs())
}

// Fs returns the underlying filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
func (s *Store) EnsureDir(path string) error {
	if err := s.fs.MkdirAll(path, dirMode); err != nil {
		return fmt.Errorf("%w: create directory %s: %v", ErrFilesystem, path, err)
	}
	return nil
}

// WriteFileAtomic writes data to path through a temporary sibling file.
//
// The parent directory must exist. If a file already exists at path it is
// replaced.
func (s *Store) WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return fmt.Errorf("%w: create temp file in %s: %v", ErrFilesystem, dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", ErrFilesystem, tmpName, err)
	}

	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", ErrFilesystem, tmpName, err)
	}

	if err := s.fs.Chmod(tmpName, fileMode); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("%w: chmod %s: %v", ErrFilesystem, tmpName, err)
	}

	if err := s.fs.Rename(tmpName, path); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("%w: rename %s to %s: %v", ErrFilesystem, tmpName, path, err)
	}

	return nil
}

// Move renames src to dst, replacing any file already at dst.
func (s *Store) Move(src, dst string) error {
	if err := s.fs.Rename(src, dst); err != nil {
		return fmt.Errorf("%w: move %s to %s: %v", ErrFilesystem, src, dst, err)
	}
	return nil
}

// ReadFile reads the whole file at path.
func (s *Store) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(s.fs, path)
}

// ReadDir lists a directory sorted by name.
func (s *Store) ReadDir(path string) ([]fs.FileInfo, error) {
	return afero.ReadDir(s.fs, path)
}

// Exists reports whether a regular file exists at path.
func (s *Store) Exists(path string) bool {
	info, err := s.fs.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Size returns the size of the file at path, or -1 if it cannot be stat'ed.
func (s *Store) Size(path string) int64 {
	info, err := s.fs.Stat(path)
	if err != nil {
		return -1
	}
	return info.Size()
}
