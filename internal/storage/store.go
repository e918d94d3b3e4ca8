// Package storage persists uploaded report files on the local filesystem,
// decoupled from the document store. Documents reference files only by
// their stored name.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrFileMissing = errors.New("stored file not found")
	ErrInvalidName = errors.New("invalid stored file name")
	ErrEmptyFile   = errors.New("no file content provided")
)

// Store writes and reads report files under a single configured directory.
// The directory is an explicit dependency, not process-wide state.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("report directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the configured report directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the content under a collision-resistant generated name:
// unix millis plus a random UUID plus the original extension. Timestamp
// alone is not enough under concurrent uploads.
func (s *Store) Save(originalName string, content io.Reader) (string, int64, error) {
	if content == nil {
		return "", 0, ErrEmptyFile
	}

	ext := filepath.Ext(originalName)
	storedName := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.New().String(), ext)

	f, err := os.OpenFile(filepath.Join(s.dir, storedName), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create report file: %w", err)
	}

	size, err := io.Copy(f, content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(filepath.Join(s.dir, storedName))
		return "", 0, fmt.Errorf("failed to write report file: %w", err)
	}
	if size == 0 {
		os.Remove(filepath.Join(s.dir, storedName))
		return "", 0, ErrEmptyFile
	}

	return storedName, size, nil
}

// Open returns a reader over a stored file. A missing file maps to
// ErrFileMissing so callers can surface it as not-found.
func (s *Store) Open(storedName string) (*os.File, error) {
	path, err := s.resolve(storedName)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrFileMissing
		}
		return nil, fmt.Errorf("failed to open report file: %w", err)
	}
	return f, nil
}

// Remove deletes a stored file. A file already gone is not an error;
// the metadata removal is the contract callers depend on.
func (s *Store) Remove(storedName string) error {
	path, err := s.resolve(storedName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove report file: %w", err)
	}
	return nil
}

// resolve rejects names that would escape the report directory.
func (s *Store) resolve(storedName string) (string, error) {
	if storedName == "" || storedName != filepath.Base(storedName) || strings.HasPrefix(storedName, ".") {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, storedName), nil
}
