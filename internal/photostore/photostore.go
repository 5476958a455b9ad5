// Package photostore persists uploaded visit photos on the local filesystem.
//
// Keys are opaque relative paths like "visits/<uuid>.jpg". The store
// sanitizes every key before touching the disk so a crafted path in an
// upload request can never escape the root directory.
package photostore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a key has no stored photo.
var ErrNotFound = errors.New("photostore: not found")

// Store writes and reads photo blobs under a single root directory.
type Store struct {
	root string
}

// New creates the root directory if needed and returns a Store over it.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("photostore: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("photostore: create root: %w", err)
	}
	return &Store{root: root}, nil
}

// resolve maps a key to an absolute path inside the root, rejecting any key
// that would resolve outside it.
func (s *Store) resolve(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", errors.New("photostore: empty key")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("photostore: invalid key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

// Save streams r to the file named by key, creating parent directories as
// needed. Returns the key it stored under.
func (s *Store) Save(key string, r io.Reader) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("photostore: create dir: %w", err)
	}

	// Write to a temp file first so a failed upload never leaves a truncated
	// photo at the final path.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("photostore: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("photostore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("photostore: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("photostore: rename: %w", err)
	}
	return key, nil
}

// Open returns a reader over the stored photo. The caller must close it.
func (s *Store) Open(key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("photostore: open: %w", err)
	}
	return f, nil
}

// Delete removes a stored photo. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("photostore: delete: %w", err)
	}
	return nil
}
