// Package local implements the upload directory storage adapter.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage keeps objects as files below basePath.
type Storage struct {
	basePath string
}

// New creates a new local storage adapter rooted at basePath (e.g. "upload/").
// The directory is created if it does not exist.
func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "upload"
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	return &Storage{basePath: filepath.Clean(basePath)}, nil
}

// PutObject writes a file to the upload directory.
func (s *Storage) PutObject(ctx context.Context, key string, data io.Reader, contentType string, size int64) error {
	fullPath, err := s.keyToPath(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		os.Remove(fullPath)
		return fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(fullPath)
		return fmt.Errorf("close file: %w", err)
	}

	return nil
}

// DeleteObject removes a file from the upload directory.
func (s *Storage) DeleteObject(ctx context.Context, key string) error {
	fullPath, err := s.keyToPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("delete file: %w", err)
	}

	// drop the parent directory when it became empty
	if dir := filepath.Dir(fullPath); dir != s.basePath {
		os.Remove(dir)
	}

	return nil
}

// ObjectExists checks if a file exists in the upload directory.
func (s *Storage) ObjectExists(ctx context.Context, key string) (bool, error) {
	fullPath, err := s.keyToPath(key)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat file: %w", err)
	}

	return true, nil
}

// Type returns "local" as the storage type identifier.
func (s *Storage) Type() string {
	return "local"
}

// BasePath returns the upload directory.
func (s *Storage) BasePath() string {
	return s.basePath
}

// keyToPath converts an object key to a path below basePath, rejecting keys
// that would escape it.
func (s *Storage) keyToPath(key string) (string, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.basePath, fullPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return fullPath, nil
}
