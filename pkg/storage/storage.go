// Package storage defines where uploaded student documents are kept: the
// local upload directory or an S3-compatible bucket. The installer uses it to
// verify that the configured upload location is writable.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/sorathiyaom089/Student-Management-System/pkg/config"
	"github.com/sorathiyaom089/Student-Management-System/pkg/storage/local"
	"github.com/sorathiyaom089/Student-Management-System/pkg/storage/s3"
)

// Storage defines the object operations needed on the upload location.
type Storage interface {
	// PutObject uploads data under key.
	PutObject(ctx context.Context, key string, data io.Reader, contentType string, size int64) error

	// DeleteObject removes key. Deleting a missing key is not an error.
	DeleteObject(ctx context.Context, key string) error

	// ObjectExists checks if an object exists in storage.
	ObjectExists(ctx context.Context, key string) (bool, error)

	// Type returns the storage type identifier ("local" or "s3").
	Type() string
}

// New creates a storage adapter based on configuration. Local storage is
// rooted at uploadPath.
func New(cfg config.StorageConfig, uploadPath string) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		s, err := local.New(uploadPath)
		if err != nil {
			return nil, err
		}
		return s, nil

	case "s3":
		s, err := s3.New(s3.Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// Probe writes, checks and removes a small object to prove the location is
// writable.
func Probe(ctx context.Context, s Storage) error {
	key := ".probe/" + uuid.NewString()
	payload := []byte("student-management storage probe\n")

	if err := s.PutObject(ctx, key, bytes.NewReader(payload), "text/plain", int64(len(payload))); err != nil {
		return fmt.Errorf("%s storage not writable: %w", s.Type(), err)
	}
	defer func() { _ = s.DeleteObject(ctx, key) }()

	ok, err := s.ObjectExists(ctx, key)
	if err != nil {
		return fmt.Errorf("%s storage not readable: %w", s.Type(), err)
	}
	if !ok {
		return fmt.Errorf("%s storage lost probe object %s", s.Type(), key)
	}
	return nil
}
