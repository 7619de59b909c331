package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prospect-scanner/backend/internal/models"
)

// ErrNotFound is returned when a blob key is unknown to the store.
var ErrNotFound = errors.New("blob not found")

// Store holds the raw image bytes behind each workspace file.
type Store interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (*models.FileInfo, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ReadAll loads a blob fully into memory.
func ReadAll(ctx context.Context, s Store, key string) ([]byte, error) {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", key, err)
	}
	return data, nil
}
