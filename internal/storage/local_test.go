// local_test.go - Tests for the filesystem blob store
package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates upload directory", func(t *testing.T) {
		uploadDir := filepath.Join(t.TempDir(), "uploads")

		_, err := NewLocalStore(uploadDir)
		require.NoError(t, err)

		_, err = os.Stat(uploadDir)
		assert.NoError(t, err)
	})
}

func TestLocalStore_SaveOpen(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)

	info, err := store.Save(ctx, "page1.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)

	assert.NotEmpty(t, info.Key)
	assert.Equal(t, "page1.png", info.Name)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, int64(len("png-bytes")), info.Size)

	data, err := ReadAll(ctx, store, info.Key)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestLocalStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)

	info, err := store.Save(ctx, "page1.jpg", "image/jpeg", strings.NewReader("jpeg"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, info.Key))

	_, err = os.Stat(filepath.Join(store.uploadDir, info.Key))
	assert.True(t, os.IsNotExist(err), "file should be removed from disk")

	_, err = store.Open(ctx, info.Key)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = store.Delete(ctx, info.Key)
	assert.True(t, errors.Is(err, ErrNotFound), "second delete reports not found")
}

func TestLocalStore_OpenUnknown(t *testing.T) {
	store := createTestStore(t)

	_, err := store.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
