// mock_storage.go - In-memory blob store for tests
package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prospect-scanner/backend/internal/models"
	"github.com/prospect-scanner/backend/internal/storage"
)

// MockStorage implements storage.Store in memory and counts deletes per key.
type MockStorage struct {
	mu       sync.RWMutex
	files    map[string]*models.FileInfo
	fileData map[string][]byte
	deletes  map[string]int
	next     int

	// SaveErr, when set, fails every Save.
	SaveErr error
	// OpenErr, when set, fails Open for the listed keys.
	OpenErr map[string]error
}

// NewMockStorage creates an empty mock store.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.FileInfo),
		fileData: make(map[string][]byte),
		deletes:  make(map[string]int),
		OpenErr:  make(map[string]error),
	}
}

func (m *MockStorage) Save(_ context.Context, name, contentType string, r io.Reader) (*models.FileInfo, error) {
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	key := fmt.Sprintf("blob-%d", m.next)
	info := &models.FileInfo{
		Key:         key,
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		UploadedAt:  time.Now(),
	}
	m.files[key] = info
	m.fileData[key] = data
	return info, nil
}

func (m *MockStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.OpenErr[key]; ok {
		return nil, err
	}
	data, ok := m.fileData[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deletes[key]++
	if _, ok := m.files[key]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	delete(m.files, key)
	delete(m.fileData, key)
	return nil
}

// Ensure MockStorage implements storage.Store
var _ storage.Store = (*MockStorage)(nil)

// DeleteCount returns how many times Delete was called for key.
func (m *MockStorage) DeleteCount(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deletes[key]
}

// FileCount returns the number of stored blobs.
func (m *MockStorage) FileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// FailOpen makes Open fail for key.
func (m *MockStorage) FailOpen(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpenErr[key] = errors.New("mock open failure")
}

// ClearOpenFailures undoes FailOpen.
func (m *MockStorage) ClearOpenFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpenErr = make(map[string]error)
}
