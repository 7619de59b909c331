// mock_extractor.go - Scripted extractor for tests
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/prospect-scanner/backend/internal/extract"
	"github.com/prospect-scanner/backend/internal/models"
)

// ErrMockExtract is returned for images scripted to fail.
var ErrMockExtract = errors.New("mock extraction failure")

// MockExtractor returns canned records keyed by image name.
type MockExtractor struct {
	mu      sync.Mutex
	results map[string][]models.Prospect
	fail    map[string]bool
	calls   []string

	// Hook runs before each call returns, for tests that mutate state mid-run.
	Hook func(img extract.Image)
}

// NewMockExtractor creates an extractor that returns no records by default.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{
		results: make(map[string][]models.Prospect),
		fail:    make(map[string]bool),
	}
}

// SetResult scripts the records returned for name.
func (m *MockExtractor) SetResult(name string, records ...models.Prospect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[name] = records
	delete(m.fail, name)
}

// SetFailure scripts name to fail (or succeed again when fail is false).
func (m *MockExtractor) SetFailure(name string, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[name] = fail
}

// Calls returns the image names seen so far, in call order.
func (m *MockExtractor) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Extract implements extract.Extractor.
func (m *MockExtractor) Extract(ctx context.Context, img extract.Image) ([]models.Prospect, error) {
	m.mu.Lock()
	m.calls = append(m.calls, img.Name)
	fail := m.fail[img.Name]
	records := m.results[img.Name]
	hook := m.Hook
	m.mu.Unlock()

	if hook != nil {
		hook(img)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fail {
		return nil, ErrMockExtract
	}
	return records, nil
}

var _ extract.Extractor = (*MockExtractor)(nil)
