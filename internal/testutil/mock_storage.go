// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reelboard/backend/internal/models"
)

// MockStorage implements storage.Store for testing
type MockStorage struct {
	mu       sync.RWMutex
	files    map[string]*models.UploadedFile
	fileData map[string][]byte

	// SaveErr, when set, is returned by Save.
	SaveErr error
}

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.UploadedFile),
		fileData: make(map[string][]byte),
	}
}

func (m *MockStorage) Save(ctx context.Context, name string, category models.Category, r io.Reader) (*models.UploadedFile, error) {
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := generateTestID()
	file := &models.UploadedFile{
		ID:         id,
		Name:       name,
		Category:   category,
		Size:       int64(len(data)),
		URL:        "http://storage.test/uploads/" + id,
		Handle:     id,
		UploadedAt: time.Now(),
	}

	m.files[id] = file
	m.fileData[id] = data
	return file, nil
}

func (m *MockStorage) Get(id string) (*models.UploadedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}
	return file, nil
}

func (m *MockStorage) List(limit int) ([]*models.UploadedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var list []*models.UploadedFile
	for _, f := range m.files {
		list = append(list, f)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].UploadedAt.Equal(list[j].UploadedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *MockStorage) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[id]; !ok {
		return fmt.Errorf("file not found: %s", id)
	}
	delete(m.files, id)
	delete(m.fileData, id)
	return nil
}

var testIDCounter atomic.Int64

func generateTestID() string {
	return fmt.Sprintf("test-file-%d", testIDCounter.Add(1))
}

// SeedFiles registers n files of the given category and returns them.
func (m *MockStorage) SeedFiles(n int, category models.Category) []*models.UploadedFile {
	out := make([]*models.UploadedFile, 0, n)
	for i := 0; i < n; i++ {
		f, _ := m.Save(context.Background(), fmt.Sprintf("img-%d.jpg", i), category, nilReader{})
		out = append(out, f)
	}
	return out
}

type nilReader struct{}

func (nilReader) Read(p []byte) (int, error) { return 0, io.EOF }
