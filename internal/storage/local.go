package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reelboard/backend/internal/models"
)

// Store defines the interface for image storage.
type Store interface {
	Save(ctx context.Context, name string, category models.Category, r io.Reader) (*models.UploadedFile, error)
	Get(id string) (*models.UploadedFile, error)
	List(limit int) ([]*models.UploadedFile, error)
	Delete(ctx context.Context, id string) error
}

// LocalStore implements Store using the local filesystem. URLs point at the
// server's /uploads static route.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	baseURL   string
	files     map[string]*models.UploadedFile
}

// NewLocalStore creates a new LocalStore rooted at uploadDir.
func NewLocalStore(uploadDir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &LocalStore{
		uploadDir: uploadDir,
		baseURL:   baseURL,
		files:     make(map[string]*models.UploadedFile),
	}, nil
}

// Save writes an image to the local filesystem and registers its metadata.
func (s *LocalStore) Save(ctx context.Context, name string, category models.Category, r io.Reader) (*models.UploadedFile, error) {
	id := uuid.New().String()
	path := filepath.Join(s.uploadDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.UploadedFile{
		ID:         id,
		Name:       name,
		Category:   category,
		Size:       size,
		URL:        fmt.Sprintf("%s/uploads/%s", s.baseURL, id),
		Handle:     id,
		UploadedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info

	return info, nil
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(id string) (*models.UploadedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}

	return info, nil
}

// List returns the most recently uploaded files.
func (s *LocalStore) List(limit int) ([]*models.UploadedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.UploadedFile
	for _, info := range s.files {
		list = append(list, info)
	}

	// Sort by UploadedAt desc
	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if len(list) > limit {
		list = list[:limit]
	}

	return list, nil
}

// Delete removes a file from storage.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("file not found: %s", id)
	}

	path := filepath.Join(s.uploadDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)

	return nil
}

// GetFilePath returns the absolute path to a stored file.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return "", fmt.Errorf("file not found: %s", id)
	}

	return filepath.Join(s.uploadDir, id), nil
}
