package drive

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a thread-safe, in-memory implementation of Store.
type InMemoryStore struct {
	mu    sync.RWMutex
	files []File
	index map[string]int // id → index in files slice
	now   func() time.Time
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		index: make(map[string]int),
		now:   time.Now,
	}
}

// Compile-time interface check.
var _ Store = (*InMemoryStore)(nil)

// Get implements Store.
func (s *InMemoryStore) Get(_ context.Context, id string) (File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return File{}, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	return s.files[i], nil
}

// FindByName implements Store.
func (s *InMemoryStore) FindByName(_ context.Context, name string) ([]File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []File
	for _, f := range s.files {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out, nil
}

// Create implements Store.
func (s *InMemoryStore) Create(_ context.Context, f File) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if _, exists := s.index[f.ID]; exists {
		return File{}, fmt.Errorf("drive: file %s already exists", f.ID)
	}
	now := s.now()
	f.CreatedAt, f.UpdatedAt = now, now

	s.index[f.ID] = len(s.files)
	s.files = append(s.files, f)
	return f, nil
}

// Update implements Store.
func (s *InMemoryStore) Update(_ context.Context, id, content string) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return File{}, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	s.files[i].Content = content
	s.files[i].UpdatedAt = s.now()
	return s.files[i], nil
}

// Delete implements Store.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return nil
	}
	s.files = slices.Delete(s.files, i, i+1)
	delete(s.index, id)
	for j := i; j < len(s.files); j++ {
		s.index[s.files[j].ID] = j
	}
	return nil
}

// Len implements Store.
func (s *InMemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files), nil
}
