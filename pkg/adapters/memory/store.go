package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/theatre/pkg/domain"
	"github.com/mohae/deepcopy"
)

// Store implements ports.SceneStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.SceneSpec
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.SceneSpec),
	}
}

// Save persists a deep copy of the scene.
func (s *Store) Save(ctx context.Context, name string, scene *domain.SceneSpec) error {
	copied := deepcopy.Copy(scene).(*domain.SceneSpec)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = copied
	return nil
}

// Load retrieves a copy of the scene so callers can't mutate the store by pointer.
func (s *Store) Load(ctx context.Context, name string) (*domain.SceneSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scene, ok := s.data[name]
	if !ok {
		return nil, domain.ErrSceneNotFound
	}
	return deepcopy.Copy(scene).(*domain.SceneSpec), nil
}

// Delete removes the scene.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, name)
	return nil
}

// List returns the stored scene names, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
