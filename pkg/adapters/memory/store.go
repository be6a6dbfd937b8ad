package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
)

// Store implements ports.ProjectStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Project
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Project),
	}
}

// Save persists the project in memory.
func (s *Store) Save(ctx context.Context, project *domain.Project) error {
	// Copy on write so later edits by the caller don't leak into the store.
	copied := clone(project)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[project.ID] = copied
	return nil
}

// Load retrieves the project from memory.
func (s *Store) Load(ctx context.Context, projectID string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, ok := s.data[projectID]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	// Copy on read so the caller can't mutate store state through the pointer.
	return clone(project), nil
}

// Delete removes the project.
func (s *Store) Delete(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, projectID)
	return nil
}

// List returns stored project IDs, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.data)), nil
}

func clone(p *domain.Project) *domain.Project {
	c := *p
	c.Tree = slices.Clone(p.Tree)
	c.Metadata = maps.Clone(p.Metadata)
	return &c
}
