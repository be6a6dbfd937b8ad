package middleware_test

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
type MockStore struct {
	data map[string]*domain.Project
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.Project),
	}
}

func (s *MockStore) Save(ctx context.Context, project *domain.Project) error {
	s.data[project.ID] = project
	return nil
}

func (s *MockStore) Load(ctx context.Context, projectID string) (*domain.Project, error) {
	project, ok := s.data[projectID]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return project, nil
}

func (s *MockStore) Delete(ctx context.Context, projectID string) error {
	delete(s.data, projectID)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.ProjectStore = (*MockStore)(nil)
