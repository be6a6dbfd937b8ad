package ports

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
)

// ProjectStore defines the interface for persisting project records.
// A record is a single put/get unit: the serialized tree plus metadata.
type ProjectStore interface {
	// Save persists the project under project.ID, replacing any prior record.
	Save(ctx context.Context, project *domain.Project) error

	// Load retrieves the project for a given ID.
	// Returns domain.ErrProjectNotFound if the project does not exist.
	Load(ctx context.Context, projectID string) (*domain.Project, error)

	// Delete removes the project. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, projectID string) error

	// List returns the IDs of every stored project.
	List(ctx context.Context) ([]string, error)
}
