package ports

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
)

// PaletteLoader defines where palette templates come from.
// This allows the template source (Loam, memory) to be decoupled.
type PaletteLoader interface {
	// GetTemplate returns the template registered under kind.
	// Returns domain.ErrTemplateNotFound for unknown kinds.
	GetTemplate(ctx context.Context, kind string) (*domain.Template, error)

	// ListTemplates returns every available kind, sorted.
	ListTemplates(ctx context.Context) ([]string, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload of the palette while editing.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying templates change.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
