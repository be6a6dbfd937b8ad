package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/aretw0/lattice/pkg/domain"
)

// Loader implements ports.PaletteLoader using an in-memory map.
type Loader struct {
	templates map[string]*domain.Template
}

// NewLoader creates a loader from serialized documents keyed by kind. Each
// document must have exactly one root.
func NewLoader(data map[string]string) (*Loader, error) {
	templates := make(map[string]*domain.Template, len(data))
	for kind, raw := range data {
		tmpl, err := domain.ParseTemplate(kind, []byte(raw))
		if err != nil {
			return nil, err
		}
		templates[kind] = tmpl
	}
	return &Loader{templates: templates}, nil
}

// NewFromTemplates creates a loader from domain objects.
// This skips serialization, improving DX for tests.
func NewFromTemplates(templates ...domain.Template) (*Loader, error) {
	l := &Loader{templates: make(map[string]*domain.Template, len(templates))}
	for _, t := range templates {
		if t.Kind == "" {
			return nil, fmt.Errorf("template missing kind")
		}
		l.templates[t.Kind] = t.Clone()
	}
	return l, nil
}

// GetTemplate returns a copy of the template registered under kind.
func (l *Loader) GetTemplate(ctx context.Context, kind string) (*domain.Template, error) {
	tmpl, ok := l.templates[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrTemplateNotFound, kind)
	}
	return tmpl.Clone(), nil
}

// ListTemplates returns all available kinds.
func (l *Loader) ListTemplates(ctx context.Context) ([]string, error) {
	// Deterministic order
	return slices.Sorted(maps.Keys(l.templates)), nil
}
