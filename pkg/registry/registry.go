// Package registry holds the component palette: the templates a user can
// drop onto the canvas.
package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/dsl"
	"github.com/aretw0/lattice/pkg/ports"
)

// Registry manages the available templates. Templates registered directly
// take precedence over those of the fallback sources, which are consulted in
// order. It implements ports.PaletteLoader.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*domain.Template
	sources   []ports.PaletteLoader
}

var _ ports.PaletteLoader = (*Registry)(nil)

// NewRegistry creates a registry backed by the given fallback sources.
func NewRegistry(sources ...ports.PaletteLoader) *Registry {
	return &Registry{
		templates: make(map[string]*domain.Template),
		sources:   sources,
	}
}

// Register adds a template to the registry.
// If a template with the same kind exists, it is overwritten.
func (r *Registry) Register(tmpl domain.Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[tmpl.Kind] = tmpl.Clone()
}

// GetTemplate looks up a template by kind.
func (r *Registry) GetTemplate(ctx context.Context, kind string) (*domain.Template, error) {
	r.mu.RLock()
	tmpl, ok := r.templates[kind]
	r.mu.RUnlock()
	if ok {
		return tmpl.Clone(), nil
	}

	for _, src := range r.sources {
		tmpl, err := src.GetTemplate(ctx, kind)
		if err == nil {
			return tmpl, nil
		}
		if !errors.Is(err, domain.ErrTemplateNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrTemplateNotFound, kind)
}

// ListTemplates returns the union of every kind, sorted.
func (r *Registry) ListTemplates(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	kinds := maps.Clone(r.templates)
	r.mu.RUnlock()

	seen := make(map[string]struct{}, len(kinds))
	for k := range kinds {
		seen[k] = struct{}{}
	}
	for _, src := range r.sources {
		more, err := src.ListTemplates(ctx)
		if err != nil {
			return nil, err
		}
		for _, k := range more {
			seen[k] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

// Builtin returns a registry preloaded with the standard palette.
func Builtin(sources ...ports.PaletteLoader) *Registry {
	r := NewRegistry(sources...)
	for _, t := range builtins() {
		r.Register(t)
	}
	return r
}

func builtins() []domain.Template {
	b := dsl.New()
	b.Add("heading").Label("Heading").Category("Text").
		Root(el("heading", "h1").Text("Heading"))
	b.Add("paragraph").Label("Paragraph").Category("Text").
		Root(el("paragraph", "p").Text("Lorem ipsum dolor sit amet."))
	b.Add("link").Label("Link").Category("Text").
		Root(el("link", "a").Text("Link").Attr("href", "#"))
	b.Add("button").Label("Button").Category("Forms").
		Root(el("button", "button").Text("Click Me").Style("padding", "8px 16px"))
	b.Add("image").Label("Image").Category("Media").
		Root(el("image", "img").Attr("src", "https://placehold.co/600x400").Attr("alt", "Image"))
	b.Add("container").Label("Container").Category("Layout").
		Root(el("container", "div").Style("padding", "16px").Style("min-height", "40px"))
	b.Add("section").Label("Section").Category("Layout").
		Root(el("section", "section").Children(
			el("section-title", "h2").Text("Section title"),
			el("section-body", "p").Text("Section body."),
		))
	b.Add("list").Label("List").Category("Text").
		Root(el("list", "ul").Children(
			el("item-1", "li").Text("Item 1"),
			el("item-2", "li").Text("Item 2"),
		))

	templates, err := b.Templates()
	if err != nil {
		// Every root above is set.
		panic(err)
	}
	return templates
}

// el is dsl.El with a pinned id.
func el(id, tag string) *dsl.Element {
	return dsl.El(tag).ID(id)
}
