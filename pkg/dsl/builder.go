package dsl

import (
	"fmt"

	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
)

// Builder manages palette construction.
type Builder struct {
	order     []string
	templates map[string]*TemplateBuilder
	newID     domain.IDGenerator
}

// New creates a new palette builder.
func New() *Builder {
	return &Builder{
		templates: make(map[string]*TemplateBuilder),
		newID:     domain.NewID,
	}
}

// Add creates a new template of the given kind.
// If the kind already exists, it returns the existing builder.
func (b *Builder) Add(kind string) *TemplateBuilder {
	if tb, ok := b.templates[kind]; ok {
		return tb
	}
	tb := &TemplateBuilder{tmpl: domain.Template{Kind: kind}}
	b.templates[kind] = tb
	b.order = append(b.order, kind)
	return tb
}

// Templates returns the templates in insertion order.
func (b *Builder) Templates() ([]domain.Template, error) {
	out := make([]domain.Template, 0, len(b.order))
	for _, kind := range b.order {
		tb := b.templates[kind]
		if tb.root == nil {
			return nil, fmt.Errorf("template %q has no root element", kind)
		}
		t := tb.tmpl
		t.Root = tb.root.node(b.newID)
		(&domain.Tree{Roots: []*domain.Node{t.Root}}).RebuildParents()
		out = append(out, t)
	}
	return out, nil
}

// Build compiles the palette into a memory loader.
func (b *Builder) Build() (*memory.Loader, error) {
	templates, err := b.Templates()
	if err != nil {
		return nil, err
	}
	loader, err := memory.NewFromTemplates(templates...)
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return loader, nil
}

// TemplateBuilder provides a fluent API for configuring a palette entry.
type TemplateBuilder struct {
	tmpl domain.Template
	root *Element
}

// Label sets the display name shown in the palette.
func (t *TemplateBuilder) Label(label string) *TemplateBuilder {
	t.tmpl.Label = label
	return t
}

// Category groups the template in the palette.
func (t *TemplateBuilder) Category(category string) *TemplateBuilder {
	t.tmpl.Category = category
	return t
}

// Root sets the subtree dropped by this template.
func (t *TemplateBuilder) Root(root *Element) *TemplateBuilder {
	t.root = root
	return t
}

// Page builds a document from top-level elements. Elements without an
// explicit id get one from gen (domain.NewID when nil). Duplicate ids fail
// validation.
func Page(gen domain.IDGenerator, roots ...*Element) (*domain.Tree, error) {
	if gen == nil {
		gen = domain.NewID
	}
	tree := &domain.Tree{}
	for _, r := range roots {
		tree.Roots = append(tree.Roots, r.node(gen))
	}
	tree.RebuildParents()
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	return tree, nil
}
