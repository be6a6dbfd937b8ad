package domain

import "fmt"

// Template is a palette entry: a reusable subtree dropped onto the canvas.
type Template struct {
	Kind     string `json:"kind"`
	Label    string `json:"label,omitempty"`
	Category string `json:"category,omitempty"`
	Root     *Node  `json:"-"`
}

// Instantiate returns a copy of the template subtree with fresh ids.
func (t *Template) Instantiate(gen IDGenerator) *Node {
	if gen == nil {
		gen = NewID
	}
	if t.Root == nil {
		return NewNode(gen(), t.Kind, "")
	}
	return t.Root.CloneFresh(gen)
}

// Clone returns an independent copy of the template.
func (t *Template) Clone() *Template {
	c := *t
	if t.Root != nil {
		c.Root = t.Root.Clone()
	}
	return &c
}

// ParseTemplate builds a template from a serialized document. The document
// must hold exactly one root; it becomes the template subtree.
func ParseTemplate(kind string, data []byte) (*Template, error) {
	tree, err := ParseTree(data)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", kind, err)
	}
	if len(tree.Roots) != 1 {
		return nil, fmt.Errorf("%w: template %q has %d roots, want 1", ErrMalformedDocument, kind, len(tree.Roots))
	}
	return &Template{Kind: kind, Root: tree.Roots[0]}, nil
}
