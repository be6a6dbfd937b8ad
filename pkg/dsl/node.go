package dsl

import (
	"maps"

	"github.com/aretw0/lattice/pkg/domain"
)

// Element provides a fluent API for configuring a document node.
type Element struct {
	id       string
	tag      string
	text     string
	styles   map[string]string
	attrs    map[string]string
	children []*Element
}

// El starts an element of the given tag.
func El(tag string) *Element {
	return &Element{tag: tag}
}

// ID pins the node id. Elements without one get a generated id.
func (e *Element) ID(id string) *Element {
	e.id = id
	return e
}

// Text sets the inline text of the element.
func (e *Element) Text(text string) *Element {
	e.text = text
	return e
}

// Style sets one style property.
func (e *Element) Style(prop, value string) *Element {
	if e.styles == nil {
		e.styles = make(map[string]string)
	}
	e.styles[prop] = value
	return e
}

// Attr sets one attribute.
func (e *Element) Attr(name, value string) *Element {
	if e.attrs == nil {
		e.attrs = make(map[string]string)
	}
	e.attrs[name] = value
	return e
}

// Children appends child elements in order.
func (e *Element) Children(children ...*Element) *Element {
	e.children = append(e.children, children...)
	return e
}

// node materializes the element. Parent references are set by the caller
// through Tree.RebuildParents.
func (e *Element) node(gen domain.IDGenerator) *domain.Node {
	id := e.id
	if id == "" {
		id = gen()
	}
	n := domain.NewNode(id, e.tag, e.text)
	n.Styles = maps.Clone(e.styles)
	n.Attributes = maps.Clone(e.attrs)
	for _, c := range e.children {
		n.Append(c.node(gen))
	}
	return n
}
