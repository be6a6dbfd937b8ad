package domain

import (
	"errors"
	"fmt"
	"iter"
	"slices"
)

// Tree is the ordered forest of root nodes that forms one document.
//
// A Tree is not safe for concurrent mutation. Sessions own their tree on a
// single goroutine and hand out clones or serialized snapshots.
type Tree struct {
	Roots []*Node
}

// NewTree builds a tree from roots and rebuilds every ParentRef.
func NewTree(roots ...*Node) *Tree {
	t := &Tree{Roots: roots}
	t.RebuildParents()
	return t
}

// FindByID searches the forest depth-first, visiting a node before its
// descendants, and returns the first node with the given id.
func (t *Tree) FindByID(id string) *Node {
	if t == nil || id == "" {
		return nil
	}
	for n := range t.All() {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// IndexOf returns the position of n within siblings, or -1 if absent.
func IndexOf(siblings []*Node, n *Node) int {
	for i, s := range siblings {
		if s == n {
			return i
		}
	}
	return -1
}

// All returns a pre-order traversal of every node in the forest.
// The sequence is restartable. Mutating the tree while ranging is undefined.
func (t *Tree) All() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		if t == nil {
			return
		}
		for _, r := range t.Roots {
			if !r.walk(yield) {
				return
			}
		}
	}
}

// Len counts the nodes in the forest.
func (t *Tree) Len() int {
	n := 0
	for range t.All() {
		n++
	}
	return n
}

// Parent returns the node owning n, or nil when n is a root.
func (t *Tree) Parent(n *Node) *Node {
	if n == nil || n.ParentRef == "" {
		return nil
	}
	return t.FindByID(n.ParentRef)
}

// Siblings returns the slice that currently holds n: its parent's children,
// or the root list.
func (t *Tree) Siblings(n *Node) []*Node {
	if p := t.Parent(n); p != nil {
		return p.Children
	}
	return t.Roots
}

// Selected returns the selected node, if any.
func (t *Tree) Selected() *Node {
	for n := range t.All() {
		if n.Selected {
			return n
		}
	}
	return nil
}

// Nodes collects the pre-order traversal into a slice.
func (t *Tree) Nodes() []*Node {
	return slices.Collect(t.All())
}

// IDs returns every id in document order.
func (t *Tree) IDs() []string {
	var ids []string
	for n := range t.All() {
		ids = append(ids, n.ID)
	}
	return ids
}

// Clone deep-copies the forest, keeping ids and selection.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return &Tree{}
	}
	out := &Tree{Roots: make([]*Node, len(t.Roots))}
	for i, r := range t.Roots {
		out.Roots[i] = r.Clone()
	}
	return out
}

// RebuildParents recomputes ParentRef for every node from its position.
func (t *Tree) RebuildParents() {
	var fix func(n *Node)
	fix = func(n *Node) {
		for _, c := range n.Children {
			c.ParentRef = n.ID
			fix(c)
		}
	}
	for _, r := range t.Roots {
		r.ParentRef = ""
		fix(r)
	}
}

// Validate checks the structural invariants of the document: unique ids,
// consistent back-references, no node owned twice (which covers cycles) and
// at most one selected node. All violations are returned joined.
func (t *Tree) Validate() error {
	var errs []error
	ids := make(map[string]struct{})
	seen := make(map[*Node]struct{})
	selected := 0

	var visit func(n *Node, parent *Node)
	visit = func(n *Node, parent *Node) {
		if n == nil {
			errs = append(errs, errors.New("nil node in children"))
			return
		}
		if _, dup := seen[n]; dup {
			errs = append(errs, fmt.Errorf("node %q is reachable more than once: %w", n.ID, ErrCycle))
			return
		}
		seen[n] = struct{}{}

		if n.ID == "" {
			errs = append(errs, errors.New("node with empty id"))
		} else if _, dup := ids[n.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateID, n.ID))
		}
		ids[n.ID] = struct{}{}

		want := ""
		if parent != nil {
			want = parent.ID
		}
		if n.ParentRef != want {
			errs = append(errs, fmt.Errorf("node %q has parentRef %q, expected %q", n.ID, n.ParentRef, want))
		}
		if n.Selected {
			selected++
		}
		for _, c := range n.Children {
			visit(c, n)
		}
	}

	for _, r := range t.Roots {
		visit(r, nil)
	}
	if selected > 1 {
		errs = append(errs, fmt.Errorf("%d nodes selected, at most one allowed", selected))
	}
	return errors.Join(errs...)
}
