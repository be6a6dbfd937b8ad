// Package mutation is the only place where document topology changes.
//
// Operations address nodes by id, check every precondition before the first
// write and report expected failures (unknown ids, out of range moves,
// invalid structure) as errors wrapping the sentinels of package domain.
// A failed operation leaves the tree exactly as it was.
package mutation

import (
	"fmt"
	"slices"

	"github.com/aretw0/lattice/pkg/domain"
)

// maxIDAttempts bounds retries when an injected generator collides.
const maxIDAttempts = 64

// Engine applies structural operations to one tree.
// It is not safe for concurrent use; callers serialize access.
type Engine struct {
	tree  *domain.Tree
	newID domain.IDGenerator
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator sets the generator used by Duplicate and WrapInDiv.
func WithIDGenerator(gen domain.IDGenerator) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// New creates an engine over tree. A nil tree starts an empty document.
func New(tree *domain.Tree, opts ...Option) *Engine {
	if tree == nil {
		tree = &domain.Tree{}
	}
	e := &Engine{tree: tree, newID: domain.NewID}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tree returns the live tree. Callers must not mutate it directly.
func (e *Engine) Tree() *domain.Tree {
	return e.tree
}

// Replace swaps the whole document (last writer wins, no merge).
func (e *Engine) Replace(tree *domain.Tree) {
	if tree == nil {
		tree = &domain.Tree{}
	}
	e.tree = tree
}

// MoveUp swaps the node with its previous sibling.
func (e *Engine) MoveUp(id string) error {
	node, parent, idx, err := e.locate(id)
	if err != nil {
		return err
	}
	if idx == 0 {
		return fmt.Errorf("%w: %q is already first", domain.ErrInvalidPosition, id)
	}
	siblings := e.children(parent)
	siblings[idx-1], siblings[idx] = node, siblings[idx-1]
	return nil
}

// MoveDown swaps the node with its next sibling.
func (e *Engine) MoveDown(id string) error {
	node, parent, idx, err := e.locate(id)
	if err != nil {
		return err
	}
	siblings := e.children(parent)
	if idx == len(siblings)-1 {
		return fmt.Errorf("%w: %q is already last", domain.ErrInvalidPosition, id)
	}
	siblings[idx+1], siblings[idx] = node, siblings[idx+1]
	return nil
}

// Delete detaches the node and its whole subtree. If the subtree held the
// selection, the document is left with nothing selected.
func (e *Engine) Delete(id string) error {
	node, parent, idx, err := e.locate(id)
	if err != nil {
		return err
	}
	e.setChildren(parent, slices.Delete(e.children(parent), idx, idx+1))
	for _, n := range subtree(node) {
		n.Selected = false
	}
	node.ParentRef = ""
	return nil
}

// Duplicate deep-clones the subtree rooted at id with fresh ids and inserts
// the clone right after the original. The selection does not move.
func (e *Engine) Duplicate(id string) (*domain.Node, error) {
	node, parent, idx, err := e.locate(id)
	if err != nil {
		return nil, err
	}
	clone := node.CloneFresh(e.freshIDs())
	clone.ParentRef = node.ParentRef
	e.setChildren(parent, slices.Insert(e.children(parent), idx+1, clone))
	return clone, nil
}

// MoveToParent reparents the node under parentID (domain.RootID or "" for
// the root list) at index, clamped to the bounds of the new sibling list.
// Moving a node under itself or one of its descendants fails with
// domain.ErrCycle; moving it under a void element with
// domain.ErrInvalidTarget.
func (e *Engine) MoveToParent(id, parentID string, index int) error {
	node, oldParent, idx, err := e.locate(id)
	if err != nil {
		return err
	}
	target, err := e.target(parentID)
	if err != nil {
		return err
	}
	if target != nil && node.Contains(target) {
		return fmt.Errorf("%w: %q into %q", domain.ErrCycle, id, parentID)
	}

	e.setChildren(oldParent, slices.Delete(e.children(oldParent), idx, idx+1))
	siblings := e.children(target)
	e.setChildren(target, slices.Insert(siblings, clamp(index, len(siblings)), node))
	node.ParentRef = refOf(target)
	return nil
}

// WrapInDiv moves the named nodes into a new div container. All nodes must
// share the same parent (the root list counts as one). They keep their
// document order, whatever order ids lists them in, and the wrapper takes
// the place of the first of them. Repeated ids are ignored.
func (e *Engine) WrapInDiv(ids []string) (*domain.Node, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, domain.ErrEmptySelection
	}

	var parent *domain.Node
	positions := make([]int, 0, len(ids))
	for i, id := range ids {
		_, p, idx, err := e.locate(id)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			parent = p
		} else if p != parent {
			return nil, fmt.Errorf("%w: %q and %q", domain.ErrNotSiblings, ids[0], id)
		}
		positions = append(positions, idx)
	}
	slices.Sort(positions)

	siblings := e.children(parent)
	wrapper := domain.NewNode(e.freshIDs()(), domain.DefaultTag, "")
	wrapper.ParentRef = refOf(parent)

	kept := make([]*domain.Node, 0, len(siblings)-len(positions)+1)
	for i, n := range siblings {
		if i == positions[0] {
			kept = append(kept, wrapper)
		}
		if _, found := slices.BinarySearch(positions, i); found {
			wrapper.Append(n)
			continue
		}
		kept = append(kept, n)
	}
	e.setChildren(parent, kept)
	return wrapper, nil
}

// Insert places a new subtree (a palette drop) under parentID at index,
// clamped. Its ids must not collide with the document and neither the
// target nor any incoming void element may hold children. Selection flags on the
// incoming subtree are cleared.
func (e *Engine) Insert(node *domain.Node, parentID string, index int) error {
	if node == nil {
		return fmt.Errorf("%w: nil node", domain.ErrNodeNotFound)
	}
	target, err := e.target(parentID)
	if err != nil {
		return err
	}

	existing := e.idSet()
	incoming := make(map[string]struct{})
	for _, n := range subtree(node) {
		if n.ID == "" {
			return fmt.Errorf("%w: empty id", domain.ErrDuplicateID)
		}
		if domain.IsVoid(n.Tag) && len(n.Children) > 0 {
			return fmt.Errorf("%w: %q is a %s", domain.ErrInvalidTarget, n.ID, n.Tag)
		}
		if _, dup := existing[n.ID]; dup {
			return fmt.Errorf("%w: %q", domain.ErrDuplicateID, n.ID)
		}
		if _, dup := incoming[n.ID]; dup {
			return fmt.Errorf("%w: %q", domain.ErrDuplicateID, n.ID)
		}
		incoming[n.ID] = struct{}{}
	}

	(&domain.Tree{Roots: []*domain.Node{node}}).RebuildParents()
	for _, n := range subtree(node) {
		n.Selected = false
	}
	node.ParentRef = refOf(target)

	siblings := e.children(target)
	e.setChildren(target, slices.Insert(siblings, clamp(index, len(siblings)), node))
	return nil
}

// SetText replaces the inline text of a node.
func (e *Engine) SetText(id, text string) error {
	n := e.tree.FindByID(id)
	if n == nil {
		return notFound(id)
	}
	n.Text = text
	return nil
}

// SetTag changes the element kind. An empty tag falls back to div. A node
// with children cannot become a void element.
func (e *Engine) SetTag(id, tag string) error {
	n := e.tree.FindByID(id)
	if n == nil {
		return notFound(id)
	}
	if tag == "" {
		tag = domain.DefaultTag
	}
	if domain.IsVoid(tag) && len(n.Children) > 0 {
		return fmt.Errorf("%w: %q has children and cannot become %s", domain.ErrInvalidTarget, id, tag)
	}
	n.Tag = tag
	return nil
}

// SetStyle sets one style property. An empty value removes it.
func (e *Engine) SetStyle(id, prop, value string) error {
	n := e.tree.FindByID(id)
	if n == nil {
		return notFound(id)
	}
	n.Styles = setKey(n.Styles, prop, value)
	return nil
}

// SetAttribute sets one attribute. An empty value removes it.
func (e *Engine) SetAttribute(id, name, value string) error {
	n := e.tree.FindByID(id)
	if n == nil {
		return notFound(id)
	}
	n.Attributes = setKey(n.Attributes, name, value)
	return nil
}

// Select makes id the single selected node.
func (e *Engine) Select(id string) error {
	n := e.tree.FindByID(id)
	if n == nil {
		return notFound(id)
	}
	e.ClearSelection()
	n.Selected = true
	return nil
}

// ClearSelection deselects every node.
func (e *Engine) ClearSelection() {
	for n := range e.tree.All() {
		n.Selected = false
	}
}

// locate finds a node, its parent (nil for roots) and its sibling index.
func (e *Engine) locate(id string) (node, parent *domain.Node, idx int, err error) {
	node = e.tree.FindByID(id)
	if node == nil {
		return nil, nil, -1, notFound(id)
	}
	parent = e.tree.Parent(node)
	idx = domain.IndexOf(e.children(parent), node)
	if idx < 0 {
		// A stale back-reference; the tree was modified behind the engine.
		return nil, nil, -1, fmt.Errorf("%w: %q is detached from %q", domain.ErrNodeNotFound, id, node.ParentRef)
	}
	return node, parent, idx, nil
}

// target resolves a reparent destination. nil means the root list.
func (e *Engine) target(parentID string) (*domain.Node, error) {
	if parentID == "" || parentID == domain.RootID {
		return nil, nil
	}
	p := e.tree.FindByID(parentID)
	if p == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrParentNotFound, parentID)
	}
	if domain.IsVoid(p.Tag) {
		return nil, fmt.Errorf("%w: %q is a %s", domain.ErrInvalidTarget, parentID, p.Tag)
	}
	return p, nil
}

func (e *Engine) children(parent *domain.Node) []*domain.Node {
	if parent == nil {
		return e.tree.Roots
	}
	return parent.Children
}

func (e *Engine) setChildren(parent *domain.Node, nodes []*domain.Node) {
	if parent == nil {
		e.tree.Roots = nodes
		return
	}
	parent.Children = nodes
}

func (e *Engine) idSet() map[string]struct{} {
	ids := make(map[string]struct{})
	for n := range e.tree.All() {
		ids[n.ID] = struct{}{}
	}
	return ids
}

// freshIDs wraps the generator so that every id it hands out is unused in
// the current document and in this batch.
func (e *Engine) freshIDs() domain.IDGenerator {
	used := e.idSet()
	return func() string {
		for range maxIDAttempts {
			id := e.newID()
			if _, taken := used[id]; !taken && id != "" {
				used[id] = struct{}{}
				return id
			}
		}
		id := domain.NewID()
		used[id] = struct{}{}
		return id
	}
}

func subtree(n *domain.Node) []*domain.Node {
	return (&domain.Tree{Roots: []*domain.Node{n}}).Nodes()
}

func refOf(parent *domain.Node) string {
	if parent == nil {
		return ""
	}
	return parent.ID
}

func clamp(index, length int) int {
	return max(0, min(index, length))
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func setKey(m map[string]string, key, value string) map[string]string {
	if value == "" {
		delete(m, key)
		return m
	}
	if m == nil {
		m = make(map[string]string)
	}
	m[key] = value
	return m
}

func notFound(id string) error {
	return fmt.Errorf("%w: %q", domain.ErrNodeNotFound, id)
}
