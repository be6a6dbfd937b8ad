package domain

import "strings"

const (
	// DefaultTag is the element kind given to nodes created without a tag.
	DefaultTag = "div"

	// RootID addresses the root list in reparent and insert operations.
	RootID = "root"
)

// voidTags cannot hold text or children in serialized HTML.
var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// IsVoid reports whether tag names an HTML void element.
func IsVoid(tag string) bool {
	return voidTags[strings.ToLower(tag)]
}

// Node is a single document element.
//
// Ownership flows strictly through Children. ParentRef is a back-reference
// kept in sync by the Tree and the mutation engine; it is never trusted on
// input.
type Node struct {
	ID         string
	Tag        string
	Text       string
	Styles     map[string]string
	Attributes map[string]string
	Children   []*Node

	// ParentRef holds the id of the owning node, or "" for roots.
	ParentRef string

	// Selected is UI state only. It is never serialized and never
	// participates in equality.
	Selected bool
}

// NewNode creates a node with the given id, tag and text.
// An empty tag falls back to DefaultTag.
func NewNode(id, tag, text string) *Node {
	if tag == "" {
		tag = DefaultTag
	}
	return &Node{ID: id, Tag: tag, Text: text}
}

// Append adds children to n and points their ParentRef at n.
// It returns n so literal trees can be written inline.
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		c.ParentRef = n.ID
	}
	n.Children = append(n.Children, children...)
	return n
}

// Clone deep-copies the subtree rooted at n, keeping ids and selection.
func (n *Node) Clone() *Node {
	return n.copyTree(nil, n.ParentRef, true)
}

// CloneFresh deep-copies the subtree rooted at n and gives every copy a new id
// from gen. The copy is never selected and has no parent.
func (n *Node) CloneFresh(gen IDGenerator) *Node {
	return n.copyTree(gen, "", false)
}

func (n *Node) copyTree(gen IDGenerator, parentRef string, keepSelection bool) *Node {
	id := n.ID
	if gen != nil {
		id = gen()
	}
	out := &Node{
		ID:         id,
		Tag:        n.Tag,
		Text:       n.Text,
		Styles:     copyMap(n.Styles),
		Attributes: copyMap(n.Attributes),
		ParentRef:  parentRef,
		Selected:   keepSelection && n.Selected,
	}
	if len(n.Children) > 0 {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.copyTree(gen, id, keepSelection)
		}
	}
	return out
}

// walk visits n and its descendants in pre-order until yield returns false.
func (n *Node) walk(yield func(*Node) bool) bool {
	if !yield(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.walk(yield) {
			return false
		}
	}
	return true
}

// Contains reports whether target is n or one of its descendants.
func (n *Node) Contains(target *Node) bool {
	found := false
	n.walk(func(x *Node) bool {
		found = x == target
		return !found
	})
	return found
}

// IDs returns the ids of n and its descendants in document order.
func (n *Node) IDs() []string {
	var ids []string
	n.walk(func(x *Node) bool {
		ids = append(ids, x.ID)
		return true
	})
	return ids
}

func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
