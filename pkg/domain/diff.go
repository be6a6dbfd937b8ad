package domain

import "slices"

// TreeDiff summarizes what changed between two versions of a document.
// It is informational (logs, hooks, clients that want a hint of what moved);
// surfaces are always re-rendered from the whole tree.
type TreeDiff struct {
	// Added holds ids present only in the new tree.
	Added []string `json:"added,omitempty"`

	// Removed holds ids present only in the old tree.
	Removed []string `json:"removed,omitempty"`

	// Changed holds ids present in both whose content, parent or sibling
	// position differs.
	Changed []string `json:"changed,omitempty"`
}

// Diff calculates the difference between oldTree and newTree.
// If oldTree is nil, every node of newTree is reported as added.
func Diff(oldTree, newTree *Tree) *TreeDiff {
	before := indexTree(oldTree)
	after := indexTree(newTree)

	diff := &TreeDiff{}
	for id, a := range after {
		b, ok := before[id]
		switch {
		case !ok:
			diff.Added = append(diff.Added, id)
		case a.pos != b.pos || !sameContent(a.node, b.node):
			diff.Changed = append(diff.Changed, id)
		}
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			diff.Removed = append(diff.Removed, id)
		}
	}

	slices.Sort(diff.Added)
	slices.Sort(diff.Removed)
	slices.Sort(diff.Changed)
	return diff
}

// IsEmpty checks if the diff contains any change.
func (d *TreeDiff) IsEmpty() bool {
	return d == nil || (len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0)
}

type located struct {
	node *Node
	pos  int
}

func indexTree(t *Tree) map[string]located {
	idx := make(map[string]located)
	if t == nil {
		return idx
	}
	var visit func(siblings []*Node)
	visit = func(siblings []*Node) {
		for i, n := range siblings {
			if _, dup := idx[n.ID]; !dup {
				idx[n.ID] = located{node: n, pos: i}
			}
			visit(n.Children)
		}
	}
	visit(t.Roots)
	return idx
}
