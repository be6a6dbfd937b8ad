package domain

// Equal reports whether two trees are structurally equal. Selection is
// ignored; nil and empty maps compare equal.
func Equal(a, b *Tree) bool {
	if a == nil || b == nil {
		return a == b
	}
	return nodesEqual(a.Roots, b.Roots)
}

// NodeEqual reports whether the subtrees rooted at a and b are structurally
// equal, ids included.
func NodeEqual(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && sameContent(a, b) && nodesEqual(a.Children, b.Children)
}

func nodesEqual(a, b []*Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !NodeEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// sameContent compares the local fields of two nodes, ignoring ids and
// children.
func sameContent(a, b *Node) bool {
	return a.Tag == b.Tag &&
		a.Text == b.Text &&
		a.ParentRef == b.ParentRef &&
		mapsEqual(a.Styles, b.Styles) &&
		mapsEqual(a.Attributes, b.Attributes)
}

func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
