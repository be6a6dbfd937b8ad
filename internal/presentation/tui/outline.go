package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/lattice/internal/render"
	"github.com/aretw0/lattice/pkg/domain"
)

// Outline describes a document as a nested Markdown list, one item per node:
// tag, id, inline text and styles. The selected node is marked in bold.
func Outline(title string, tree *domain.Tree) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	if tree == nil || len(tree.Roots) == 0 {
		sb.WriteString("_empty document_\n")
		return sb.String()
	}

	var visit func(n *domain.Node, depth int)
	visit = func(n *domain.Node, depth int) {
		item := fmt.Sprintf("`<%s>` %s", n.Tag, n.ID)
		if n.Selected {
			item = "**" + item + "**"
		}
		if n.Text != "" {
			item += fmt.Sprintf(" %q", n.Text)
		}
		if s := render.StyleString(n.Styles); s != "" {
			item += " _" + s + "_"
		}
		fmt.Fprintf(&sb, "%s- %s\n", strings.Repeat("  ", depth), item)
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	for _, r := range tree.Roots {
		visit(r, 0)
	}
	fmt.Fprintf(&sb, "\n%d nodes\n", tree.Len())
	return sb.String()
}
