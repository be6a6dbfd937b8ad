package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
)

// Overlay contains editor state to visualize on the graph.
type Overlay struct {
	// Selected is the id of the selected node, if any.
	Selected string
	// Changed lists ids touched by the last mutation.
	Changed []string
}

// GenerateMermaid produces a Mermaid flowchart of the document tree.
// It applies semantic styling:
// - Root: ([Stadium])
// - Leaf with text: [/Parallelogram/]
// - Default: [Rectangle]
// Edges follow ownership, from parent to child, in document order.
func GenerateMermaid(tree *domain.Tree, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for n := range tree.All() {
		safeID := sanitizeMermaidID(n.ID)

		opener, closer := "[", "]"
		switch {
		case n.ParentRef == "":
			opener, closer = "([", "])"
		case len(n.Children) == 0 && n.Text != "":
			opener, closer = "[/", "/]"
		}

		label := "&lt;" + n.Tag + "&gt; " + n.ID
		if n.Text != "" {
			label += " <br/> " + truncate(n.Text, 24)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, strings.ReplaceAll(label, "\"", "'"), closer)

		for i, c := range n.Children {
			fmt.Fprintf(&sb, "    %s -- \"%d\" --> %s\n", safeID, i, sanitizeMermaidID(c.ID))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef changed fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#2196F3,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Changed {
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] && safeID != "" {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s changed;\n", safeID)
			}
		}
		if overlay.Selected != "" {
			fmt.Fprintf(&sb, "    class %s selected;\n", sanitizeMermaidID(overlay.Selected))
		}
	}

	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func sanitizeMermaidID(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '-', '/', '\\', ' ', ':':
			return '_'
		}
		return r
	}, id)
}
