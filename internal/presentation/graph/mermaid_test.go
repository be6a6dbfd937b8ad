package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/lattice/internal/presentation/graph"
	"github.com/aretw0/lattice/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		tree     *domain.Tree
		overlay  *graph.Overlay
		contains []string
	}{
		{
			name: "Root Shape",
			tree: domain.NewTree(domain.NewNode("page", "main", "")),
			contains: []string{
				`page(["&lt;main&gt; page"])`,
			},
		},
		{
			name: "Text Leaf Shape and Edge Order",
			tree: domain.NewTree(domain.NewNode("w", "div", "").Append(
				domain.NewNode("a", "p", "first"),
				domain.NewNode("b", "span", ""),
			)),
			contains: []string{
				`a[/"&lt;p&gt; a <br/> first"/]`,
				`b["&lt;span&gt; b"]`,
				`w -- "0" --> a`,
				`w -- "1" --> b`,
			},
		},
		{
			name: "ID Sanitization",
			tree: domain.NewTree(domain.NewNode("0192-ab.cd", "div", "")),
			contains: []string{
				`0192_ab_cd(["&lt;div&gt; 0192-ab.cd"])`,
			},
		},
		{
			name: "Quote Escaping",
			tree: domain.NewTree(domain.NewNode("q", "p", `say "hi"`)),
			contains: []string{
				`say 'hi'`,
			},
		},
		{
			name:    "Overlay",
			tree:    domain.NewTree(domain.NewNode("a", "p", ""), domain.NewNode("b", "p", "")),
			overlay: &graph.Overlay{Selected: "b", Changed: []string{"a", "a"}},
			contains: []string{
				"class a changed;",
				"class b selected;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.tree, tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
			if tt.overlay != nil && strings.Count(got, "class a changed;") != 1 {
				t.Errorf("changed ids must be deduplicated:\n%v", got)
			}
		})
	}
}
