package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Import parses an HTML fragment (or page) into a document tree. Elements
// become nodes; data-node-id is reused as the id when present and unique,
// the style attribute is split into the styles map and direct text children
// are joined into the node text. Comments and scripts are dropped.
func Import(r io.Reader, gen domain.IDGenerator) (*domain.Tree, error) {
	if gen == nil {
		gen = domain.NewID
	}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(r, body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	imp := importer{newID: gen, seen: make(map[string]struct{})}
	tree := &domain.Tree{}
	for _, n := range nodes {
		tree.Roots = append(tree.Roots, imp.collect(n)...)
	}
	tree.RebuildParents()
	return tree, nil
}

type importer struct {
	newID domain.IDGenerator
	seen  map[string]struct{}
}

// collect converts n, or lifts its element children when n is a structural
// wrapper (html, head, body) that the document model does not keep.
func (imp *importer) collect(n *html.Node) []*domain.Node {
	if n.Type != html.ElementNode {
		return nil
	}
	switch n.DataAtom {
	case atom.Script, atom.Head, atom.Title, atom.Meta, atom.Link:
		return nil
	case atom.Html, atom.Body:
		var out []*domain.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			out = append(out, imp.collect(c)...)
		}
		return out
	}
	return []*domain.Node{imp.convert(n)}
}

func (imp *importer) convert(n *html.Node) *domain.Node {
	node := domain.NewNode("", n.Data, "")
	for _, a := range n.Attr {
		switch a.Key {
		case NodeIDAttr:
			if _, dup := imp.seen[a.Val]; !dup && a.Val != "" {
				node.ID = a.Val
			}
		case "style":
			node.Styles = parseStyle(a.Val)
		default:
			if node.Attributes == nil {
				node.Attributes = make(map[string]string)
			}
			node.Attributes[a.Key] = a.Val
		}
	}
	if node.ID == "" {
		node.ID = imp.newID()
	}
	imp.seen[node.ID] = struct{}{}

	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			text.WriteString(c.Data)
		case html.ElementNode:
			node.Children = append(node.Children, imp.collect(c)...)
		}
	}
	node.Text = strings.TrimSpace(text.String())
	return node
}

func parseStyle(s string) map[string]string {
	styles := make(map[string]string)
	for _, decl := range strings.Split(s, ";") {
		prop, value, ok := strings.Cut(decl, ":")
		prop = strings.TrimSpace(prop)
		value = strings.TrimSpace(value)
		if !ok || prop == "" || value == "" {
			continue
		}
		styles[strings.ToLower(prop)] = value
	}
	if len(styles) == 0 {
		return nil
	}
	return styles
}
