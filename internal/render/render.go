// Package render turns a document tree into the markup painted by the
// rendering surface. Rendering is pure: the same tree always yields the same
// bytes.
package render

import (
	"bytes"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NodeIDAttr is the attribute that ties a rendered element back to its node.
const NodeIDAttr = "data-node-id"

var (
	tagPattern  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*$`)
	attrPattern = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_.:-]*$`)
)

// rawTextElements keep their content out of the DOM (script, template),
// serialize it unescaped or, for plaintext, swallow the rest of the markup.
// They render as DefaultTag.
var rawTextElements = map[string]bool{
	"iframe": true, "noembed": true, "noframes": true, "noscript": true,
	"plaintext": true, "script": true, "style": true, "template": true,
	"textarea": true, "title": true, "xmp": true,
}

// Option configures Render.
type Option func(*options)

type options struct {
	nodeIDs bool
}

// WithoutNodeIDs omits the data-node-id attribute (clean exports).
func WithoutNodeIDs() Option {
	return func(o *options) {
		o.nodeIDs = false
	}
}

// Render serializes the forest depth-first: opening tag, attributes in name
// order, the style string built from the styles map, text, children, closing
// tag. Selection is not part of the markup; it travels in Frame.Highlight.
func Render(tree *domain.Tree, opts ...Option) (domain.Frame, error) {
	cfg := options{nodeIDs: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	var buf bytes.Buffer
	if tree != nil {
		for _, root := range tree.Roots {
			if err := html.Render(&buf, element(root, cfg)); err != nil {
				return domain.Frame{}, fmt.Errorf("render %q: %w", root.ID, err)
			}
		}
	}
	return domain.Frame{
		Markup:    buf.String(),
		Highlight: Highlight(tree),
	}, nil
}

// Highlight returns the directive for the selected node, or nil.
func Highlight(tree *domain.Tree) *domain.Highlight {
	sel := tree.Selected()
	if sel == nil {
		return nil
	}
	return &domain.Highlight{
		NodeID:         sel.ID,
		Outline:        domain.HighlightOutline,
		ScrollIntoView: true,
	}
}

// StyleString formats styles as "k: v; k2: v2" in key order.
func StyleString(styles map[string]string) string {
	keys := make([]string, 0, len(styles))
	for k := range styles {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+styles[k])
	}
	return strings.Join(parts, "; ")
}

func element(n *domain.Node, cfg options) *html.Node {
	tag := strings.ToLower(n.Tag)
	if !tagPattern.MatchString(tag) || rawTextElements[tag] {
		tag = domain.DefaultTag
	}
	el := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	el.Attr = attributes(n, cfg)

	if domain.IsVoid(tag) {
		return el
	}
	if n.Text != "" {
		el.AppendChild(&html.Node{Type: html.TextNode, Data: n.Text})
	}
	for _, c := range n.Children {
		el.AppendChild(element(c, cfg))
	}
	return el
}

func attributes(n *domain.Node, cfg options) []html.Attribute {
	attrs := make([]html.Attribute, 0, len(n.Attributes)+2)
	for name, value := range n.Attributes {
		key := strings.ToLower(name)
		if !attrPattern.MatchString(key) || key == NodeIDAttr {
			continue
		}
		if key == "style" && len(n.Styles) > 0 {
			continue
		}
		attrs = append(attrs, html.Attribute{Key: key, Val: value})
	}
	if len(n.Styles) > 0 {
		attrs = append(attrs, html.Attribute{Key: "style", Val: StyleString(n.Styles)})
	}
	if cfg.nodeIDs {
		attrs = append(attrs, html.Attribute{Key: NodeIDAttr, Val: n.ID})
	}
	slices.SortFunc(attrs, func(a, b html.Attribute) int {
		return strings.Compare(a.Key, b.Key)
	})
	return slices.CompactFunc(attrs, func(a, b html.Attribute) bool {
		return a.Key == b.Key
	})
}
