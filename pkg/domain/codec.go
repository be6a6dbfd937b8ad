package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// wireNode is the JSON shape exchanged with the rendering surface and stores.
// Map keys are emitted in lexical order by encoding/json, which keeps the
// serialized form deterministic.
type wireNode struct {
	ID         string            `json:"id"`
	Tag        string            `json:"tag"`
	Text       string            `json:"text"`
	Styles     map[string]string `json:"styles"`
	Attributes map[string]string `json:"attributes"`
	Children   []*wireNode       `json:"children"`
	ParentRef  *string           `json:"parentRef"`
}

// DecodeError describes why a document could not be parsed.
// It matches ErrMalformedDocument with errors.Is.
type DecodeError struct {
	Reason string
	// Offset is the byte offset of the failure when known, otherwise -1.
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("malformed document at offset %d: %s", e.Offset, e.Reason)
	}
	return "malformed document: " + e.Reason
}

func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedDocument, e.Err}
	}
	return []error{ErrMalformedDocument}
}

// ParseOption configures ParseTree.
type ParseOption func(*parseConfig)

type parseConfig struct {
	newID IDGenerator
}

// WithIDGenerator sets the generator used for nodes that arrive without an id.
func WithIDGenerator(gen IDGenerator) ParseOption {
	return func(c *parseConfig) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// MarshalJSON encodes the forest as a JSON array of nodes. Selection is
// dropped and parentRef is written from the current position.
func (t *Tree) MarshalJSON() ([]byte, error) {
	wire := make([]*wireNode, 0, len(t.Roots))
	for _, r := range t.Roots {
		wire = append(wire, toWire(r, nil))
	}
	return json.Marshal(wire)
}

// UnmarshalJSON replaces t with the parsed document.
func (t *Tree) UnmarshalJSON(data []byte) error {
	parsed, err := ParseTree(data)
	if err != nil {
		return err
	}
	t.Roots = parsed.Roots
	return nil
}

// ParseTree decodes a document that is either a single root object or an
// array of roots. Both shapes are normalized into one forest before any
// engine logic sees them. ParentRef values on input are ignored and rebuilt.
func ParseTree(data []byte, opts ...ParseOption) (*Tree, error) {
	cfg := parseConfig{newID: NewID}
	for _, opt := range opts {
		opt(&cfg)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &DecodeError{Reason: "empty document", Offset: -1}
	}

	var roots []*wireNode
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &roots); err != nil {
			return nil, jsonDecodeError(err)
		}
	case '{':
		var single wireNode
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, jsonDecodeError(err)
		}
		roots = []*wireNode{&single}
	default:
		return nil, &DecodeError{
			Reason: fmt.Sprintf("expected an object or an array, found %q", trimmed[0]),
			Offset: int64(len(data) - len(bytes.TrimLeft(data, " \t\r\n"))),
		}
	}

	b := builder{cfg: cfg, seen: make(map[string]struct{})}
	tree := &Tree{Roots: make([]*Node, 0, len(roots))}
	for i, w := range roots {
		n, err := b.build(w, "", fmt.Sprintf("[%d]", i))
		if err != nil {
			return nil, err
		}
		tree.Roots = append(tree.Roots, n)
	}
	return tree, nil
}

type builder struct {
	cfg  parseConfig
	seen map[string]struct{}
}

func (b *builder) build(w *wireNode, parentID, path string) (*Node, error) {
	if w == nil {
		return nil, &DecodeError{Reason: "null node at " + path, Offset: -1}
	}
	id := w.ID
	if id == "" {
		id = b.cfg.newID()
	}
	if _, dup := b.seen[id]; dup {
		return nil, &DecodeError{Reason: fmt.Sprintf("duplicate id %q at %s", id, path), Offset: -1, Err: ErrDuplicateID}
	}
	b.seen[id] = struct{}{}

	n := NewNode(id, w.Tag, w.Text)
	n.Styles = copyMap(w.Styles)
	n.Attributes = copyMap(w.Attributes)
	n.ParentRef = parentID
	if len(w.Children) > 0 {
		n.Children = make([]*Node, 0, len(w.Children))
		for i, cw := range w.Children {
			c, err := b.build(cw, id, fmt.Sprintf("%s.children[%d]", path, i))
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, c)
		}
	}
	return n, nil
}

func toWire(n *Node, parent *Node) *wireNode {
	w := &wireNode{
		ID:         n.ID,
		Tag:        n.Tag,
		Text:       n.Text,
		Styles:     n.Styles,
		Attributes: n.Attributes,
		Children:   make([]*wireNode, 0, len(n.Children)),
	}
	if w.Styles == nil {
		w.Styles = map[string]string{}
	}
	if w.Attributes == nil {
		w.Attributes = map[string]string{}
	}
	if parent != nil {
		ref := parent.ID
		w.ParentRef = &ref
	}
	for _, c := range n.Children {
		w.Children = append(w.Children, toWire(c, n))
	}
	return w
}

func jsonDecodeError(err error) *DecodeError {
	var syntax *json.SyntaxError
	if errors.As(err, &syntax) {
		return &DecodeError{Reason: syntax.Error(), Offset: syntax.Offset, Err: err}
	}
	var typ *json.UnmarshalTypeError
	if errors.As(err, &typ) {
		reason := fmt.Sprintf("field %q: cannot use %s as %s", typ.Field, typ.Value, typ.Type)
		return &DecodeError{Reason: reason, Offset: typ.Offset, Err: err}
	}
	return &DecodeError{Reason: err.Error(), Offset: -1, Err: err}
}
