package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/testutils"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/bridge"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *lattice.Studio) {
	t.Helper()
	studio := lattice.New(memory.NewStore(), lattice.WithIDGenerator(testutils.SequentialIDs("n")))
	t.Cleanup(func() { _ = studio.Close(context.Background()) })
	return NewServer(studio, nil), studio
}

func TestApplyMessage(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)

	res, err := s.handleApplyMessage(ctx, mcp.CallToolRequest{}, map[string]any{
		"project_id": "site",
		"type":       bridge.MsgPaletteDrop,
		"kind":       "heading",
		"parent_id":  domain.RootID,
		"index":      float64(0),
	})
	require.NoError(t, err)
	assert.True(t, res.Result.OK)
	assert.Equal(t, "n1", res.Result.NodeID)
	assert.Equal(t, 1, res.Nodes)
	assert.Equal(t, `<h1 data-node-id="n1">Heading</h1>`, res.Markup)

	res, err = s.handleApplyMessage(ctx, mcp.CallToolRequest{}, map[string]any{
		"project_id": "site",
		"type":       bridge.MsgElementTextChanged,
		"id":         "n1",
		"text":       "Welcome",
	})
	require.NoError(t, err)
	assert.True(t, res.Result.OK)
	assert.Contains(t, res.Markup, "Welcome")
}

func TestApplyMessage_WrapWithJSONIDs(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)

	for range 2 {
		_, err := s.handleApplyMessage(ctx, mcp.CallToolRequest{}, map[string]any{
			"project_id": "site", "type": bridge.MsgPaletteDrop, "kind": "paragraph", "index": "9",
		})
		require.NoError(t, err)
	}
	res, err := s.handleApplyMessage(ctx, mcp.CallToolRequest{}, map[string]any{
		"project_id": "site",
		"type":       bridge.MsgElementsWrapInDiv,
		"ids":        `["n2","n1"]`,
	})
	require.NoError(t, err)
	require.True(t, res.Result.OK, res.Result.Error)
	assert.Equal(t, 3, res.Nodes)
	assert.Contains(t, res.Markup, `<div data-node-id="n3"><p data-node-id="n1">`)
}

func TestApplyMessage_Rejected(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)

	res, err := s.handleApplyMessage(ctx, mcp.CallToolRequest{}, map[string]any{
		"project_id": "site",
		"type":       bridge.MsgElementDelete,
		"id":         "ghost",
	})
	require.NoError(t, err)
	assert.False(t, res.Result.OK)
	assert.Equal(t, bridge.CodeNotFound, res.Result.Code)

	res, err = s.handleApplyMessage(ctx, mcp.CallToolRequest{}, map[string]any{
		"project_id": "site",
		"type":       bridge.MsgDomUpdated,
		"document":   "{not json",
	})
	require.NoError(t, err)
	assert.Equal(t, bridge.CodeMalformed, res.Result.Code)
	assert.Zero(t, res.Nodes)
}

func TestApplyMessage_RequiresProject(t *testing.T) {
	s, _ := newTestServer(t)
	_, err := s.handleApplyMessage(context.Background(), mcp.CallToolRequest{}, map[string]any{"type": bridge.MsgReady})
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)
}

func TestGetDocumentAndExport(t *testing.T) {
	ctx := context.Background()
	s, studio := newTestServer(t)
	require.NoError(t, studio.Put(ctx, "site", "My Site", domain.NewTree(domain.NewNode("a", "h1", "Hello"))))

	doc, err := s.handleGetDocument(ctx, mcp.CallToolRequest{}, map[string]any{"project_id": "site"})
	require.NoError(t, err)
	assert.Equal(t, "My Site", doc.Name)
	assert.Equal(t, int64(1), doc.Revision)
	var wire []map[string]any
	require.NoError(t, json.Unmarshal(doc.Document, &wire))
	assert.Equal(t, "a", wire[0]["id"])

	page, err := s.handleExport(ctx, mcp.CallToolRequest{}, map[string]any{"project_id": "site"})
	require.NoError(t, err)
	assert.Equal(t, "html", page.Format)
	assert.Contains(t, page.Content, "<title>My Site</title>")

	md, err := s.handleExport(ctx, mcp.CallToolRequest{}, map[string]any{"project_id": "site", "format": "markdown"})
	require.NoError(t, err)
	assert.Contains(t, md.Content, "# Hello")

	_, err = s.handleExport(ctx, mcp.CallToolRequest{}, map[string]any{"project_id": "site", "format": "pdf"})
	assert.Error(t, err)

	_, err = s.handleGetDocument(ctx, mcp.CallToolRequest{}, map[string]any{"project_id": "ghost"})
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestListProjects(t *testing.T) {
	ctx := context.Background()
	s, studio := newTestServer(t)

	empty, err := s.handleListProjects(ctx, mcp.CallToolRequest{}, nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Projects)

	require.NoError(t, studio.Put(ctx, "b", "", &domain.Tree{}))
	require.NoError(t, studio.Put(ctx, "a", "", &domain.Tree{}))
	res, err := s.handleListProjects(ctx, mcp.CallToolRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.Projects)
}

func TestPaletteJSON(t *testing.T) {
	s, _ := newTestServer(t)
	raw, err := s.paletteJSON(context.Background())
	require.NoError(t, err)

	var templates []domain.Template
	require.NoError(t, json.Unmarshal(raw, &templates))
	kinds := make([]string, 0, len(templates))
	for _, tmpl := range templates {
		kinds = append(kinds, tmpl.Kind)
	}
	assert.Contains(t, kinds, "heading")
	assert.Contains(t, kinds, "paragraph")
}

func TestDecodeMessage(t *testing.T) {
	id, msg, err := decodeMessage(map[string]any{
		"project_id": "p",
		"type":       bridge.MsgElementMoved,
		"id":         "a",
		"parent_id":  "b",
		"index":      float64(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "p", id)
	assert.Equal(t, bridge.Message{Type: bridge.MsgElementMoved, ID: "a", ParentID: "b", Index: 2}, msg)
}
