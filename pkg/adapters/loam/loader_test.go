package loam

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"

	"github.com/aretw0/lattice/internal/testutils"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for filename, content := range files {
		err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644)
		require.NoError(t, err)
	}
}

func TestLoader_Contract(t *testing.T) {
	_, repo := testutils.SetupTestRepo(t)
	ctx := context.Background()

	docs := []core.Document{
		{ID: "hero.md", Content: `---
label: Hero
category: Layout
tag: section
---
`},
		{ID: "cta.md", Content: `---
tag: button
---
Buy now`},
	}
	for _, doc := range docs {
		require.NoError(t, repo.Save(ctx, doc))
	}

	loader := New(loam.NewTypedRepository[TemplateMetadata](repo))
	tests.PaletteLoaderContractTest(t, loader, map[string]string{
		"hero": "section",
		"cta":  "button",
	})
}

func TestLoader_InlineChildren(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t)
	seed(t, tmpDir, map[string]string{
		"card.md": `---
label: Card
tag: article
styles:
  padding: 16px
  order: 2
attributes:
  class: card
children:
  - tag: h3
    text: Title
  - tag: div
    children:
      - tag: span
        text: Nested
---
`,
	})

	loader := New(loam.NewTypedRepository[TemplateMetadata](repo))
	tmpl, err := loader.GetTemplate(context.Background(), "card")
	require.NoError(t, err)

	assert.Equal(t, "Card", tmpl.Label)
	root := tmpl.Root
	assert.Equal(t, "article", root.Tag)
	assert.Equal(t, map[string]string{"padding": "16px", "order": "2"}, root.Styles)
	assert.Equal(t, "card", root.Attributes["class"])
	require.Len(t, root.Children, 2)
	assert.Equal(t, "Title", root.Children[0].Text)
	require.Len(t, root.Children[1].Children, 1)
	assert.Equal(t, "Nested", root.Children[1].Children[0].Text)

	tree := domain.NewTree(tmpl.Instantiate(testutils.SequentialIDs("n")))
	assert.NoError(t, tree.Validate())
	assert.Equal(t, []string{"n1", "n2", "n3", "n4"}, tree.IDs())
}

func TestLoader_TemplateReferences(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t)
	seed(t, tmpDir, map[string]string{
		"button.md": `---
tag: button
---
Click Me`,
		"form.json": `{
  "tag": "form",
  "children": ["button", {"tag": "input"}, "button"]
}`,
		"loop.md": `---
children: [loop]
---
`,
	})

	loader := New(loam.NewTypedRepository[TemplateMetadata](repo))
	ctx := context.Background()

	tmpl, err := loader.GetTemplate(ctx, "form")
	require.NoError(t, err)
	require.Len(t, tmpl.Root.Children, 3)
	assert.Equal(t, "button", tmpl.Root.Children[0].Tag)
	assert.Equal(t, "Click Me", tmpl.Root.Children[0].Text)
	assert.Equal(t, "input", tmpl.Root.Children[1].Tag)
	assert.NoError(t, domain.NewTree(tmpl.Root).Validate(), "referenced templates get distinct ids")

	_, err = loader.GetTemplate(ctx, "loop")
	assert.ErrorIs(t, err, domain.ErrCycle)
}

func TestLoader_ListTemplates_DetectsCollisions(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t)
	seed(t, tmpDir, map[string]string{
		"foo.md":   "---\ntag: p\n---\nExplicit",
		"foo.json": `{"tag": "p"}`,
	})

	loader := New(loam.NewTypedRepository[TemplateMetadata](repo))
	_, err := loader.ListTemplates(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
	assert.Contains(t, err.Error(), "foo")
}

func TestLoader_GetTemplate_NormalizesKind(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t)
	seed(t, tmpDir, map[string]string{"node.json": `{"tag": "nav"}`})

	loader := New(loam.NewTypedRepository[TemplateMetadata](repo))
	tmpl, err := loader.GetTemplate(context.Background(), "node.json")
	require.NoError(t, err)
	assert.Equal(t, "node", tmpl.Kind)
	assert.Equal(t, "nav", tmpl.Root.Tag)
}
