package tests

import (
	"context"
	"testing"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// PaletteLoaderContractTest is a reusable test suite that verifies if an
// adapter complies with ports.PaletteLoader. want maps each kind the adapter
// was seeded with to the tag of its root element.
func PaletteLoaderContractTest(t *testing.T, loader ports.PaletteLoader, want map[string]string) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetTemplate_Success", func(t *testing.T) {
		for kind, tag := range want {
			tmpl, err := loader.GetTemplate(ctx, kind)
			require.NoError(t, err, "kind %s", kind)
			assert.Equal(t, kind, tmpl.Kind)
			require.NotNil(t, tmpl.Root, "kind %s has no root", kind)
			assert.Equal(t, tag, tmpl.Root.Tag)
		}
	})

	t.Run("GetTemplate_NotFound", func(t *testing.T) {
		_, err := loader.GetTemplate(ctx, "non-existent-kind")
		assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
	})

	t.Run("ListTemplates", func(t *testing.T) {
		kinds, err := loader.ListTemplates(ctx)
		require.NoError(t, err)
		assert.Len(t, kinds, len(want))
		for kind := range want {
			assert.Contains(t, kinds, kind)
		}
		assert.IsNonDecreasing(t, kinds)
	})

	t.Run("Instantiate_FreshIDs", func(t *testing.T) {
		for kind := range want {
			tmpl, err := loader.GetTemplate(ctx, kind)
			require.NoError(t, err)
			a := tmpl.Instantiate(domain.NewID)
			b := tmpl.Instantiate(domain.NewID)
			assert.NotEqual(t, a.ID, b.ID)
		}
	})
}
