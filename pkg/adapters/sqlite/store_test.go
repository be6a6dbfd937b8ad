package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/lattice/pkg/adapters/sqlite"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_Contract(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ports.RunProjectStoreContract(t, store)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lattice.db")
	ctx := context.Background()

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	p := domain.NewProject("durable", "Durable")
	p.Tree = []byte(`[{"id":"a","tag":"h1","text":"Hi"}]`)
	p.Revision = 5
	require.NoError(t, store.Save(ctx, p))
	require.NoError(t, store.Close())

	store, err = sqlite.Open(path)
	require.NoError(t, err)
	defer store.Close()

	loaded, err := store.Load(ctx, "durable")
	require.NoError(t, err)
	assert.Equal(t, int64(5), loaded.Revision)
	assert.Equal(t, string(p.Tree), string(loaded.Tree))
	assert.True(t, p.CreatedAt.Equal(loaded.CreatedAt))
	assert.Empty(t, loaded.Metadata)
}
