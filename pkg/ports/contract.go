package ports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunProjectStoreContract runs a suite of tests to verify that a ProjectStore
// implementation adheres to the defined interface contract.
func RunProjectStoreContract(t *testing.T, store ProjectStore) {
	ctx := context.Background()
	projectID := "contract-test-project-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		project := domain.NewProject(projectID, "Contract")
		project.Tree = json.RawMessage(`[{"id":"a","tag":"p","text":"hi","styles":{},"attributes":{},"children":[],"parentRef":null}]`)
		project.Metadata["author"] = "contract"
		project.Revision = 3

		err := store.Save(ctx, project)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, projectID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, project.ID, loaded.ID)
		assert.Equal(t, project.Name, loaded.Name)
		assert.Equal(t, int64(3), loaded.Revision)
		assert.Equal(t, "contract", loaded.Metadata["author"])
		assert.JSONEq(t, string(project.Tree), string(loaded.Tree))

		tree, err := loaded.Document()
		require.NoError(t, err, "stored tree must stay parseable")
		assert.Equal(t, []string{"a"}, tree.IDs())
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		project := domain.NewProject(projectID, "Renamed")
		project.Revision = 4
		require.NoError(t, store.Save(ctx, project))

		loaded, err := store.Load(ctx, projectID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", loaded.Name)
		assert.Equal(t, int64(4), loaded.Revision)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+projectID)
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, domain.NewProject(projectID, "Doomed"))
		require.NoError(t, err)

		err = store.Delete(ctx, projectID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, projectID)
		assert.ErrorIs(t, err, domain.ErrProjectNotFound, "Load after Delete should return ErrProjectNotFound")

		assert.NoError(t, store.Delete(ctx, projectID), "Delete of a missing project is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := projectID + "-1"
		id2 := projectID + "-2"
		require.NoError(t, store.Save(ctx, domain.NewProject(id1, "one")))
		require.NoError(t, store.Save(ctx, domain.NewProject(id2, "two")))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		projects, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, projects, id1)
		assert.Contains(t, projects, id2)
	})
}
