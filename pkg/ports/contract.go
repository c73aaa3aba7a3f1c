package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/theatre/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractScene(name string) *domain.SceneSpec {
	return &domain.SceneSpec{
		Name:      name,
		Situation: domain.DefaultSituation,
		Nodes: []domain.NodeSpec{
			{ID: "root", Title: "empty"},
			{ID: "a", Title: "installed", Deltas: []string{"leader"}},
			{ID: "b", Custom: &domain.State{Leader: true, Config: map[string]any{"mode": "debug"}}},
		},
		Edges: []domain.EdgeSpec{
			{ID: "e1", Start: "root", End: "a", EventSpec: domain.NewEventSpec("install")},
			{ID: "e2", Start: "a#leader", End: "b"},
		},
	}
}

// RunSceneStoreContract verifies that a SceneStore implementation adheres to
// the interface contract.
func RunSceneStoreContract(t *testing.T, store SceneStore) {
	ctx := context.Background()
	name := "contract-scene-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		scene := contractScene(name)
		require.NoError(t, store.Save(ctx, name, scene))

		loaded, err := store.Load(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, scene.Name, loaded.Name)
		require.Len(t, loaded.Nodes, 3)
		require.Len(t, loaded.Edges, 2)
		assert.Equal(t, "a", loaded.Nodes[1].ID)
		assert.Equal(t, []string{"leader"}, loaded.Nodes[1].Deltas)
		assert.Equal(t, "a#leader", loaded.Edges[1].Start)
		require.NotNil(t, loaded.Edges[0].EventSpec)
		assert.Equal(t, "install", loaded.Edges[0].EventSpec.Event.Name)
		assert.Nil(t, loaded.Edges[1].EventSpec)
		require.NotNil(t, loaded.Nodes[2].Custom)
		assert.True(t, loaded.Nodes[2].Custom.Leader)
		assert.Equal(t, "debug", loaded.Nodes[2].Custom.Config["mode"])
	})

	t.Run("Overwrite", func(t *testing.T) {
		scene := contractScene(name)
		scene.Nodes = scene.Nodes[:1]
		scene.Edges = nil
		require.NoError(t, store.Save(ctx, name, scene))

		loaded, err := store.Load(ctx, name)
		require.NoError(t, err)
		assert.Len(t, loaded.Nodes, 1)
		assert.Empty(t, loaded.Edges)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+name)
		assert.ErrorIs(t, err, domain.ErrSceneNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, name, contractScene(name)))
		require.NoError(t, store.Delete(ctx, name))

		_, err := store.Load(ctx, name)
		assert.ErrorIs(t, err, domain.ErrSceneNotFound, "Load after Delete should return ErrSceneNotFound")
		assert.NoError(t, store.Delete(ctx, name), "Delete is idempotent")
	})

	t.Run("List", func(t *testing.T) {
		id1 := name + "-1"
		id2 := name + "-2"
		require.NoError(t, store.Save(ctx, id1, contractScene(id1)))
		require.NoError(t, store.Save(ctx, id2, contractScene(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		names, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, id1)
		assert.Contains(t, names, id2)
	})
}
