package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/siherrmann/hybridrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	store := NewStore()
	for _, id := range []string{"c1", "c2", "c3", "c4", "c5"} {
		require.NoError(t, store.AddChunk(&model.Chunk{ID: id, Content: "content of " + id}))
	}
	require.NoError(t, store.AddEdge(model.Edge{SourceID: "c1", TargetID: "c2"}))
	require.NoError(t, store.AddEdge(model.Edge{SourceID: "c2", TargetID: "c3"}))
	require.NoError(t, store.AddEdge(model.Edge{SourceID: "c4", TargetID: "c1", Weight: 0.5, Bidirectional: true}))
	require.NoError(t, store.AddEdge(model.Edge{SourceID: "c4", TargetID: "c5", EdgeType: model.EdgeTypeReference}))
	return store
}

func TestStoreAdd(t *testing.T) {
	store := NewStore()

	t.Run("Node without id", func(t *testing.T) {
		assert.Error(t, store.AddNode(model.Node{}))
	})

	t.Run("Edge to unknown node", func(t *testing.T) {
		require.NoError(t, store.AddNode(model.Node{ID: "a"}))
		err := store.AddEdge(model.Edge{SourceID: "a", TargetID: "missing"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "missing")
	})

	t.Run("Edge defaults", func(t *testing.T) {
		require.NoError(t, store.AddNode(model.Node{ID: "b"}))
		require.NoError(t, store.AddEdge(model.Edge{SourceID: "a", TargetID: "b"}))

		edges, err := store.GetEdgesFrom(context.Background(), "a", nil)
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, model.EdgeTypeSemantic, edges[0].EdgeType)
		assert.Equal(t, 1.0, edges[0].Weight)
	})

	t.Run("Directed edge is not walkable from its target", func(t *testing.T) {
		edges, err := store.GetEdgesFrom(context.Background(), "b", nil)
		require.NoError(t, err)
		assert.Empty(t, edges)
	})
}

func TestStoreQuerySubgraph(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("Expands one hop including bidirectional edges", func(t *testing.T) {
		nodes, edges, err := store.QuerySubgraph(ctx, []string{"c1"}, 1, 0)
		require.NoError(t, err)

		assert.Equal(t, []string{"c1", "c2", "c4"}, ids(nodes))
		assert.Len(t, edges, 2)
	})

	t.Run("Applies the limit nearest first", func(t *testing.T) {
		nodes, _, err := store.QuerySubgraph(ctx, []string{"c1"}, 3, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c2"}, ids(nodes))
	})

	t.Run("Filters edge types", func(t *testing.T) {
		filtered := newTestStore(t)
		filtered.EdgeTypes = []model.EdgeType{model.EdgeTypeSemantic}

		nodes, _, err := filtered.QuerySubgraph(ctx, []string{"c4"}, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"c4", "c1"}, ids(nodes))
	})

	t.Run("Empty seeds return nothing", func(t *testing.T) {
		nodes, edges, err := store.QuerySubgraph(ctx, nil, 2, 0)
		require.NoError(t, err)
		assert.Empty(t, nodes)
		assert.Empty(t, edges)
	})

	t.Run("Negative hops are rejected", func(t *testing.T) {
		_, _, err := store.QuerySubgraph(ctx, []string{"c1"}, -1, 0)
		assert.Error(t, err)
	})

	t.Run("Returned nodes do not alias the store", func(t *testing.T) {
		withMeta := NewStore()
		require.NoError(t, withMeta.AddNode(model.Node{ID: "m", Metadata: model.Metadata{"k": "v"}}))

		nodes, _, err := withMeta.QuerySubgraph(ctx, []string{"m"}, 0, 0)
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		nodes[0].Metadata["k"] = "changed"

		node, err := withMeta.GetNode(ctx, "m")
		require.NoError(t, err)
		assert.Equal(t, "v", node.Metadata["k"])
	})
}

func TestStoreQueryNeighbors(t *testing.T) {
	store := newTestStore(t)

	neighbors, err := store.QueryNeighbors(context.Background(), "c1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c4", "c3", "c5"}, ids(neighbors))

	limited, err := store.QueryNeighbors(context.Background(), "c1", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, ids(limited))
}

func TestStoreConcurrentReads(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nodes, _, err := store.QuerySubgraph(context.Background(), []string{"c1"}, 2, 0)
			assert.NoError(t, err)
			assert.Len(t, nodes, 5)
		}()
	}
	wg.Wait()
}

func ids(nodes []model.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}
