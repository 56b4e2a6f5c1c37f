package database

import (
	"context"
	"testing"

	"github.com/siherrmann/hybridrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initGraph stores a small graph: c1 -> c2 -> c3, c1 <-> c4, c4 -> c5 (reference)
func initGraph(t *testing.T) *EdgesDBHandler {
	database := initDB(t)
	ctx := context.Background()

	chunksDbHandler, err := NewChunksDBHandler(database, 3, true)
	require.NoError(t, err)
	edgesDbHandler, err := NewEdgesDBHandler(database, true)
	require.NoError(t, err)

	for i, id := range []string{"c1", "c2", "c3", "c4", "c5"} {
		err := chunksDbHandler.InsertChunk(ctx, &model.Chunk{
			ID:        id,
			Content:   "content of " + id,
			Embedding: unitVector(3, i),
		})
		require.NoError(t, err)
	}

	edges := []*model.Edge{
		{SourceID: "c1", TargetID: "c2", EdgeType: model.EdgeTypeSemantic, Weight: 1},
		{SourceID: "c2", TargetID: "c3", EdgeType: model.EdgeTypeSemantic, Weight: 1},
		{SourceID: "c4", TargetID: "c1", EdgeType: model.EdgeTypeSemantic, Weight: 0.5, Bidirectional: true},
		{SourceID: "c4", TargetID: "c5", EdgeType: model.EdgeTypeReference, Weight: 1},
	}
	for _, e := range edges {
		require.NoError(t, edgesDbHandler.InsertEdge(ctx, e))
	}

	return edgesDbHandler
}

func TestEdgesNewEdgesDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewEdgesDBHandler", func(t *testing.T) {
		edgesDbHandler, err := NewEdgesDBHandler(database, true)
		assert.NoError(t, err, "Expected NewEdgesDBHandler to not return an error")
		require.NotNil(t, edgesDbHandler, "Expected NewEdgesDBHandler to return a non-nil instance")
	})

	t.Run("Invalid call NewEdgesDBHandler with nil database", func(t *testing.T) {
		_, err := NewEdgesDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating EdgesDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil")
	})
}

func TestEdgesInsert(t *testing.T) {
	edgesDbHandler := initGraph(t)
	ctx := context.Background()

	t.Run("Insert edge applies defaults", func(t *testing.T) {
		edge := &model.Edge{SourceID: "c3", TargetID: "c5"}
		err := edgesDbHandler.InsertEdge(ctx, edge)
		require.NoError(t, err)

		assert.Equal(t, model.EdgeTypeSemantic, edge.EdgeType)
		assert.Equal(t, 1.0, edge.Weight)
		assert.NotEmpty(t, edge.ID.String())
	})

	t.Run("Insert edge without target", func(t *testing.T) {
		err := edgesDbHandler.InsertEdge(ctx, &model.Edge{SourceID: "c1"})
		assert.Error(t, err)
	})

	t.Run("Select connected edges", func(t *testing.T) {
		edges, err := edgesDbHandler.SelectEdgesConnected(ctx, "c1")
		require.NoError(t, err)
		assert.Len(t, edges, 2, "Expected c1 to touch the c1->c2 and c4<->c1 edges")
	})

	t.Run("Delete edge", func(t *testing.T) {
		edges, err := edgesDbHandler.SelectEdgesConnected(ctx, "c3")
		require.NoError(t, err)
		before := len(edges)
		require.Greater(t, before, 0)

		require.NoError(t, edgesDbHandler.DeleteEdge(ctx, edges[0].ID))

		edges, err = edgesDbHandler.SelectEdgesConnected(ctx, "c3")
		require.NoError(t, err)
		assert.Len(t, edges, before-1)
	})
}

func TestEdgesQuerySubgraph(t *testing.T) {
	edgesDbHandler := initGraph(t)
	ctx := context.Background()

	t.Run("Expands one hop including bidirectional edges", func(t *testing.T) {
		nodes, edges, err := edgesDbHandler.QuerySubgraph(ctx, []string{"c1"}, 1, 0)
		require.NoError(t, err)

		hops := map[string]int{}
		for _, n := range nodes {
			hops[n.ID] = n.Hops
		}
		assert.Equal(t, map[string]int{"c1": 0, "c2": 1, "c4": 1}, hops)
		assert.Len(t, edges, 2, "Expected the edges among c1, c2 and c4")
	})

	t.Run("Two hops reach the far nodes", func(t *testing.T) {
		nodes, _, err := edgesDbHandler.QuerySubgraph(ctx, []string{"c1"}, 2, 0)
		require.NoError(t, err)

		hops := map[string]int{}
		for _, n := range nodes {
			hops[n.ID] = n.Hops
		}
		assert.Equal(t, 2, hops["c3"])
		assert.Equal(t, 2, hops["c5"])
	})

	t.Run("Keeps the smallest hop distance across seeds", func(t *testing.T) {
		nodes, _, err := edgesDbHandler.QuerySubgraph(ctx, []string{"c1", "c2"}, 2, 0)
		require.NoError(t, err)

		seen := map[string]int{}
		for _, n := range nodes {
			seen[n.ID]++
			if n.ID == "c3" {
				assert.Equal(t, 1, n.Hops, "Expected c3 one hop from seed c2")
			}
		}
		for id, count := range seen {
			assert.Equal(t, 1, count, "Expected node %s once", id)
		}
	})

	t.Run("Applies the limit nearest first", func(t *testing.T) {
		nodes, _, err := edgesDbHandler.QuerySubgraph(ctx, []string{"c1"}, 2, 2)
		require.NoError(t, err)
		require.Len(t, nodes, 2)
		assert.Equal(t, "c1", nodes[0].ID)
		assert.Equal(t, 1, nodes[1].Hops)
	})

	t.Run("Weights multiply along the path", func(t *testing.T) {
		nodes, _, err := edgesDbHandler.QuerySubgraph(ctx, []string{"c1"}, 1, 0)
		require.NoError(t, err)
		for _, n := range nodes {
			if n.ID == "c4" {
				assert.InDelta(t, 0.5, n.Weight, 1e-9)
				assert.Equal(t, []string{"c1", "c4"}, n.Path)
			}
		}
	})

	t.Run("Stops walking once the limit is reached", func(t *testing.T) {
		nodes, _, err := edgesDbHandler.QuerySubgraph(ctx, []string{"c1"}, 5, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c2", "c4"}, nodeIDs(nodes), "Expected the first layer to fill the limit")
		for _, n := range nodes {
			assert.LessOrEqual(t, n.Hops, 1)
		}
	})

	t.Run("Paths follow the walk from the seed", func(t *testing.T) {
		nodes, _, err := edgesDbHandler.QuerySubgraph(ctx, []string{"c1"}, 2, 0)
		require.NoError(t, err)

		paths := map[string][]string{}
		for _, n := range nodes {
			paths[n.ID] = n.Path
		}
		assert.Equal(t, []string{"c1"}, paths["c1"])
		assert.Equal(t, []string{"c1", "c2", "c3"}, paths["c3"])
		assert.Equal(t, []string{"c1", "c4", "c5"}, paths["c5"])
	})

	t.Run("Filters edge types", func(t *testing.T) {
		edgesDbHandler.EdgeTypes = []model.EdgeType{model.EdgeTypeSemantic}
		defer func() { edgesDbHandler.EdgeTypes = nil }()

		nodes, _, err := edgesDbHandler.QuerySubgraph(ctx, []string{"c4"}, 1, 0)
		require.NoError(t, err)
		for _, n := range nodes {
			assert.NotEqual(t, "c5", n.ID, "Expected the reference edge to be ignored")
		}
	})

	t.Run("Empty seeds return empty results", func(t *testing.T) {
		nodes, edges, err := edgesDbHandler.QuerySubgraph(ctx, nil, 2, 0)
		require.NoError(t, err)
		assert.Empty(t, nodes)
		assert.Empty(t, edges)
	})

	t.Run("Unknown seeds return nothing", func(t *testing.T) {
		nodes, _, err := edgesDbHandler.QuerySubgraph(ctx, []string{"missing"}, 2, 0)
		require.NoError(t, err)
		assert.Empty(t, nodes)
	})
}

func TestEdgesQueryNeighbors(t *testing.T) {
	edgesDbHandler := initGraph(t)
	ctx := context.Background()

	t.Run("Excludes the start node", func(t *testing.T) {
		nodes, err := edgesDbHandler.QueryNeighbors(ctx, "c1", 1, 0)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"c2", "c4"}, nodeIDs(nodes))
	})

	t.Run("Limit counts neighbors only", func(t *testing.T) {
		nodes, err := edgesDbHandler.QueryNeighbors(ctx, "c1", 2, 1)
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		assert.Equal(t, 1, nodes[0].Hops)
	})
}

func nodeIDs(nodes []model.Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
