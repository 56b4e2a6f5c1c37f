package retrieval

import (
	"context"
	"testing"

	"github.com/siherrmann/hybridrag/core/graph"
	"github.com/siherrmann/hybridrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hybridRequest(strategy model.Strategy) Request {
	cfg := model.DefaultQueryConfig()
	cfg.Strategy = strategy
	return Request{Query: "What is RAG?", Embedding: []float32{1, 0, 0}, Config: cfg}
}

func graphNodes(ids ...string) []model.Node {
	nodes := make([]model.Node, len(ids))
	for i, id := range ids {
		nodes[i] = model.Node{ID: id, Content: "text " + id, Hops: 1, Weight: 1}
	}
	return nodes
}

func TestHybridRetrieverVectorFirst(t *testing.T) {
	ctx := context.Background()

	t.Run("Seeds the graph with the vector hits", func(t *testing.T) {
		index := &mockVectorIndex{results: []model.RetrievalResult{vectorHit("c1", 0.9), vectorHit("c2", 0.8)}}
		store := &mockGraphStore{nodes: graphNodes("c1", "n3")}
		h := NewHybridRetriever(NewVectorRetriever(index, 0, 0, nil), NewGraphRetriever(store, 0, nil), nil, nil)

		c, err := h.Retrieve(ctx, hybridRequest(model.StrategyVectorFirst))
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c2"}, model.IDs(c.Vector))
		assert.Equal(t, []string{"c1", "n3"}, model.IDs(c.Graph))
		assert.Equal(t, []string{"c1", "c2"}, store.lastSeeds)
		assert.Equal(t, 16, index.lastK, "Expected the vector source to over-fetch candidates")
		assert.Empty(t, c.Degradations)
		assert.Equal(t, []string{"c1", "c2", "c1", "n3"}, model.IDs(c.All()))
	})

	t.Run("Vector hits reachable from another seed appear in both lists", func(t *testing.T) {
		store := graph.NewStore()
		for _, id := range []string{"c1", "c2", "n3"} {
			require.NoError(t, store.AddNode(model.Node{ID: id, Content: "Node " + id}))
		}
		require.NoError(t, store.AddEdge(model.Edge{SourceID: "c2", TargetID: "c1", Weight: 1}))
		require.NoError(t, store.AddEdge(model.Edge{SourceID: "c1", TargetID: "n3", Weight: 1}))

		index := &mockVectorIndex{results: []model.RetrievalResult{vectorHit("c1", 0.9), vectorHit("c2", 0.7)}}
		h := NewHybridRetriever(NewVectorRetriever(index, 0, 0, nil), NewGraphRetriever(store, 0, nil), nil, nil)

		c, err := h.Retrieve(ctx, hybridRequest(model.StrategyVectorFirst))
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c2"}, model.IDs(c.Vector))
		assert.Equal(t, []string{"c1", "n3"}, model.IDs(c.Graph))
	})

	t.Run("Vector failure falls back to pre-resolved seeds", func(t *testing.T) {
		index := &mockVectorIndex{err: assert.AnError}
		store := &mockGraphStore{nodes: graphNodes("n1", "n2", "n3")}
		h := NewHybridRetriever(NewVectorRetriever(index, 0, 0, nil), NewGraphRetriever(store, 0, nil), nil, nil)

		req := hybridRequest(model.StrategyVectorFirst)
		req.Config.SeedIDs = []string{"seed"}

		c, err := h.Retrieve(ctx, req)
		require.NoError(t, err)
		assert.Empty(t, c.Vector)
		assert.Len(t, c.Graph, 3)
		require.Len(t, c.Degradations, 1)
		assert.Equal(t, model.SourceVector, c.Degradations[0].Source)
		require.Len(t, c.Failures(), 1)
		assert.ErrorIs(t, c.Failures()[0], model.ErrRetrievalUnavailable)
	})

	t.Run("Both sources failing is a no context error", func(t *testing.T) {
		index := &mockVectorIndex{err: assert.AnError}
		store := &mockGraphStore{err: assert.AnError}
		h := NewHybridRetriever(NewVectorRetriever(index, 0, 0, nil), NewGraphRetriever(store, 0, nil), nil, nil)

		req := hybridRequest(model.StrategyVectorFirst)
		req.Config.SeedIDs = []string{"seed"}

		c, err := h.Retrieve(ctx, req)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrNoContextAvailable)
		assert.ErrorIs(t, err, model.ErrRetrievalUnavailable)
		require.NotNil(t, c)
		assert.Len(t, c.Degradations, 2)
	})

	t.Run("Empty sources without failures are not an error", func(t *testing.T) {
		store := &mockGraphStore{}
		h := NewHybridRetriever(NewVectorRetriever(&mockVectorIndex{}, 0, 0, nil), NewGraphRetriever(store, 0, nil), nil, nil)

		c, err := h.Retrieve(ctx, hybridRequest(model.StrategyVectorFirst))
		require.NoError(t, err)
		assert.True(t, c.Empty())
		assert.Equal(t, 0, store.calls, "Expected no graph query without seeds")
	})

	t.Run("Resolver supplies seeds when there are no vector hits", func(t *testing.T) {
		resolver := &mockResolver{seeds: []string{"e1"}}
		store := &mockGraphStore{nodes: graphNodes("n1")}
		h := NewHybridRetriever(NewVectorRetriever(&mockVectorIndex{}, 0, 0, nil), NewGraphRetriever(store, 0, nil), resolver, nil)

		c, err := h.Retrieve(ctx, hybridRequest(model.StrategyVectorFirst))
		require.NoError(t, err)
		assert.Equal(t, 1, resolver.calls)
		assert.Equal(t, []string{"e1"}, store.lastSeeds)
		assert.Equal(t, []string{"n1"}, model.IDs(c.Graph))
	})

	t.Run("Validation errors are returned", func(t *testing.T) {
		h := NewHybridRetriever(NewVectorRetriever(&mockVectorIndex{}, 3, 0, nil), nil, nil, nil)

		req := hybridRequest(model.StrategyVectorFirst)
		req.Embedding = []float32{1}

		_, err := h.Retrieve(ctx, req)
		assert.ErrorIs(t, err, model.ErrValidation)
	})
}

func TestHybridRetrieverGraphFirst(t *testing.T) {
	ctx := context.Background()

	t.Run("Expands pre-resolved seeds, then grounds via vector", func(t *testing.T) {
		index := &mockVectorIndex{results: []model.RetrievalResult{vectorHit("c1", 0.9)}}
		store := &mockGraphStore{nodes: graphNodes("n1", "n2")}
		resolver := &mockResolver{seeds: []string{"unused"}}
		h := NewHybridRetriever(NewVectorRetriever(index, 0, 0, nil), NewGraphRetriever(store, 0, nil), resolver, nil)

		req := hybridRequest(model.StrategyGraphFirst)
		req.Config.SeedIDs = []string{"s1", "s1", "s2"}

		c, err := h.Retrieve(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, []string{"s1", "s2"}, store.lastSeeds)
		assert.Equal(t, 0, resolver.calls, "Expected pre-resolved seeds to skip the resolver")
		assert.Equal(t, []string{"n1", "n2"}, model.IDs(c.Graph))
		assert.Equal(t, []string{"c1"}, model.IDs(c.Vector))
	})

	t.Run("Resolver failure degrades the graph source", func(t *testing.T) {
		index := &mockVectorIndex{results: []model.RetrievalResult{vectorHit("c1", 0.9)}}
		store := &mockGraphStore{}
		resolver := &mockResolver{err: assert.AnError}
		h := NewHybridRetriever(NewVectorRetriever(index, 0, 0, nil), NewGraphRetriever(store, 0, nil), resolver, nil)

		c, err := h.Retrieve(ctx, hybridRequest(model.StrategyGraphFirst))
		require.NoError(t, err)
		assert.Equal(t, 0, store.calls)
		require.Len(t, c.Degradations, 1)
		assert.Equal(t, model.SourceGraph, c.Degradations[0].Source)
		assert.Equal(t, []string{"c1"}, model.IDs(c.Vector))
	})
}

func TestHybridRetrieverInterleaved(t *testing.T) {
	ctx := context.Background()

	t.Run("Queries both sources and alternates their results", func(t *testing.T) {
		index := &mockVectorIndex{results: []model.RetrievalResult{vectorHit("v1", 0.9), vectorHit("v2", 0.8), vectorHit("v3", 0.7)}}
		store := &mockGraphStore{nodes: graphNodes("g1")}
		h := NewHybridRetriever(NewVectorRetriever(index, 0, 0, nil), NewGraphRetriever(store, 0, nil), nil, nil)

		req := hybridRequest(model.StrategyInterleaved)
		req.Config.SeedIDs = []string{"s1"}

		c, err := h.Retrieve(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 1, index.calls)
		assert.Equal(t, 1, store.calls)
		assert.Equal(t, []string{"v1", "g1", "v2", "v3"}, model.IDs(c.All()))
	})

	t.Run("One failing source keeps the other", func(t *testing.T) {
		index := &mockVectorIndex{results: []model.RetrievalResult{vectorHit("v1", 0.9)}}
		store := &mockGraphStore{err: assert.AnError}
		h := NewHybridRetriever(NewVectorRetriever(index, 0, 0, nil), NewGraphRetriever(store, 0, nil), nil, nil)

		req := hybridRequest(model.StrategyInterleaved)
		req.Config.SeedIDs = []string{"s1"}

		c, err := h.Retrieve(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, []string{"v1"}, model.IDs(c.Vector))
		require.Len(t, c.Degradations, 1)
		assert.Equal(t, model.SourceGraph, c.Degradations[0].Source)
	})
}

func TestHybridRetrieverRagType(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		ragType     model.RagType
		vectorCalls int
		graphCalls  int
	}{
		{name: "vector only", ragType: model.RagTypeVector, vectorCalls: 1, graphCalls: 0},
		{name: "graph only", ragType: model.RagTypeGraph, vectorCalls: 0, graphCalls: 1},
		{name: "hybrid", ragType: model.RagTypeHybrid, vectorCalls: 1, graphCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := &mockVectorIndex{results: []model.RetrievalResult{vectorHit("c1", 0.9)}}
			store := &mockGraphStore{nodes: graphNodes("n1")}
			h := NewHybridRetriever(NewVectorRetriever(index, 0, 0, nil), NewGraphRetriever(store, 0, nil), nil, nil)

			req := hybridRequest(model.StrategyVectorFirst)
			req.Config.RagType = tt.ragType
			req.Config.SeedIDs = []string{"s1"}

			_, err := h.Retrieve(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, tt.vectorCalls, index.calls)
			assert.Equal(t, tt.graphCalls, store.calls)
		})
	}
}

func TestHybridRetrieverCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := NewHybridRetriever(NewVectorRetriever(&mockVectorIndex{block: true}, 0, 0, nil), nil, nil, nil)

	_, err := h.Retrieve(ctx, hybridRequest(model.StrategyVectorFirst))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMergeSeeds(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, mergeSeeds([]string{"a", "", "b"}, []string{"b", "c", "a"}))
	assert.Nil(t, mergeSeeds())
}
