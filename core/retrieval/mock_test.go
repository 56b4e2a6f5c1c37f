package retrieval

import (
	"context"
	"sync"

	"github.com/siherrmann/hybridrag/model"
)

// mockVectorIndex is a mock implementation of VectorIndex for testing
type mockVectorIndex struct {
	mu      sync.Mutex
	results []model.RetrievalResult
	err     error
	calls   int
	lastK   int
	block   bool
}

func (m *mockVectorIndex) SimilaritySearch(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]model.RetrievalResult, error) {
	m.mu.Lock()
	m.calls++
	m.lastK = topK
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	if len(m.results) > topK {
		return m.results[:topK], nil
	}
	return m.results, nil
}

// mockGraphStore is a mock implementation of GraphStore for testing
type mockGraphStore struct {
	mu        sync.Mutex
	nodes     []model.Node
	err       error
	calls     int
	lastSeeds []string
	lastLimit int
}

func (m *mockGraphStore) QueryNeighbors(ctx context.Context, nodeID string, hops int, limit int) ([]model.Node, error) {
	nodes, _, err := m.QuerySubgraph(ctx, []string{nodeID}, hops, limit)
	return nodes, err
}

func (m *mockGraphStore) QuerySubgraph(ctx context.Context, seedIDs []string, hops int, limit int) ([]model.Node, []model.Edge, error) {
	m.mu.Lock()
	m.calls++
	m.lastSeeds = append([]string(nil), seedIDs...)
	m.lastLimit = limit
	m.mu.Unlock()

	if m.err != nil {
		return nil, nil, m.err
	}
	var nodes []model.Node
	for _, n := range m.nodes {
		if n.Hops <= hops {
			nodes = append(nodes, n)
		}
	}
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}
	return nodes, nil, nil
}

// mockResolver is a mock implementation of EntityResolver for testing
type mockResolver struct {
	seeds []string
	err   error
	calls int
}

func (m *mockResolver) Resolve(ctx context.Context, query string) ([]string, error) {
	m.calls++
	return m.seeds, m.err
}

func vectorHit(id string, score float64) model.RetrievalResult {
	return model.RetrievalResult{ID: id, Score: score, Payload: model.Payload{Text: "text " + id}}
}
