package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/siherrmann/hybridrag/core/llm"
	"github.com/siherrmann/hybridrag/model"
)

// mockEmbedder is a mock implementation of pipeline.Embedder for testing
type mockEmbedder struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (m *mockEmbedder) EncodeOne(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return []float32{1, 0, 0}, nil
}

func (m *mockEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.EncodeOne(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (m *mockEmbedder) Dimension() int { return 3 }

// mockIndex is a mock implementation of retrieval.VectorIndex for testing
type mockIndex struct {
	results []model.RetrievalResult
	err     error
}

func (m *mockIndex) SimilaritySearch(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]model.RetrievalResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.results) > topK {
		return m.results[:topK], nil
	}
	return m.results, nil
}

// mockStore is a mock implementation of retrieval.GraphStore for testing
type mockStore struct {
	nodes []model.Node
	err   error
}

func (m *mockStore) QueryNeighbors(ctx context.Context, nodeID string, hops int, limit int) ([]model.Node, error) {
	nodes, _, err := m.QuerySubgraph(ctx, []string{nodeID}, hops, limit)
	return nodes, err
}

func (m *mockStore) QuerySubgraph(ctx context.Context, seedIDs []string, hops int, limit int) ([]model.Node, []model.Edge, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.nodes, nil, nil
}

// mockLLM is a mock implementation of llm.Client for testing
type mockLLM struct {
	mu       sync.Mutex
	text     string
	chunks   []string
	err      error
	requests []llm.Request
	// cancel is called after cancelAfter streamed chunks
	cancel      context.CancelFunc
	cancelAfter int
}

func (m *mockLLM) Name() string { return "mock" }

func (m *mockLLM) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func (m *mockLLM) StreamGenerate(ctx context.Context, req llm.Request) (llm.Stream, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &mockStream{SliceStream: llm.NewSliceStream(m.chunks, nil), cancel: m.cancel, after: m.cancelAfter}, nil
}

func (m *mockLLM) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// mockStream cancels the query after a number of chunks, if cancel is set
type mockStream struct {
	*llm.SliceStream
	cancel context.CancelFunc
	after  int
	seen   int
}

func (s *mockStream) Next() bool {
	if s.cancel != nil && s.seen == s.after {
		s.cancel()
		return false
	}
	s.seen++
	return s.SliceStream.Next()
}

// mockScorer always fails
type mockScorer struct{}

func (mockScorer) Score(ctx context.Context, query string, results []model.RetrievalResult) ([]float64, error) {
	return nil, fmt.Errorf("scorer offline")
}

func hit(id string, score float64) model.RetrievalResult {
	return model.RetrievalResult{ID: id, Score: score, Payload: model.Payload{Text: "Passage " + id + " about retrieval."}}
}

func node(id string) model.Node {
	return model.Node{ID: id, Content: "Node " + id + " about graphs.", Hops: 1, Weight: 1}
}
