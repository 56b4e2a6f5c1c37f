package retrieval

import (
	"context"

	"github.com/siherrmann/hybridrag/model"
)

// VectorIndex is a similarity index over embedded chunks
type VectorIndex interface {
	SimilaritySearch(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]model.RetrievalResult, error)
}

// GraphStore answers neighborhood queries over the knowledge graph
type GraphStore interface {
	QueryNeighbors(ctx context.Context, nodeID string, hops int, limit int) ([]model.Node, error)
	QuerySubgraph(ctx context.Context, seedIDs []string, hops int, limit int) ([]model.Node, []model.Edge, error)
}

// EntityResolver resolves the entities mentioned in a query to graph seed ids
type EntityResolver interface {
	Resolve(ctx context.Context, query string) ([]string, error)
}
