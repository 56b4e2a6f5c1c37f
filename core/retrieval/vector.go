package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/siherrmann/hybridrag/helper"
	"github.com/siherrmann/hybridrag/model"
)

// VectorRetriever queries the vector index for the nearest chunks
type VectorRetriever struct {
	index     VectorIndex
	dimension int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewVectorRetriever creates a vector retriever. A dimension of 0 skips the
// dimension check, a timeout of 0 disables the per-call timeout.
func NewVectorRetriever(index VectorIndex, dimension int, timeout time.Duration, logger *slog.Logger) *VectorRetriever {
	return &VectorRetriever{
		index:     index,
		dimension: dimension,
		timeout:   timeout,
		logger:    helper.OrNop(logger),
	}
}

// Retrieve returns up to k results tagged vector, sorted descending by score.
// Fewer than k results is not an error.
func (r *VectorRetriever) Retrieve(ctx context.Context, vector []float32, k int, filters map[string]string) ([]model.RetrievalResult, error) {
	if k <= 0 {
		return nil, model.NewValidationError("k", fmt.Sprintf("must be positive, got %d", k))
	}
	if len(vector) == 0 {
		return nil, model.NewValidationError("vector", "must not be empty")
	}
	if r.dimension > 0 && len(vector) != r.dimension {
		return nil, model.NewValidationError("vector", fmt.Sprintf("has %d dimensions, expected %d", len(vector), r.dimension))
	}
	if r.index == nil {
		return nil, &model.RetrievalError{Source: model.SourceVector, Err: fmt.Errorf("no vector index configured")}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	found, err := r.index.SimilaritySearch(ctx, vector, k, filters)
	if err != nil {
		return nil, &model.RetrievalError{Source: model.SourceVector, Err: err}
	}

	results := make([]model.RetrievalResult, 0, len(found))
	for _, f := range found {
		f.Source = model.SourceVector
		results = append(results, f.WithScore(f.Score))
	}
	model.SortResults(results)
	if len(results) > k {
		results = results[:k]
	}

	r.logger.Debug("Vector retrieval finished", slog.Int("results", len(results)), slog.Duration("took", time.Since(start)))

	return results, nil
}
