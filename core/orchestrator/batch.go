package orchestrator

import (
	"context"

	"github.com/siherrmann/hybridrag/model"
	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one query of a batch
type BatchResult struct {
	Query  string
	Answer *model.Answer
	Err    error
}

// RunBatch runs independent queries concurrently, at most limit at a time
// (unbounded for limit <= 0). A failing query does not stop the others.
// Results are returned in query order.
func (o *Orchestrator) RunBatch(ctx context.Context, queries []string, cfg model.QueryConfig, limit int) []BatchResult {
	results := make([]BatchResult, len(queries))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, query := range queries {
		g.Go(func() error {
			answer, err := o.Run(ctx, query, cfg)
			results[i] = BatchResult{Query: query, Answer: answer, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
