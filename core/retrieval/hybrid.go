package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/siherrmann/hybridrag/helper"
	"github.com/siherrmann/hybridrag/model"
	"golang.org/x/sync/errgroup"
)

// Request is the input of a hybrid retrieval
type Request struct {
	Query     string
	Embedding []float32
	Config    model.QueryConfig
}

// Candidates are the per-source results of a hybrid retrieval,
// neither deduplicated nor normalized
type Candidates struct {
	Strategy     model.Strategy
	Vector       []model.RetrievalResult
	Graph        []model.RetrievalResult
	Degradations []model.Degradation
	failures     []error
}

// All returns the concatenation of both source lists. For the interleaved
// strategy the lists alternate by rank, otherwise vector results come first.
func (c *Candidates) All() []model.RetrievalResult {
	all := make([]model.RetrievalResult, 0, len(c.Vector)+len(c.Graph))
	if c.Strategy != model.StrategyInterleaved {
		all = append(all, c.Vector...)
		return append(all, c.Graph...)
	}
	for i := 0; i < len(c.Vector) || i < len(c.Graph); i++ {
		if i < len(c.Vector) {
			all = append(all, c.Vector[i])
		}
		if i < len(c.Graph) {
			all = append(all, c.Graph[i])
		}
	}
	return all
}

// Empty reports whether no source produced any result
func (c *Candidates) Empty() bool {
	return len(c.Vector) == 0 && len(c.Graph) == 0
}

// Failures returns the errors of the sources that failed
func (c *Candidates) Failures() []error {
	return c.failures
}

func (c *Candidates) fail(source model.Source, err error) {
	c.failures = append(c.failures, err)
	c.Degradations = append(c.Degradations, model.Degradation{Source: source, Reason: err.Error()})
}

// HybridRetriever dispatches a query to the vector and graph retrievers
// according to the strategy of the query
type HybridRetriever struct {
	vector   *VectorRetriever
	graph    *GraphRetriever
	resolver EntityResolver
	logger   *slog.Logger
}

// NewHybridRetriever creates a hybrid retriever. A nil retriever disables its
// source, a nil resolver means graph seeds come only from the query
// configuration or the vector results.
func NewHybridRetriever(vector *VectorRetriever, graph *GraphRetriever, resolver EntityResolver, logger *slog.Logger) *HybridRetriever {
	return &HybridRetriever{
		vector:   vector,
		graph:    graph,
		resolver: resolver,
		logger:   helper.OrNop(logger),
	}
}

// Retrieve runs the strategy of the request. A failing source is recorded as
// a degradation on the candidates. If sources failed and none produced a
// result, the candidates are returned together with a *model.NoContextError.
func (h *HybridRetriever) Retrieve(ctx context.Context, req Request) (*Candidates, error) {
	cfg := req.Config
	c := &Candidates{Strategy: cfg.Strategy}

	var err error
	switch cfg.Strategy {
	case model.StrategyGraphFirst:
		err = h.graphFirst(ctx, req, c)
	case model.StrategyInterleaved:
		err = h.interleaved(ctx, req, c)
	case model.StrategyVectorFirst, "":
		c.Strategy = model.StrategyVectorFirst
		err = h.vectorFirst(ctx, req, c)
	default:
		err = model.NewValidationError("strategy", fmt.Sprintf("unknown value %q", cfg.Strategy))
	}
	if err != nil {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	for _, d := range c.Degradations {
		h.logger.Warn("Retrieval source degraded", slog.String("source", string(d.Source)), slog.String("reason", d.Reason))
	}

	if c.Empty() && len(c.failures) > 0 {
		return c, &model.NoContextError{Causes: c.failures}
	}

	return c, nil
}

func (h *HybridRetriever) useVector(cfg model.QueryConfig) bool {
	return h.vector != nil && cfg.RagType.UsesVector()
}

func (h *HybridRetriever) useGraph(cfg model.QueryConfig) bool {
	return h.graph != nil && cfg.RagType.UsesGraph()
}

// vectorFirst anchors the graph expansion in the vector hits
func (h *HybridRetriever) vectorFirst(ctx context.Context, req Request, c *Candidates) error {
	cfg := req.Config
	k := cfg.CandidateK()

	if h.useVector(cfg) {
		results, err := h.vector.Retrieve(ctx, req.Embedding, k, cfg.Filters)
		if err := c.record(model.SourceVector, err); err != nil {
			return err
		}
		c.Vector = results
	}

	if h.useGraph(cfg) {
		seeds := mergeSeeds(model.IDs(c.Vector), cfg.SeedIDs)
		if len(seeds) == 0 {
			resolved, err := h.resolve(ctx, req)
			if err != nil {
				c.fail(model.SourceGraph, err)
				return nil
			}
			seeds = resolved
		}

		results, err := h.graph.RetrieveBySeed(ctx, seeds, cfg.Hops, k)
		if err := c.record(model.SourceGraph, err); err != nil {
			return err
		}
		c.Graph = results
	}

	return nil
}

// graphFirst expands from resolved entity seeds, then grounds via vector search
func (h *HybridRetriever) graphFirst(ctx context.Context, req Request, c *Candidates) error {
	cfg := req.Config
	k := cfg.CandidateK()

	if h.useGraph(cfg) {
		seeds, err := h.seeds(ctx, req)
		if err != nil {
			c.fail(model.SourceGraph, err)
		} else {
			results, err := h.graph.RetrieveBySeed(ctx, seeds, cfg.Hops, k)
			if err := c.record(model.SourceGraph, err); err != nil {
				return err
			}
			c.Graph = results
		}
	}

	if h.useVector(cfg) {
		results, err := h.vector.Retrieve(ctx, req.Embedding, k, cfg.Filters)
		if err := c.record(model.SourceVector, err); err != nil {
			return err
		}
		c.Vector = results
	}

	return nil
}

// interleaved queries both sources independently and in parallel
func (h *HybridRetriever) interleaved(ctx context.Context, req Request, c *Candidates) error {
	cfg := req.Config
	k := cfg.CandidateK()

	var vectorResults, graphResults []model.RetrievalResult
	var vectorErr, graphErr error

	var g errgroup.Group
	if h.useVector(cfg) {
		g.Go(func() error {
			vectorResults, vectorErr = h.vector.Retrieve(ctx, req.Embedding, k, cfg.Filters)
			return nil
		})
	}
	if h.useGraph(cfg) {
		g.Go(func() error {
			seeds, err := h.seeds(ctx, req)
			if err != nil {
				graphErr = err
				return nil
			}
			graphResults, graphErr = h.graph.RetrieveBySeed(ctx, seeds, cfg.Hops, k)
			return nil
		})
	}
	_ = g.Wait()

	if err := c.record(model.SourceVector, vectorErr); err != nil {
		return err
	}
	if err := c.record(model.SourceGraph, graphErr); err != nil {
		return err
	}
	c.Vector = vectorResults
	c.Graph = graphResults

	return nil
}

// seeds returns the pre-resolved seeds of the query or resolves them
func (h *HybridRetriever) seeds(ctx context.Context, req Request) ([]string, error) {
	if len(req.Config.SeedIDs) > 0 {
		return mergeSeeds(req.Config.SeedIDs), nil
	}
	return h.resolve(ctx, req)
}

func (h *HybridRetriever) resolve(ctx context.Context, req Request) ([]string, error) {
	if h.resolver == nil {
		return nil, nil
	}
	seeds, err := h.resolver.Resolve(ctx, req.Query)
	if err != nil {
		return nil, &model.RetrievalError{Source: model.SourceGraph, Err: helper.NewError("resolve entities", err)}
	}
	return seeds, nil
}

// record notes a source failure. Validation errors are returned as they are
// not caused by the source being unavailable.
func (c *Candidates) record(source model.Source, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrValidation) {
		return err
	}
	if !errors.Is(err, model.ErrRetrievalUnavailable) {
		err = &model.RetrievalError{Source: source, Err: err}
	}
	c.fail(source, err)
	return nil
}

// mergeSeeds concatenates seed lists, dropping empty and repeated ids
func mergeSeeds(lists ...[]string) []string {
	var seeds []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, id := range list {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			seeds = append(seeds, id)
		}
	}
	return seeds
}
