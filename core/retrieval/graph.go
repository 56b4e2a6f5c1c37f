package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/siherrmann/hybridrag/helper"
	"github.com/siherrmann/hybridrag/model"
)

// GraphRetriever expands seed nodes into their graph neighborhood
type GraphRetriever struct {
	store   GraphStore
	timeout time.Duration
	logger  *slog.Logger
	// IncludeSeeds keeps every seed in the results, at hop 0 unless another
	// seed reaches it. Without it only seeds reachable from a different seed
	// within hops are returned, scored at that distance.
	IncludeSeeds bool
}

// NewGraphRetriever creates a graph retriever. A timeout of 0 disables the per-call timeout.
func NewGraphRetriever(store GraphStore, timeout time.Duration, logger *slog.Logger) *GraphRetriever {
	return &GraphRetriever{
		store:   store,
		timeout: timeout,
		logger:  helper.OrNop(logger),
	}
}

// RetrieveBySeed returns up to limit nodes within hops of any seed, tagged
// graph and scored by proximity. Empty seeds return an empty list without
// querying the store.
func (r *GraphRetriever) RetrieveBySeed(ctx context.Context, seedIDs []string, hops int, limit int) ([]model.RetrievalResult, error) {
	if len(seedIDs) == 0 {
		return []model.RetrievalResult{}, nil
	}
	if hops <= 0 {
		return nil, model.NewValidationError("hops", fmt.Sprintf("must be positive, got %d", hops))
	}
	if limit <= 0 {
		return nil, model.NewValidationError("limit", fmt.Sprintf("must be positive, got %d", limit))
	}
	if r.store == nil {
		return nil, &model.RetrievalError{Source: model.SourceGraph, Err: fmt.Errorf("no graph store configured")}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	// The store counts seeds against the limit
	fetch := limit
	if !r.IncludeSeeds {
		fetch += len(seedIDs)
	}

	start := time.Now()
	nodes, edges, err := r.store.QuerySubgraph(ctx, seedIDs, hops, fetch)
	if err != nil {
		return nil, &model.RetrievalError{Source: model.SourceGraph, Err: err}
	}
	reached := reachedSeeds(seedIDs, edges, hops)

	nearest := make(map[string]model.Node, len(nodes))
	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.Hops == 0 {
			if via, ok := reached[n.ID]; ok {
				n.Hops = via.hops
				n.Weight = via.weight
				n.Path = via.path
			} else if !r.IncludeSeeds {
				continue
			}
		}
		if found, ok := nearest[n.ID]; ok {
			if n.Hops < found.Hops || (n.Hops == found.Hops && n.Weight > found.Weight) {
				nearest[n.ID] = n
			}
			continue
		}
		nearest[n.ID] = n
		order = append(order, n.ID)
	}

	results := make([]model.RetrievalResult, 0, len(order))
	for _, id := range order {
		n := nearest[id]
		results = append(results, n.ToResult())
	}
	model.SortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}

	r.logger.Debug("Graph retrieval finished", slog.Int("seeds", len(seedIDs)), slog.Int("results", len(results)), slog.Duration("took", time.Since(start)))

	return results, nil
}

type seedReach struct {
	hops   int
	weight float64
	path   []string
}

// reachedSeeds finds, for every seed, the shortest walk of at most hops
// edges starting at a different seed. Walks only use the given edges, so a
// seed is found if the path runs through the returned subgraph.
func reachedSeeds(seedIDs []string, edges []model.Edge, hops int) map[string]seedReach {
	reached := make(map[string]seedReach)
	if len(seedIDs) < 2 || len(edges) == 0 {
		return reached
	}

	adjacency := make(map[string][]model.Edge)
	for _, e := range edges {
		adjacency[e.SourceID] = append(adjacency[e.SourceID], e)
		if e.Bidirectional && e.TargetID != e.SourceID {
			adjacency[e.TargetID] = append(adjacency[e.TargetID], e)
		}
	}

	seeds := make(map[string]bool, len(seedIDs))
	for _, id := range seedIDs {
		seeds[id] = true
	}

	for seed := range seeds {
		if via, ok := walkToSeed(seed, seeds, adjacency, hops); ok {
			reached[seed] = via
		}
	}

	return reached
}

// walkToSeed runs a breadth-first search from all seeds except target and
// returns the first layer that reaches target, keeping the heaviest path.
func walkToSeed(target string, seeds map[string]bool, adjacency map[string][]model.Edge, hops int) (seedReach, bool) {
	frontier := make(map[string]seedReach)
	visited := make(map[string]bool)
	for id := range seeds {
		if id == target {
			continue
		}
		frontier[id] = seedReach{weight: 1, path: []string{id}}
		visited[id] = true
	}

	for depth := 1; depth <= hops && len(frontier) > 0; depth++ {
		next := make(map[string]seedReach)
		for id, from := range frontier {
			for _, e := range adjacency[id] {
				other, ok := e.Other(id)
				if !ok || visited[other] {
					continue
				}
				weight := from.weight * edgeWeight(e.Weight)
				if found, ok := next[other]; ok && found.weight >= weight {
					continue
				}
				path := make([]string, len(from.path), len(from.path)+1)
				copy(path, from.path)
				next[other] = seedReach{hops: depth, weight: weight, path: append(path, other)}
			}
		}
		if via, ok := next[target]; ok {
			return via, true
		}
		for id := range next {
			visited[id] = true
		}
		frontier = next
	}

	return seedReach{}, false
}

func edgeWeight(w float64) float64 {
	if w <= 0 || w > 1 {
		return 1
	}
	return w
}
