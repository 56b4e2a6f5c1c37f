package graph

import (
	"context"
	"sort"

	"github.com/siherrmann/hybridrag/model"
)

// GraphDB defines the lookups a traversal needs
type GraphDB interface {
	GetNode(ctx context.Context, id string) (*model.Node, error)
	GetEdgesFrom(ctx context.Context, nodeID string, edgeTypes []model.EdgeType) ([]model.Edge, error)
}

// BFS performs a breadth-first search from all seeds at once, up to maxHops.
// Each reachable node is returned once at its smallest hop distance; among
// paths of equal length the one with the highest weight product wins.
// Seeds are returned with Hops 0, unknown seeds are skipped.
// The result is ordered by hops, then weight descending, then id.
func BFS(ctx context.Context, db GraphDB, seedIDs []string, maxHops int, edgeTypes []model.EdgeType) ([]model.Node, error) {
	visited := make(map[string]bool)
	var results []model.Node
	var frontier []model.Node

	for _, id := range seedIDs {
		if visited[id] {
			continue
		}
		node, err := db.GetNode(ctx, id)
		if err != nil {
			continue // Skip if node not found
		}
		visited[id] = true

		seed := *node
		seed.Hops = 0
		seed.Weight = 1
		seed.Path = []string{id}
		frontier = append(frontier, seed)
	}

	for hops := 0; len(frontier) > 0; hops++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sortNodes(frontier)
		results = append(results, frontier...)

		// Stop if we've reached max hops
		if hops >= maxHops {
			break
		}

		next := make(map[string]model.Node)
		for _, current := range frontier {
			edges, err := db.GetEdgesFrom(ctx, current.ID, edgeTypes)
			if err != nil {
				return nil, err
			}

			for _, edge := range edges {
				targetID, ok := edge.Other(current.ID)
				if !ok || visited[targetID] {
					continue
				}

				weight := current.Weight * clampWeight(edge.Weight)
				if found, ok := next[targetID]; ok && found.Weight >= weight {
					continue
				}

				target, err := db.GetNode(ctx, targetID)
				if err != nil {
					continue // Skip if node not found
				}

				path := make([]string, len(current.Path), len(current.Path)+1)
				copy(path, current.Path)

				reached := *target
				reached.Hops = hops + 1
				reached.Weight = weight
				reached.Path = append(path, targetID)
				next[targetID] = reached
			}
		}

		frontier = frontier[:0:0]
		for id, node := range next {
			visited[id] = true
			frontier = append(frontier, node)
		}
	}

	return results, nil
}

// GetNeighbors retrieves the nodes within maxHops of nodeID, without nodeID itself
func GetNeighbors(ctx context.Context, db GraphDB, nodeID string, maxHops int, edgeTypes []model.EdgeType) ([]model.Node, error) {
	results, err := BFS(ctx, db, []string{nodeID}, maxHops, edgeTypes)
	if err != nil {
		return nil, err
	}

	neighbors := make([]model.Node, 0, len(results))
	for _, n := range results {
		if n.Hops > 0 {
			neighbors = append(neighbors, n)
		}
	}

	return neighbors, nil
}

func sortNodes(nodes []model.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Hops != nodes[j].Hops {
			return nodes[i].Hops < nodes[j].Hops
		}
		if nodes[i].Weight != nodes[j].Weight {
			return nodes[i].Weight > nodes[j].Weight
		}
		return nodes[i].ID < nodes[j].ID
	})
}

func clampWeight(w float64) float64 {
	if w <= 0 || w > 1 {
		return 1
	}
	return w
}
