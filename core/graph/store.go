package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/siherrmann/hybridrag/model"
)

// Store is an in-memory graph store. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]model.Node
	edges map[string][]model.Edge // by node id, both endpoints
	// EdgeTypes restricts traversal to the given edge types, all types when empty
	EdgeTypes []model.EdgeType
}

// NewStore creates an empty in-memory graph store
func NewStore() *Store {
	return &Store{
		nodes: make(map[string]model.Node),
		edges: make(map[string][]model.Edge),
	}
}

// AddNode adds or replaces a node
func (s *Store) AddNode(node model.Node) error {
	if node.ID == "" {
		return fmt.Errorf("node id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node.Metadata = node.Metadata.Clone()
	node.Hops = 0
	node.Weight = 0
	node.Path = nil
	s.nodes[node.ID] = node

	return nil
}

// AddChunk adds a chunk as a node
func (s *Store) AddChunk(chunk *model.Chunk) error {
	return s.AddNode(model.Node{
		ID:          chunk.ID,
		DocumentRID: chunk.DocumentRID,
		Content:     chunk.Content,
		Metadata:    chunk.Metadata,
	})
}

// AddEdge adds an edge between two existing nodes
func (s *Store) AddEdge(edge model.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[edge.SourceID]; !ok {
		return fmt.Errorf("source node %s not found", edge.SourceID)
	}
	if _, ok := s.nodes[edge.TargetID]; !ok {
		return fmt.Errorf("target node %s not found", edge.TargetID)
	}
	if edge.EdgeType == "" {
		edge.EdgeType = model.EdgeTypeSemantic
	}
	if edge.Weight == 0 {
		edge.Weight = 1
	}

	s.edges[edge.SourceID] = append(s.edges[edge.SourceID], edge)
	if edge.TargetID != edge.SourceID {
		s.edges[edge.TargetID] = append(s.edges[edge.TargetID], edge)
	}

	return nil
}

// GetNode returns a copy of the node with the given id
func (s *Store) GetNode(ctx context.Context, id string) (*model.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %s not found", id)
	}
	node.Metadata = node.Metadata.Clone()

	return &node, nil
}

// GetEdgesFrom returns the edges that can be walked from nodeID
func (s *Store) GetEdgesFrom(ctx context.Context, nodeID string, edgeTypes []model.EdgeType) ([]model.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var edges []model.Edge
	for _, edge := range s.edges[nodeID] {
		if _, ok := edge.Other(nodeID); !ok {
			continue
		}
		if !matchesType(edge.EdgeType, edgeTypes) {
			continue
		}
		edges = append(edges, edge)
	}

	return edges, nil
}

// QueryNeighbors returns the nodes within hops of nodeID, nearest first
func (s *Store) QueryNeighbors(ctx context.Context, nodeID string, hops int, limit int) ([]model.Node, error) {
	neighbors, err := GetNeighbors(ctx, s, nodeID, hops, s.EdgeTypes)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}

	return neighbors, nil
}

// QuerySubgraph returns the nodes within hops of any seed, each once at its
// smallest hop distance, plus the edges among the returned nodes.
// Seeds are returned with Hops 0.
func (s *Store) QuerySubgraph(ctx context.Context, seedIDs []string, hops int, limit int) ([]model.Node, []model.Edge, error) {
	if hops < 0 {
		return nil, nil, fmt.Errorf("hops must not be negative, got %d", hops)
	}

	nodes, err := BFS(ctx, s, seedIDs, hops, s.EdgeTypes)
	if err != nil {
		return nil, nil, err
	}
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}

	included := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		included[n.ID] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := []model.Edge{}
	for _, n := range nodes {
		for _, edge := range s.edges[n.ID] {
			// Each edge is listed under its source once
			if edge.SourceID != n.ID || !included[edge.TargetID] {
				continue
			}
			edges = append(edges, edge)
		}
	}

	return nodes, edges, nil
}

func matchesType(edgeType model.EdgeType, edgeTypes []model.EdgeType) bool {
	if len(edgeTypes) == 0 {
		return true
	}
	for _, t := range edgeTypes {
		if t == edgeType {
			return true
		}
	}
	return false
}
