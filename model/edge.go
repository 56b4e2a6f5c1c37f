package model

import (
	"time"

	"github.com/google/uuid"
)

// EdgeType represents the type of relationship between nodes
type EdgeType string

const (
	EdgeTypeSemantic      EdgeType = "semantic"
	EdgeTypeHierarchical  EdgeType = "hierarchical"
	EdgeTypeReference     EdgeType = "reference"
	EdgeTypeEntityMention EdgeType = "entity_mention"
	EdgeTypeTemporal      EdgeType = "temporal"
	EdgeTypeCausal        EdgeType = "causal"
	EdgeTypeCustom        EdgeType = "custom"
)

// Edge represents a relationship between two graph nodes
type Edge struct {
	ID            uuid.UUID `json:"id"`
	SourceID      string    `json:"source_id"`
	TargetID      string    `json:"target_id"`
	EdgeType      EdgeType  `json:"edge_type"`
	Weight        float64   `json:"weight"`
	Bidirectional bool      `json:"bidirectional"`
	Metadata      Metadata  `json:"metadata,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Other returns the node on the far side of the edge when walking from nodeID.
// The second return value is false if the edge cannot be walked from nodeID.
func (e *Edge) Other(nodeID string) (string, bool) {
	if e.SourceID == nodeID && e.TargetID != "" {
		return e.TargetID, true
	}
	if e.Bidirectional && e.TargetID == nodeID && e.SourceID != "" {
		return e.SourceID, true
	}
	return "", false
}

// Node is a graph node as returned by a graph store query
type Node struct {
	ID          string    `json:"id"`
	DocumentRID uuid.UUID `json:"document_rid"`
	Content     string    `json:"content"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	// Traversal
	Hops   int      `json:"hops"`             // Distance from the nearest seed
	Weight float64  `json:"weight"`           // Product of edge weights along the path, 1 for seeds
	Path   []string `json:"path,omitempty"`   // Node ids from the seed to this node
}

// ProximityScore scores a node by hop distance: weight/(1+hops).
// It is monotonically non-increasing in hops for weights in (0,1].
func (n *Node) ProximityScore() float64 {
	w := n.Weight
	if w <= 0 || w > 1 {
		w = 1
	}
	return w / float64(1+n.Hops)
}

// ToResult converts a node into a graph-sourced retrieval result
func (n *Node) ToResult() RetrievalResult {
	payload := Payload{
		Text:     n.Content,
		ChunkID:  n.ID,
		Hops:     n.Hops,
		Metadata: n.Metadata.Clone(),
	}
	if n.DocumentRID != uuid.Nil {
		payload.DocumentRID = n.DocumentRID.String()
	}
	return RetrievalResult{
		ID:      n.ID,
		Score:   n.ProximityScore(),
		Source:  SourceGraph,
		Payload: payload,
	}
}
