package model

import (
	"sort"
)

// Source tags where a retrieval result came from
type Source string

const (
	SourceVector Source = "vector"
	SourceGraph  Source = "graph"
	SourceDoc    Source = "doc"
)

// Priority returns the tie-break rank of a source, lower wins.
func (s Source) Priority() int {
	switch s {
	case SourceVector:
		return 0
	case SourceGraph:
		return 1
	case SourceDoc:
		return 2
	default:
		return 3
	}
}

// Payload carries the text snippet and provenance metadata of a result.
// It is never used for ranking or fusion decisions.
type Payload struct {
	Text        string   `json:"text"`
	DocumentRID string   `json:"document_rid,omitempty"`
	ChunkID     string   `json:"chunk_id,omitempty"`
	Hops        int      `json:"hops,omitempty"` // Distance from the nearest seed (graph results only)
	Metadata    Metadata `json:"metadata,omitempty"`
}

// Clone returns a copy of the payload that does not share its metadata map
func (p Payload) Clone() Payload {
	p.Metadata = p.Metadata.Clone()
	return p
}

// RetrievalResult is the unit exchanged between every retrieval stage
type RetrievalResult struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Source  Source  `json:"source"`
	Payload Payload `json:"payload"`
}

// WithScore returns a re-scored copy of the result. The receiver is left untouched.
func (r RetrievalResult) WithScore(score float64) RetrievalResult {
	r.Score = score
	r.Payload = r.Payload.Clone()
	return r
}

// Ranked reports whether a should be ordered before b: higher score first,
// then source priority (vector, graph, doc), then id in lexical order.
func Ranked(a, b RetrievalResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Source.Priority() != b.Source.Priority() {
		return a.Source.Priority() < b.Source.Priority()
	}
	return a.ID < b.ID
}

// SortResults sorts results in place into deterministic ranked order
func SortResults(results []RetrievalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return Ranked(results[i], results[j])
	})
}

// IDs returns the ids of the results in order
func IDs(results []RetrievalResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}
