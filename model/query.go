package model

import (
	"time"

	"github.com/google/uuid"
)

// Stage is a state of the query orchestrator
type Stage string

const (
	StageEmbedding       Stage = "EMBEDDING"
	StageRetrieving      Stage = "RETRIEVING"
	StageFusing          Stage = "FUSING"
	StageRanking         Stage = "RANKING"
	StageBuildingContext Stage = "BUILDING_CONTEXT"
	StageGenerating      Stage = "GENERATING"
	StageFormatting      Stage = "FORMATTING"
	StageDone            Stage = "DONE"
	StageFailed          Stage = "FAILED"
)

// Degradation records a retrieval source that failed during a query
type Degradation struct {
	Source Source `json:"source"`
	Reason string `json:"reason"`
}

// QueryContext holds the transient per-request state of a query.
// It is created at the start of a query and discarded at the end.
type QueryContext struct {
	ID        uuid.UUID
	Query     string
	Embedding []float32
	Config    QueryConfig

	VectorResults []RetrievalResult
	GraphResults  []RetrievalResult
	FusedResults  []RetrievalResult
	RankedResults []RetrievalResult

	Degradations []Degradation
	NoContext    bool

	Stage   Stage
	Timings map[Stage]time.Duration
}

// NewQueryContext creates a fresh query context
func NewQueryContext(query string, config QueryConfig) *QueryContext {
	return &QueryContext{
		ID:      uuid.New(),
		Query:   query,
		Config:  config,
		Timings: make(map[Stage]time.Duration),
	}
}

// Degraded reports whether any retrieval source failed during the query
func (q *QueryContext) Degraded() bool {
	return len(q.Degradations) > 0
}
