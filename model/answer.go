package model

import (
	"time"

	"github.com/google/uuid"
)

// Provenance records which source and item produced a piece of context
type Provenance struct {
	Citation int     `json:"citation"` // 1-based citation number in the prompt
	ID       string  `json:"id"`
	Score    float64 `json:"score"`
	Source   Source  `json:"source"`
}

// Answer is the final result handed to the output consumer
type Answer struct {
	QueryID    uuid.UUID    `json:"query_id"`
	Query      string       `json:"query"`
	Answer     string       `json:"answer"`
	Provenance []Provenance `json:"provenance"`
	Raw        string       `json:"raw"`

	// NoContext is set when retrieval found nothing, so consumers can show
	// "no relevant documents" instead of an unsupported answer.
	NoContext bool `json:"no_context"`
	// SourceDegraded is set when at least one retrieval source failed.
	SourceDegraded bool          `json:"source_degraded"`
	Degradations   []Degradation `json:"degradations,omitempty"`
	// Partial is set when generation was cancelled mid-stream.
	Partial bool `json:"partial"`
	// Generated is false when generation was skipped for lack of context.
	Generated bool `json:"generated"`

	Stage   Stage                   `json:"stage"`
	Timings map[Stage]time.Duration `json:"timings,omitempty"`
}

// Degraded reports whether the answer is anything but a fully successful response
func (a *Answer) Degraded() bool {
	return a.NoContext || a.SourceDegraded || a.Partial
}
