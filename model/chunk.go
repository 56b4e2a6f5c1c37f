package model

import (
	"time"

	"github.com/google/uuid"
)

// Chunk represents a document chunk stored in the vector index (node in the graph)
type Chunk struct {
	ID          string    `json:"id"`
	DocumentRID uuid.UUID `json:"document_rid"`
	Content     string    `json:"content"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	// Results
	Similarity float64 `json:"similarity,omitempty"`
}

// ToResult converts a chunk into a result with the given score and source
func (c *Chunk) ToResult(score float64, source Source) RetrievalResult {
	payload := Payload{
		Text:     c.Content,
		ChunkID:  c.ID,
		Metadata: c.Metadata.Clone(),
	}
	if c.DocumentRID != uuid.Nil {
		payload.DocumentRID = c.DocumentRID.String()
	}
	return RetrievalResult{
		ID:      c.ID,
		Score:   score,
		Source:  source,
		Payload: payload,
	}
}
