package pipeline

import (
	"context"
)

// Embedder turns text into vectors. Encode must return one vector per text,
// in input order, all of Dimension() length.
type Embedder interface {
	EncodeOne(ctx context.Context, text string) ([]float32, error)
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Mention is an entity mention found in a text
type Mention struct {
	Text  string
	Label string // Entity type without BIO prefix, e.g. PER, ORG, LOC
	Score float32
}

// MentionFunc extracts entity mentions from text
type MentionFunc func(ctx context.Context, text string) ([]Mention, error)
