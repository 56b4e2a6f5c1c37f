package ranking

import (
	"context"
	"fmt"

	"github.com/siherrmann/hybridrag/core/pipeline"
	"github.com/siherrmann/hybridrag/model"
)

const (
	ScorerEmbedding = "embedding"
	ScorerLexical   = "lexical"
)

// Scorer is a secondary relevance signal. Score returns one value per result,
// in input order, higher is more relevant.
type Scorer interface {
	Score(ctx context.Context, query string, results []model.RetrievalResult) ([]float64, error)
}

// NewScorer returns the scorer for a rerank model name. An empty name selects
// the embedding scorer.
func NewScorer(name string, embedder pipeline.Embedder) (Scorer, error) {
	switch name {
	case "", ScorerEmbedding:
		if embedder == nil {
			return nil, fmt.Errorf("embedding scorer needs an embedder")
		}
		return &EmbeddingScorer{Embedder: embedder}, nil
	case ScorerLexical:
		return &LexicalScorer{}, nil
	default:
		return nil, model.NewValidationError("rerank_model", fmt.Sprintf("unknown value %q", name))
	}
}

// EmbeddingScorer scores results by the cosine similarity between the query
// and the snippet embeddings
type EmbeddingScorer struct {
	Embedder pipeline.Embedder
}

// Score embeds the query and all snippets in one batch
func (s *EmbeddingScorer) Score(ctx context.Context, query string, results []model.RetrievalResult) ([]float64, error) {
	if len(results) == 0 {
		return []float64{}, nil
	}

	texts := make([]string, 0, len(results)+1)
	texts = append(texts, query)
	for _, r := range results {
		texts = append(texts, r.Payload.Text)
	}

	embeddings, err := s.Embedder.Encode(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("error embedding snippets: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddings))
	}

	scores := make([]float64, len(results))
	for i := range results {
		scores[i] = pipeline.Cosine(embeddings[0], embeddings[i+1])
	}
	return scores, nil
}

// LexicalScorer scores results by the share of query words found in the snippet
type LexicalScorer struct{}

// Score returns values in [0,1]
func (s *LexicalScorer) Score(ctx context.Context, query string, results []model.RetrievalResult) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryWords := wordSet(pipeline.Words(query))
	scores := make([]float64, len(results))
	if len(queryWords) == 0 {
		return scores, nil
	}

	for i, r := range results {
		snippet := wordSet(pipeline.Words(r.Payload.Text))
		hits := 0
		for w := range queryWords {
			if snippet[w] {
				hits++
			}
		}
		scores[i] = float64(hits) / float64(len(queryWords))
	}
	return scores, nil
}

func wordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
