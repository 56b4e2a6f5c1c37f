package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/hybridrag/helper"
	"github.com/siherrmann/hybridrag/model"
)

// DefaultNERModel detects PER, ORG, LOC and MISC entities
const DefaultNERModel = "KnightsAnalytics/distilbert-NER"

// DefaultMentionExtractor creates a mention extractor using the distilbert-NER model
func DefaultMentionExtractor(modelDir string) (MentionFunc, func() error, error) {
	modelPath, err := helper.PrepareModel(modelDir, DefaultNERModel, "model.onnx")
	if err != nil {
		return nil, nil, err
	}

	// Initialize hugot session with Go backend
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "ner-pipeline",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}),
		},
	}
	nerPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, nil, fmt.Errorf("failed to create NER pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, nil, fmt.Errorf("failed to create NER pipeline: %w", err)
	}

	extract := func(ctx context.Context, text string) ([]Mention, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := nerPipeline.RunPipeline([]string{text})
		if err != nil {
			return nil, fmt.Errorf("failed to run NER: %w", err)
		}
		if len(result.Entities) == 0 {
			return nil, nil
		}

		var mentions []Mention
		for _, entity := range result.Entities[0] {
			mentions = append(mentions, Mention{
				Text:  strings.TrimSpace(entity.Word),
				Label: normalizeEntityType(entity.Entity),
				Score: entity.Score,
			})
		}
		return mentions, nil
	}

	return extract, session.Destroy, nil
}

// normalizeEntityType removes B- and I- prefixes from NER labels
func normalizeEntityType(label string) string {
	if strings.HasPrefix(label, "B-") || strings.HasPrefix(label, "I-") {
		return label[2:]
	}
	return label
}

// SimilaritySearcher finds the stored items nearest to a vector
type SimilaritySearcher interface {
	SimilaritySearch(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]model.RetrievalResult, error)
}

// EntityResolver turns the entities mentioned in a query into graph seed ids.
// Each mention is embedded and looked up in the index; the ids of the
// nearest items above MinScore become seeds.
type EntityResolver struct {
	Extract  MentionFunc
	Embedder Embedder
	Index    SimilaritySearcher
	// PerMention is the number of seeds per mention, default 1
	PerMention int
	// MinScore drops lookups below this similarity
	MinScore float64
	// MinConfidence drops mentions the extractor is unsure about
	MinConfidence float32
}

// Resolve returns the deduplicated seed ids for the query, in mention order
func (r *EntityResolver) Resolve(ctx context.Context, query string) ([]string, error) {
	if r.Extract == nil || r.Embedder == nil || r.Index == nil {
		return nil, fmt.Errorf("entity resolver is not fully configured")
	}

	mentions, err := r.Extract(ctx, query)
	if err != nil {
		return nil, helper.NewError("extract mentions", err)
	}

	var texts []string
	seen := make(map[string]bool)
	for _, m := range mentions {
		key := strings.ToLower(m.Text)
		if m.Text == "" || m.Score < r.MinConfidence || seen[key] {
			continue
		}
		seen[key] = true
		texts = append(texts, m.Text)
	}
	if len(texts) == 0 {
		return []string{}, nil
	}

	vectors, err := r.Embedder.Encode(ctx, texts)
	if err != nil {
		return nil, helper.NewError("embed mentions", err)
	}

	perMention := r.PerMention
	if perMention <= 0 {
		perMention = 1
	}

	seeds := []string{}
	resolved := make(map[string]bool)
	for _, vector := range vectors {
		results, err := r.Index.SimilaritySearch(ctx, vector, perMention, nil)
		if err != nil {
			return nil, helper.NewError("lookup mention", err)
		}
		for _, result := range results {
			if result.Score < r.MinScore || resolved[result.ID] {
				continue
			}
			resolved[result.ID] = true
			seeds = append(seeds, result.ID)
		}
	}

	return seeds, nil
}
