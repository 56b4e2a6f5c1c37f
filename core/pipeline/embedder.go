package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/hybridrag/helper"
)

// DefaultEmbeddingModel produces 384-dimensional embeddings
const DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"

// HugotEmbedder embeds text with a sentence transformer model run by hugot
type HugotEmbedder struct {
	session   *hugot.Session
	run       func(texts []string) ([][]float32, error)
	dimension int
}

// DefaultEmbedder creates an embedder using the all-MiniLM-L6-v2 model
func DefaultEmbedder() (*HugotEmbedder, error) {
	return NewHugotEmbedder(helper.DefaultModelDir, DefaultEmbeddingModel)
}

// NewHugotEmbedder creates an embedder for a feature extraction model,
// downloading it to modelDir if needed
func NewHugotEmbedder(modelDir string, modelName string) (*HugotEmbedder, error) {
	modelPath, err := helper.PrepareModel(modelDir, modelName, "")
	if err != nil {
		return nil, err
	}

	// Initialize hugot session with Go backend
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	embedder := &HugotEmbedder{
		session: session,
		run: func(texts []string) ([][]float32, error) {
			result, err := sentencePipeline.RunPipeline(texts)
			if err != nil {
				return nil, err
			}
			return result.Embeddings, nil
		},
	}

	// Encode a sample text to learn the output dimension
	sample, err := embedder.EncodeOne(context.Background(), "dimension check")
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}
	embedder.dimension = len(sample)

	return embedder, nil
}

// EncodeOne embeds a single text
func (e *HugotEmbedder) EncodeOne(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.Encode(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Encode embeds texts in one pipeline run
func (e *HugotEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	embeddings, err := e.run(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddings))
	}

	return embeddings, nil
}

// Dimension returns the length of the produced vectors
func (e *HugotEmbedder) Dimension() int {
	return e.dimension
}

// Close releases the hugot session
func (e *HugotEmbedder) Close() error {
	if e.session == nil {
		return nil
	}
	return e.session.Destroy()
}

// HashEmbedder is a deterministic bag-of-words embedder using feature hashing.
// Texts sharing words get a positive cosine similarity; it needs no model files.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a hashing embedder with the given dimension
func NewHashEmbedder(dimension int) (*HashEmbedder, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	return &HashEmbedder{dimension: dimension}, nil
}

// EncodeOne embeds a single text
func (e *HashEmbedder) EncodeOne(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vector := make([]float32, e.dimension)
	for _, word := range Words(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(word))
		sum := h.Sum64()
		index := int(sum % uint64(e.dimension))
		if sum&(1<<63) != 0 {
			vector[index]--
		} else {
			vector[index]++
		}
	}

	normalize(vector)
	return vector, nil
}

// Encode embeds texts one by one
func (e *HashEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.EncodeOne(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = vector
	}
	return embeddings, nil
}

// Dimension returns the length of the produced vectors
func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

// Words splits text into lower-cased words of letters and digits
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Cosine returns the cosine similarity of a and b, 0 if either is zero or
// their lengths differ
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func normalize(v []float32) {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
