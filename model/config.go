package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/siherrmann/hybridrag/helper"
)

// RagType selects which retrieval sources are enabled
type RagType string

const (
	RagTypeVector RagType = "vector"
	RagTypeGraph  RagType = "graph"
	RagTypeHybrid RagType = "hybrid"
)

// UsesVector reports whether the vector source is enabled
func (t RagType) UsesVector() bool { return t != RagTypeGraph }

// UsesGraph reports whether the graph source is enabled
func (t RagType) UsesGraph() bool { return t != RagTypeVector }

// Strategy selects how the hybrid retriever combines its sources
type Strategy string

const (
	// StrategyVectorFirst seeds graph expansion with the ids of the vector hits
	StrategyVectorFirst Strategy = "vector_first"
	// StrategyGraphFirst expands from pre-resolved entity seeds, then grounds via vector search
	StrategyGraphFirst Strategy = "graph_first"
	// StrategyInterleaved queries both sources independently and in parallel
	StrategyInterleaved Strategy = "interleaved"
)

// QueryConfig represents configuration for a single query
type QueryConfig struct {
	// Retrieval parameters
	TopK                int               `json:"top_k"`
	Hops                int               `json:"hops"`
	RagType             RagType           `json:"rag_type"`
	Strategy            Strategy          `json:"strategy"`
	SeedIDs             []string          `json:"seed_ids,omitempty"` // Pre-resolved graph seeds
	Filters             map[string]string `json:"filters,omitempty"`  // Metadata predicate, e.g. workspace
	CandidateMultiplier int               `json:"candidate_multiplier"`

	// Context and generation parameters
	MaxContextTokens             int      `json:"max_context_tokens"`
	MaxAnswerTokens              int      `json:"max_answer_tokens"`
	Stop                         []string `json:"stop,omitempty"`
	SkipGenerationWithoutContext bool     `json:"skip_generation_without_context"`
	Stream                       bool     `json:"stream"`
}

// DefaultQueryConfig returns a sensible default configuration
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		TopK:                8,
		Hops:                1,
		RagType:             RagTypeHybrid,
		Strategy:            StrategyVectorFirst,
		CandidateMultiplier: 2,
		MaxContextTokens:    3000,
		MaxAnswerTokens:     512,
	}
}

// CandidateK returns how many candidates each source is asked for.
// It is at least TopK so fusion and ranking have enough to choose from.
func (c *QueryConfig) CandidateK() int {
	if c.CandidateMultiplier <= 1 {
		return c.TopK
	}
	return c.TopK * c.CandidateMultiplier
}

// Validate checks the query text and configuration before any work starts
func (c *QueryConfig) Validate(query string) error {
	if strings.TrimSpace(query) == "" {
		return NewValidationError("query", "must not be empty")
	}
	if c.TopK <= 0 {
		return NewValidationError("top_k", fmt.Sprintf("must be positive, got %d", c.TopK))
	}
	if c.Hops <= 0 {
		return NewValidationError("hops", fmt.Sprintf("must be positive, got %d", c.Hops))
	}
	switch c.RagType {
	case RagTypeVector, RagTypeGraph, RagTypeHybrid:
	default:
		return NewValidationError("rag_type", fmt.Sprintf("unknown value %q", c.RagType))
	}
	switch c.Strategy {
	case StrategyVectorFirst, StrategyGraphFirst, StrategyInterleaved:
	default:
		return NewValidationError("strategy", fmt.Sprintf("unknown value %q", c.Strategy))
	}
	if c.MaxContextTokens < 0 {
		return NewValidationError("max_context_tokens", "must not be negative")
	}
	return nil
}

// Config is the recognized configuration surface of the retrieval core
type Config struct {
	RagType      RagType `json:"rag_type"`
	TopK         int     `json:"top_k"`
	Hops         int     `json:"hops"`
	ChunkSize    int     `json:"chunk_size"`    // Consumed by upstream chunking
	ChunkOverlap int     `json:"chunk_overlap"` // Consumed by upstream chunking

	// Fusion
	RRFK         float64 `json:"rrf_k"`
	VectorWeight float64 `json:"vector_weight"`
	GraphWeight  float64 `json:"graph_weight"`

	// Ranking
	RerankEnabled      bool    `json:"rerank_enabled"`
	RerankModel        string  `json:"rerank_model,omitempty"`
	RerankAlpha        float64 `json:"rerank_alpha"`
	DiversityThreshold float64 `json:"diversity_threshold"`

	// Context and timeouts
	MaxContextTokens  int           `json:"max_context_tokens"`
	Tokenizer         string        `json:"tokenizer"` // "estimate" or a tiktoken model name
	RetrievalTimeout  time.Duration `json:"retrieval_timeout"`
	GenerationTimeout time.Duration `json:"generation_timeout"`

	// Collaborators
	LLMModel       string `json:"llm_model"`
	LLMBaseURL     string `json:"llm_base_url,omitempty"`
	LLMAPIKey      string `json:"-"`
	EmbeddingModel string `json:"embedding_model"`
	EmbeddingDim   int    `json:"embedding_dim"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		RagType:            RagTypeHybrid,
		TopK:               8,
		Hops:               1,
		ChunkSize:          500,
		ChunkOverlap:       50,
		RRFK:               60,
		VectorWeight:       1,
		GraphWeight:        1,
		RerankAlpha:        0.5,
		DiversityThreshold: 0.9,
		MaxContextTokens:   3000,
		Tokenizer:          "estimate",
		RetrievalTimeout:   5 * time.Second,
		GenerationTimeout:  60 * time.Second,
		LLMModel:           "gpt-4o-mini",
		EmbeddingModel:     "sentence-transformers/all-MiniLM-L6-v2",
		EmbeddingDim:       384,
	}
}

// NewConfigFromEnv loads the configuration from RAG_*, LLM_* and EMBEDDING_*
// environment variables, falling back to DefaultConfig for unset values.
// A .env file in the working directory is loaded first if present.
func NewConfigFromEnv() (*Config, error) {
	if err := helper.LoadEnv(); err != nil {
		return nil, helper.NewError("load env", err)
	}

	d := DefaultConfig()
	cfg := &Config{
		RagType:            RagType(helper.EnvString("RAG_TYPE", string(d.RagType))),
		TopK:               helper.EnvInt("RAG_TOP_K", d.TopK),
		Hops:               helper.EnvInt("RAG_HOPS", d.Hops),
		ChunkSize:          helper.EnvInt("RAG_CHUNK_SIZE", d.ChunkSize),
		ChunkOverlap:       helper.EnvInt("RAG_CHUNK_OVERLAP", d.ChunkOverlap),
		RRFK:               helper.EnvFloat("RAG_RRF_K", d.RRFK),
		VectorWeight:       helper.EnvFloat("RAG_VECTOR_WEIGHT", d.VectorWeight),
		GraphWeight:        helper.EnvFloat("RAG_GRAPH_WEIGHT", d.GraphWeight),
		RerankEnabled:      helper.EnvBool("RAG_RERANK_ENABLED", d.RerankEnabled),
		RerankModel:        helper.EnvString("RAG_RERANK_MODEL", d.RerankModel),
		RerankAlpha:        helper.EnvFloat("RAG_RERANK_ALPHA", d.RerankAlpha),
		DiversityThreshold: helper.EnvFloat("RAG_DIVERSITY_THRESHOLD", d.DiversityThreshold),
		MaxContextTokens:   helper.EnvInt("RAG_MAX_CONTEXT_TOKENS", d.MaxContextTokens),
		Tokenizer:          helper.EnvString("RAG_TOKENIZER", d.Tokenizer),
		RetrievalTimeout:   helper.EnvDuration("RAG_RETRIEVAL_TIMEOUT", d.RetrievalTimeout),
		GenerationTimeout:  helper.EnvDuration("RAG_GENERATION_TIMEOUT", d.GenerationTimeout),
		LLMModel:           helper.EnvString("LLM_MODEL", d.LLMModel),
		LLMBaseURL:         helper.EnvString("LLM_BASE_URL", d.LLMBaseURL),
		LLMAPIKey:          helper.EnvString("LLM_API_KEY", d.LLMAPIKey),
		EmbeddingModel:     helper.EnvString("EMBEDDING_MODEL", d.EmbeddingModel),
		EmbeddingDim:       helper.EnvInt("EMBEDDING_DIM", d.EmbeddingDim),
	}

	if err := cfg.Validate(); err != nil {
		return nil, helper.NewError("validate config", err)
	}

	return cfg, nil
}

// Validate checks the static configuration
func (c *Config) Validate() error {
	switch c.RagType {
	case RagTypeVector, RagTypeGraph, RagTypeHybrid:
	default:
		return NewValidationError("rag_type", fmt.Sprintf("unknown value %q", c.RagType))
	}
	if c.TopK <= 0 {
		return NewValidationError("top_k", "must be positive")
	}
	if c.Hops <= 0 {
		return NewValidationError("hops", "must be positive")
	}
	if c.ChunkSize < 0 || c.ChunkOverlap < 0 {
		return NewValidationError("chunk_size", "chunk size and overlap must not be negative")
	}
	if c.ChunkSize > 0 && c.ChunkOverlap >= c.ChunkSize {
		return NewValidationError("chunk_overlap", "must be smaller than chunk_size")
	}
	if c.RRFK <= 0 {
		return NewValidationError("rrf_k", "must be positive")
	}
	if c.VectorWeight < 0 || c.GraphWeight < 0 {
		return NewValidationError("fusion weights", "must not be negative")
	}
	if c.RerankAlpha < 0 || c.RerankAlpha > 1 {
		return NewValidationError("rerank_alpha", "must be within [0,1]")
	}
	if c.DiversityThreshold < 0 || c.DiversityThreshold > 1 {
		return NewValidationError("diversity_threshold", "must be within [0,1]")
	}
	return nil
}

// QueryConfig derives the per-query defaults from the static configuration
func (c *Config) QueryConfig() QueryConfig {
	qc := DefaultQueryConfig()
	qc.TopK = c.TopK
	qc.Hops = c.Hops
	qc.RagType = c.RagType
	if c.MaxContextTokens > 0 {
		qc.MaxContextTokens = c.MaxContextTokens
	}
	return qc
}
