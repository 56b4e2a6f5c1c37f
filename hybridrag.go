package hybridrag

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/siherrmann/hybridrag/core/fusion"
	"github.com/siherrmann/hybridrag/core/graph"
	"github.com/siherrmann/hybridrag/core/llm"
	"github.com/siherrmann/hybridrag/core/orchestrator"
	"github.com/siherrmann/hybridrag/core/pipeline"
	"github.com/siherrmann/hybridrag/core/prompt"
	"github.com/siherrmann/hybridrag/core/ranking"
	"github.com/siherrmann/hybridrag/core/retrieval"
	"github.com/siherrmann/hybridrag/database"
	"github.com/siherrmann/hybridrag/helper"
	"github.com/siherrmann/hybridrag/model"
	loadSql "github.com/siherrmann/hybridrag/sql"
)

// Options replace the collaborators NewHybridRAG would otherwise create
type Options struct {
	// Embedder defaults to the hugot embedder for Config.EmbeddingModel
	Embedder pipeline.Embedder
	// LLM defaults to the OpenAI client if an api key or base url is
	// configured, otherwise to the extractive client
	LLM llm.Client
	// ResolveEntities enables NER based seed resolution for graph_first
	// and interleaved queries without pre-resolved seeds
	ResolveEntities bool
	// MemoryGraph replaces the Postgres edges table as graph store. Added
	// chunks become its nodes and AddEdge writes to it.
	MemoryGraph *graph.Store
	Logger      *slog.Logger
}

// HybridRAG wires the Postgres stores, the embedder, the language model and
// the query orchestrator
type HybridRAG struct {
	DB           *helper.Database
	Chunks       *database.ChunksDBHandler
	Edges        *database.EdgesDBHandler
	MemoryGraph  *graph.Store
	Embedder     pipeline.Embedder
	LLM          llm.Client
	Orchestrator *orchestrator.Orchestrator
	Config       model.Config
	closers      []func() error
	// Logging
	log *slog.Logger
}

// NewHybridRAGFromEnv creates a HybridRAG from the RAG_*, LLM_*, EMBEDDING_*
// and DB_* environment variables
func NewHybridRAGFromEnv(opts Options) (*HybridRAG, error) {
	config, err := model.NewConfigFromEnv()
	if err != nil {
		return nil, helper.NewError("load config", err)
	}
	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return nil, helper.NewError("load database config", err)
	}
	return NewHybridRAG(dbConfig, config, opts)
}

// NewHybridRAG connects to the database, creates the tables and builds the
// retrieval pipeline from config
func NewHybridRAG(dbConfig *helper.DatabaseConfiguration, config *model.Config, opts Options) (*HybridRAG, error) {
	if config == nil {
		defaults := model.DefaultConfig()
		config = &defaults
	}
	if err := config.Validate(); err != nil {
		return nil, helper.NewError("validate config", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = helper.NewLogger(os.Stdout, slog.LevelInfo)
	}

	h := &HybridRAG{Config: *config, log: logger}
	ok := false
	defer func() {
		if !ok {
			_ = h.Close()
		}
	}()

	// Initialize database
	db, err := helper.NewDatabase("hybridrag", dbConfig, logger)
	if err != nil {
		return nil, err
	}
	h.DB = db
	if err := loadSql.Init(db.Instance); err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	h.Embedder = opts.Embedder
	if h.Embedder == nil {
		embedder, err := pipeline.NewHugotEmbedder(helper.DefaultModelDir, config.EmbeddingModel)
		if err != nil {
			return nil, helper.NewError("create embedder", err)
		}
		h.Embedder = embedder
		h.closers = append(h.closers, embedder.Close)
	}
	dimension := h.Embedder.Dimension()
	if config.EmbeddingDim > 0 && config.EmbeddingDim != dimension {
		logger.Warn("Embedding dimension differs from configuration, using the embedder's", slog.Int("configured", config.EmbeddingDim), slog.Int("embedder", dimension))
	}

	// force=false to not reload if functions already exist
	h.Chunks, err = database.NewChunksDBHandler(db, dimension, false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}
	h.Edges, err = database.NewEdgesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create edges handler", err)
	}

	var resolver retrieval.EntityResolver
	if opts.ResolveEntities {
		extract, closeExtractor, err := pipeline.DefaultMentionExtractor(helper.DefaultModelDir)
		if err != nil {
			return nil, helper.NewError("create mention extractor", err)
		}
		h.closers = append(h.closers, closeExtractor)
		resolver = &pipeline.EntityResolver{
			Extract:  extract,
			Embedder: h.Embedder,
			Index:    h.Chunks,
			MinScore: 0.5,
		}
	}

	h.LLM = opts.LLM
	if h.LLM == nil {
		h.LLM, err = newClient(config, logger)
		if err != nil {
			return nil, helper.NewError("create llm client", err)
		}
	}

	ranker := ranking.NewRanker(nil, 0, config.DiversityThreshold, logger)
	if config.RerankEnabled {
		scorer, err := ranking.NewScorer(config.RerankModel, h.Embedder)
		if err != nil {
			return nil, helper.NewError("create scorer", err)
		}
		ranker = ranking.NewRanker(scorer, config.RerankAlpha, config.DiversityThreshold, logger)
	}

	var graphStore retrieval.GraphStore = h.Edges
	if opts.MemoryGraph != nil {
		h.MemoryGraph = opts.MemoryGraph
		graphStore = opts.MemoryGraph
	}

	hybrid := retrieval.NewHybridRetriever(
		retrieval.NewVectorRetriever(h.Chunks, dimension, config.RetrievalTimeout, logger),
		retrieval.NewGraphRetriever(graphStore, config.RetrievalTimeout, logger),
		resolver,
		logger,
	)

	h.Orchestrator, err = orchestrator.NewOrchestrator(orchestrator.Components{
		Embedder:  h.Embedder,
		Retriever: hybrid,
		Fuser: fusion.NewFuser(config.RRFK, map[model.Source]float64{
			model.SourceVector: config.VectorWeight,
			model.SourceGraph:  config.GraphWeight,
		}),
		Ranker:  ranker,
		Builder: prompt.NewBuilder(prompt.NewTokenCounter(config.Tokenizer)),
		LLM:     h.LLM,
	}, logger)
	if err != nil {
		return nil, err
	}
	h.Orchestrator.GenerationTimeout = config.GenerationTimeout

	logger.Info("Initialized HybridRAG", slog.String("rag_type", string(config.RagType)), slog.String("llm", h.LLM.Name()), slog.Int("embedding_dim", dimension))

	ok = true
	return h, nil
}

func newClient(config *model.Config, logger *slog.Logger) (llm.Client, error) {
	if config.LLMAPIKey == "" && config.LLMBaseURL == "" {
		logger.Warn("No LLM_API_KEY or LLM_BASE_URL configured, answering extractively")
		return llm.ExtractiveClient{}, nil
	}
	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		Model:   config.LLMModel,
		APIKey:  config.LLMAPIKey,
		BaseURL: config.LLMBaseURL,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Close releases the embedder, the mention extractor and the database connection
func (h *HybridRAG) Close() error {
	var firstErr error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	h.closers = nil
	if h.DB != nil {
		if err := h.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// AddChunks embeds the chunks without an embedding in one batch and stores all of them
func (h *HybridRAG) AddChunks(ctx context.Context, chunks ...*model.Chunk) error {
	var missing []*model.Chunk
	var texts []string
	for _, chunk := range chunks {
		if chunk == nil {
			return helper.NewError("add chunks", fmt.Errorf("chunk is nil"))
		}
		if len(chunk.Embedding) == 0 {
			missing = append(missing, chunk)
			texts = append(texts, chunk.Content)
		}
	}

	if len(texts) > 0 {
		embeddings, err := h.Embedder.Encode(ctx, texts)
		if err != nil {
			return helper.NewError("embed chunks", &model.EmbeddingError{Err: err})
		}
		if len(embeddings) != len(missing) {
			return helper.NewError("embed chunks", fmt.Errorf("expected %d embeddings, got %d", len(missing), len(embeddings)))
		}
		for i, chunk := range missing {
			chunk.Embedding = embeddings[i]
		}
	}

	for i, chunk := range chunks {
		if err := h.Chunks.InsertChunk(ctx, chunk); err != nil {
			return helper.NewError(fmt.Sprintf("insert chunk %d", i), err)
		}
		if h.MemoryGraph != nil {
			if err := h.MemoryGraph.AddChunk(chunk); err != nil {
				return helper.NewError(fmt.Sprintf("add graph node %d", i), err)
			}
		}
	}

	h.log.Debug("Added chunks", slog.Int("chunks", len(chunks)), slog.Int("embedded", len(missing)))

	return nil
}

// AddEdge stores an edge between two chunks
func (h *HybridRAG) AddEdge(ctx context.Context, edge *model.Edge) error {
	if edge == nil {
		return helper.NewError("add edge", fmt.Errorf("edge is nil"))
	}
	if h.MemoryGraph != nil {
		return h.MemoryGraph.AddEdge(*edge)
	}
	return h.Edges.InsertEdge(ctx, edge)
}

// Query answers a query. A nil config uses the configured defaults.
func (h *HybridRAG) Query(ctx context.Context, query string, config *model.QueryConfig) (*model.Answer, error) {
	cfg := h.Config.QueryConfig()
	if config != nil {
		cfg = *config
	}
	return h.Orchestrator.Run(ctx, query, cfg)
}

// QueryBatch answers independent queries concurrently, at most limit at a time
func (h *HybridRAG) QueryBatch(ctx context.Context, queries []string, config *model.QueryConfig, limit int) []orchestrator.BatchResult {
	cfg := h.Config.QueryConfig()
	if config != nil {
		cfg = *config
	}
	return h.Orchestrator.RunBatch(ctx, queries, cfg, limit)
}

// ChangeIndexType changes the vector index type between HNSW and IVFFlat
func (h *HybridRAG) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	return h.Chunks.ChangeIndexType(ctx, indexType, params)
}
