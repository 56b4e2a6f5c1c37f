package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/hybridrag/core/fusion"
	"github.com/siherrmann/hybridrag/core/llm"
	"github.com/siherrmann/hybridrag/core/pipeline"
	"github.com/siherrmann/hybridrag/core/prompt"
	"github.com/siherrmann/hybridrag/core/ranking"
	"github.com/siherrmann/hybridrag/core/retrieval"
	"github.com/siherrmann/hybridrag/helper"
	"github.com/siherrmann/hybridrag/model"
)

// SourceRerank tags the degradation recorded when the secondary ranking signal fails
const SourceRerank model.Source = "rerank"

// NoContextAnswer is the answer text when generation is skipped for lack of context
const NoContextAnswer = "No relevant information was found."

// Retriever produces the per-source candidates of a query
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) (*retrieval.Candidates, error)
}

// Fuser merges the vector and graph candidates into one deduplicated list
type Fuser interface {
	Fuse(vector, graph []model.RetrievalResult) []model.RetrievalResult
}

// Reranker reorders and truncates the fused candidates
type Reranker interface {
	Rerank(ctx context.Context, candidates []model.RetrievalResult, query string, topK int) ([]model.RetrievalResult, error)
}

// ContextBuilder turns ranked results into a bounded, cited prompt
type ContextBuilder interface {
	Build(ranked []model.RetrievalResult, query string, maxTokens int) prompt.Context
}

// Components are the collaborators of an orchestrator.
// Embedder, Retriever and LLM are required, the others have defaults.
type Components struct {
	Embedder  pipeline.Embedder
	Retriever Retriever
	Fuser     Fuser
	Ranker    Reranker
	Builder   ContextBuilder
	LLM       llm.Client
}

// Orchestrator runs a query through embedding, retrieval, fusion, ranking,
// context building, generation and formatting
type Orchestrator struct {
	components Components
	// GenerationTimeout bounds the language-model call, 0 disables it
	GenerationTimeout time.Duration
	// OnChunk, if set, receives every streamed chunk as it arrives
	OnChunk func(queryID uuid.UUID, chunk string)
	logger  *slog.Logger
}

// NewOrchestrator creates an orchestrator from its components
func NewOrchestrator(components Components, logger *slog.Logger) (*Orchestrator, error) {
	if components.Embedder == nil {
		return nil, helper.NewError("create orchestrator", fmt.Errorf("embedder is required"))
	}
	if components.Retriever == nil {
		return nil, helper.NewError("create orchestrator", fmt.Errorf("retriever is required"))
	}
	if components.LLM == nil {
		return nil, helper.NewError("create orchestrator", fmt.Errorf("llm client is required"))
	}
	if components.Fuser == nil {
		components.Fuser = fusion.NewFuser(fusion.DefaultK, nil)
	}
	if components.Ranker == nil {
		components.Ranker = ranking.NewRanker(nil, 0, 0, logger)
	}
	if components.Builder == nil {
		components.Builder = prompt.NewBuilder(nil)
	}

	return &Orchestrator{
		components: components,
		logger:     helper.OrNop(logger),
	}, nil
}

// run is the state of a single query
type run struct {
	o       *Orchestrator
	qc      *model.QueryContext
	stage   model.Stage
	started time.Time
	logger  *slog.Logger
}

func (r *run) enter(stage model.Stage) {
	now := time.Now()
	if r.stage != "" {
		r.qc.Timings[r.stage] = now.Sub(r.started)
	}
	r.stage = stage
	r.qc.Stage = stage
	r.started = now
	r.logger.Debug("Query stage", slog.String("stage", string(stage)))
}

func (r *run) fail(err error) error {
	r.enter(model.StageFailed)
	r.logger.Debug("Query failed", slog.String("error", err.Error()))
	return err
}

// Run answers a query. Malformed input is rejected with a validation error
// before any work starts. A failing retrieval source degrades the answer
// instead of failing it. Cancellation before generation returns ctx.Err()
// without an answer. Cancellation while streaming returns the partial answer,
// marked Partial, together with the wrapped cancellation error.
func (o *Orchestrator) Run(ctx context.Context, query string, cfg model.QueryConfig) (*model.Answer, error) {
	if err := cfg.Validate(query); err != nil {
		return nil, err
	}

	qc := model.NewQueryContext(query, cfg)
	r := &run{o: o, qc: qc, logger: o.logger.With(slog.String("query_id", qc.ID.String()))}

	// EMBEDDING
	r.enter(model.StageEmbedding)
	if err := ctx.Err(); err != nil {
		return nil, r.fail(err)
	}
	embedding, err := o.components.Embedder.EncodeOne(ctx, query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, r.fail(ctxErr)
		}
		return nil, r.fail(&model.EmbeddingError{Err: err})
	}
	if len(embedding) == 0 {
		return nil, r.fail(&model.EmbeddingError{Err: fmt.Errorf("embedder returned an empty vector")})
	}
	qc.Embedding = embedding

	// RETRIEVING
	r.enter(model.StageRetrieving)
	candidates, err := o.components.Retriever.Retrieve(ctx, retrieval.Request{Query: query, Embedding: embedding, Config: cfg})
	switch {
	case err == nil:
	case errors.Is(err, model.ErrNoContextAvailable) && candidates != nil:
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, r.fail(ctxErr)
		}
		return nil, r.fail(helper.NewError("retrieve", err))
	}
	if candidates == nil {
		candidates = &retrieval.Candidates{Strategy: cfg.Strategy}
	}
	qc.VectorResults = candidates.Vector
	qc.GraphResults = candidates.Graph
	qc.Degradations = append(qc.Degradations, candidates.Degradations...)
	for _, d := range candidates.Degradations {
		r.logger.Warn("Continuing without retrieval source", slog.String("source", string(d.Source)), slog.String("reason", d.Reason))
	}

	var built prompt.Context
	if candidates.Empty() {
		qc.NoContext = true
		built = o.components.Builder.Build(nil, query, cfg.MaxContextTokens)
	} else {
		// FUSING
		r.enter(model.StageFusing)
		qc.FusedResults = o.components.Fuser.Fuse(qc.VectorResults, qc.GraphResults)

		// RANKING
		r.enter(model.StageRanking)
		ranked, err := o.components.Ranker.Rerank(ctx, qc.FusedResults, query, cfg.TopK)
		if err != nil {
			if !errors.Is(err, ranking.ErrScorerFailure) {
				return nil, r.fail(err)
			}
			qc.Degradations = append(qc.Degradations, model.Degradation{Source: SourceRerank, Reason: err.Error()})
			r.logger.Warn("Ranking without secondary signal", slog.String("reason", err.Error()))
		}
		qc.RankedResults = ranked

		// BUILDING_CONTEXT
		r.enter(model.StageBuildingContext)
		built = o.components.Builder.Build(qc.RankedResults, query, cfg.MaxContextTokens)
		if built.NoContext {
			qc.NoContext = true
		}
		if built.Dropped > 0 {
			r.logger.Debug("Context budget dropped results", slog.Int("dropped", built.Dropped), slog.Int("tokens", built.Tokens))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, r.fail(err)
	}

	// GENERATING
	r.enter(model.StageGenerating)
	answer := r.newAnswer(built)
	if qc.NoContext && cfg.SkipGenerationWithoutContext {
		r.logger.Debug("Skipping generation without context")
	} else {
		raw, err := r.generate(ctx, built)
		if err != nil {
			if ctx.Err() != nil && cfg.Stream {
				answer.Raw = raw
				answer.Answer = raw
				answer.Partial = true
				answer.Stage = model.StageFailed
				r.enter(model.StageFailed)
				answer.Timings = qc.Timings
				return answer, helper.NewError("generate", err)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, r.fail(ctxErr)
			}
			return nil, r.fail(&model.LlmProviderError{Provider: o.components.LLM.Name(), Err: err})
		}
		answer.Raw = raw
		answer.Generated = true
	}

	// FORMATTING
	r.enter(model.StageFormatting)
	answer.Answer = Format(answer.Raw, answer.Provenance, qc.NoContext, answer.Generated)

	r.enter(model.StageDone)
	answer.Stage = model.StageDone
	answer.Timings = qc.Timings

	return answer, nil
}

// generate calls the language model, collecting the stream if requested
func (r *run) generate(ctx context.Context, built prompt.Context) (string, error) {
	o := r.o
	cfg := r.qc.Config

	genCtx := ctx
	if o.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, o.GenerationTimeout)
		defer cancel()
	}

	req := llm.Request{
		System:    built.System,
		Prompt:    built.Prompt,
		MaxTokens: cfg.MaxAnswerTokens,
		Stop:      cfg.Stop,
	}

	if !cfg.Stream {
		return o.components.LLM.Generate(genCtx, req)
	}

	stream, err := o.components.LLM.StreamGenerate(genCtx, req)
	if err != nil {
		return "", err
	}

	var onChunk func(string)
	if o.OnChunk != nil {
		queryID := r.qc.ID
		onChunk = func(chunk string) { o.OnChunk(queryID, chunk) }
	}
	return llm.Collect(genCtx, stream, onChunk)
}

func (r *run) newAnswer(built prompt.Context) *model.Answer {
	qc := r.qc
	answer := &model.Answer{
		QueryID:      qc.ID,
		Query:        qc.Query,
		Provenance:   built.Included,
		NoContext:    qc.NoContext,
		Degradations: qc.Degradations,
	}
	if answer.Provenance == nil {
		answer.Provenance = []model.Provenance{}
	}
	for _, d := range qc.Degradations {
		if d.Source != SourceRerank {
			answer.SourceDegraded = true
		}
	}
	return answer
}
