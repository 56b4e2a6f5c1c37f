package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/hybridrag"
	"github.com/siherrmann/hybridrag/helper"
	"github.com/siherrmann/hybridrag/model"
)

// This example uses the hugot embedder and the OpenAI compatible client
// configured by LLM_API_KEY, LLM_BASE_URL and LLM_MODEL.
func main() {
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	config, err := model.NewConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	config.RerankEnabled = true
	config.RerankModel = "embedding"

	h, err := hybridrag.NewHybridRAG(helper.TestDatabaseConfiguration(dbPort), config, hybridrag.Options{})
	if err != nil {
		log.Fatalf("Failed to create hybridrag: %v", err)
	}
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	doc := uuid.New()
	chunks := []*model.Chunk{
		{ID: "rrf", DocumentRID: doc, Content: "Reciprocal rank fusion sums weight divided by rank plus sixty over every list.", Metadata: model.Metadata{"workspace": "docs"}},
		{ID: "graph", DocumentRID: doc, Content: "Graph expansion walks edges from seed chunks up to a hop limit.", Metadata: model.Metadata{"workspace": "docs"}},
		{ID: "budget", DocumentRID: doc, Content: "The context builder drops whole passages once the token budget is exhausted.", Metadata: model.Metadata{"workspace": "docs"}},
		{ID: "other", Content: "An unrelated note in another workspace.", Metadata: model.Metadata{"workspace": "scratch"}},
	}
	if err := h.AddChunks(ctx, chunks...); err != nil {
		log.Fatalf("Failed to add chunks: %v", err)
	}
	if err := h.AddEdge(ctx, &model.Edge{SourceID: "rrf", TargetID: "graph", EdgeType: model.EdgeTypeReference}); err != nil {
		log.Fatalf("Failed to add edge: %v", err)
	}
	if err := h.ChangeIndexType(ctx, "hnsw", map[string]interface{}{"m": 16, "ef_construction": 64}); err != nil {
		log.Fatalf("Failed to change index: %v", err)
	}

	// Stream the answer of an interleaved query restricted to one workspace
	h.Orchestrator.OnChunk = func(_ uuid.UUID, chunk string) {
		fmt.Fprint(os.Stdout, chunk)
	}
	queryConfig := h.Config.QueryConfig()
	queryConfig.Strategy = model.StrategyInterleaved
	queryConfig.SeedIDs = []string{"rrf"}
	queryConfig.Filters = map[string]string{"workspace": "docs"}
	queryConfig.Stream = true

	fmt.Println("Streaming answer:")
	answer, err := h.Query(ctx, "How are vector and graph results fused?", &queryConfig)
	if err != nil {
		log.Fatalf("Failed to query: %v", err)
	}
	fmt.Printf("\n\nStage %s, degraded %t, timings %v\n", answer.Stage, answer.Degraded(), answer.Timings)

	// Answer several questions concurrently
	h.Orchestrator.OnChunk = nil
	results := h.QueryBatch(ctx, []string{
		"What limits graph expansion?",
		"What happens when the token budget is exhausted?",
	}, nil, 2)
	for _, result := range results {
		if result.Err != nil {
			fmt.Printf("\n%s failed: %v\n", result.Query, result.Err)
			continue
		}
		fmt.Printf("\nQ: %s\nA: %s\n", result.Query, result.Answer.Answer)
	}
}
