package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/hybridrag"
	"github.com/siherrmann/hybridrag/core/llm"
	"github.com/siherrmann/hybridrag/core/pipeline"
	"github.com/siherrmann/hybridrag/helper"
	"github.com/siherrmann/hybridrag/model"
)

var passages = []*model.Chunk{
	{ID: "intro", Content: "Graph databases are designed to store and query data with complex relationships."},
	{ID: "nodes", Content: "They use nodes to represent entities and edges to represent relationships between them."},
	{ID: "pgvector", Content: "PostgreSQL with pgvector enables vector similarity search next to relational data."},
	{ID: "hybrid", Content: "Combining semantic similarity and graph structure gives hybrid retrieval strategies."},
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := helper.TestDatabaseConfiguration(dbPort)

	// The hash embedder and the extractive client run without model downloads or an api key
	embedder, err := pipeline.NewHashEmbedder(256)
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	config := model.DefaultConfig()
	config.EmbeddingDim = embedder.Dimension()

	h, err := hybridrag.NewHybridRAG(dbConfig, &config, hybridrag.Options{
		Embedder: embedder,
		LLM:      llm.ExtractiveClient{},
	})
	if err != nil {
		log.Fatalf("Failed to create hybridrag: %v", err)
	}
	defer h.Close()

	ctx := context.Background()

	fmt.Println("Ingesting passages...")
	if err := h.AddChunks(ctx, passages...); err != nil {
		log.Fatalf("Failed to add chunks: %v", err)
	}
	edges := []*model.Edge{
		{SourceID: "intro", TargetID: "nodes", EdgeType: model.EdgeTypeHierarchical},
		{SourceID: "pgvector", TargetID: "hybrid", EdgeType: model.EdgeTypeSemantic, Bidirectional: true},
	}
	for _, edge := range edges {
		if err := h.AddEdge(ctx, edge); err != nil {
			log.Fatalf("Failed to add edge: %v", err)
		}
	}

	queryText := "What are graph databases?"
	fmt.Printf("\nQuerying: %s\n", queryText)

	queryConfig := h.Config.QueryConfig()
	queryConfig.TopK = 3

	answer, err := h.Query(ctx, queryText, &queryConfig)
	if err != nil {
		log.Fatalf("Failed to query: %v", err)
	}

	fmt.Printf("\nAnswer:\n%s\n", answer.Answer)
	fmt.Println("\nProvenance:")
	for _, p := range answer.Provenance {
		fmt.Printf("[%d] %s (%s, score %.4f)\n", p.Citation, p.ID, p.Source, p.Score)
	}
	for _, d := range answer.Degradations {
		fmt.Printf("Degraded source %s: %s\n", d.Source, d.Reason)
	}

	fmt.Println("\nBasic example completed successfully!")
}
