package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/hybridrag/helper"
	"github.com/siherrmann/hybridrag/model"
	loadSql "github.com/siherrmann/hybridrag/sql"
)

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	InsertChunk(ctx context.Context, chunk *model.Chunk) error
	SelectChunk(ctx context.Context, id string) (*model.Chunk, error)
	DeleteChunk(ctx context.Context, id string) error
	SimilaritySearch(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]model.RetrievalResult, error)
	ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error
}

// ChunksDBHandler handles chunk-related database operations.
// It serves as the vector index of the retrieval core.
type ChunksDBHandler struct {
	db           *helper.Database
	embeddingDim int
}

// NewChunksDBHandler creates a new chunks database handler.
// It loads the chunk-related SQL functions and creates the table with an
// embedding column of embeddingDim dimensions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	chunksDbHandler := &ChunksDBHandler{
		db:           db,
		embeddingDim: embeddingDim,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler", "embedding_dim", embeddingDim)

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table in the database.
// If the table already exists, it does not create it again.
func (h *ChunksDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, h.embeddingDim)
	if err != nil {
		return helper.NewError("init chunks", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// Dimension returns the embedding dimension of the chunks table
func (h *ChunksDBHandler) Dimension() int {
	return h.embeddingDim
}

// InsertChunk inserts a chunk, replacing an existing chunk with the same id
func (h *ChunksDBHandler) InsertChunk(ctx context.Context, chunk *model.Chunk) error {
	if chunk.ID == "" {
		return helper.NewError("chunk validation", fmt.Errorf("chunk id must not be empty"))
	}
	if len(chunk.Embedding) != h.embeddingDim {
		return helper.NewError("chunk validation", fmt.Errorf("embedding has %d dimensions, expected %d", len(chunk.Embedding), h.embeddingDim))
	}

	metadata := chunk.Metadata
	if metadata == nil {
		metadata = model.Metadata{}
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_chunk($1, $2, $3, $4, $5)`,
		chunk.ID,
		nullableUUID(chunk.DocumentRID),
		chunk.Content,
		pgvector.NewVector(chunk.Embedding),
		metadata,
	)

	var documentRID uuid.NullUUID
	err := row.Scan(
		&chunk.ID,
		&documentRID,
		&chunk.Content,
		&chunk.Metadata,
		&chunk.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}
	chunk.DocumentRID = documentRID.UUID

	return nil
}

// SelectChunk retrieves a chunk by id
func (h *ChunksDBHandler) SelectChunk(ctx context.Context, id string) (*model.Chunk, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_chunk($1)`,
		id,
	)

	chunk := &model.Chunk{}
	var documentRID uuid.NullUUID
	err := row.Scan(
		&chunk.ID,
		&documentRID,
		&chunk.Content,
		&chunk.Metadata,
		&chunk.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select chunk", fmt.Errorf("chunk %s not found: %w", id, err))
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}
	chunk.DocumentRID = documentRID.UUID

	return chunk, nil
}

// DeleteChunk deletes a chunk and the edges touching it
func (h *ChunksDBHandler) DeleteChunk(ctx context.Context, id string) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_chunk($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SimilaritySearch returns the topK chunks closest to vector by cosine
// similarity, restricted to chunks whose metadata contains every filter.
// Results are tagged with the vector source and sorted descending.
func (h *ChunksDBHandler) SimilaritySearch(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]model.RetrievalResult, error) {
	if len(vector) != h.embeddingDim {
		return nil, helper.NewError("similarity search", fmt.Errorf("query vector has %d dimensions, expected %d", len(vector), h.embeddingDim))
	}

	var filtersParam interface{}
	if len(filters) > 0 {
		b, err := json.Marshal(filters)
		if err != nil {
			return nil, helper.NewError("marshal filters", err)
		}
		filtersParam = string(b)
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_chunks_by_similarity($1, $2, $3)`,
		pgvector.NewVector(vector),
		topK,
		filtersParam,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []model.RetrievalResult
	for rows.Next() {
		chunk := &model.Chunk{}
		var documentRID uuid.NullUUID
		err := rows.Scan(
			&chunk.ID,
			&documentRID,
			&chunk.Content,
			&chunk.Metadata,
			&chunk.CreatedAt,
			&chunk.Similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		chunk.DocumentRID = documentRID.UUID

		results = append(results, chunk.ToResult(chunk.Similarity, model.SourceVector))
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	model.SortResults(results)

	return results, nil
}

func nullableUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}
