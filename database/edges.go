package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/siherrmann/hybridrag/helper"
	"github.com/siherrmann/hybridrag/model"
	loadSql "github.com/siherrmann/hybridrag/sql"
)

// EdgesDBHandlerFunctions defines the interface for Edges database operations.
type EdgesDBHandlerFunctions interface {
	InsertEdge(ctx context.Context, edge *model.Edge) error
	DeleteEdge(ctx context.Context, id uuid.UUID) error
	SelectEdgesConnected(ctx context.Context, nodeID string) ([]model.Edge, error)
	QueryNeighbors(ctx context.Context, nodeID string, hops int, limit int) ([]model.Node, error)
	QuerySubgraph(ctx context.Context, seedIDs []string, hops int, limit int) ([]model.Node, []model.Edge, error)
}

// EdgesDBHandler handles edge-related database operations.
// It serves as the graph store of the retrieval core, the nodes of the
// graph being the rows of the chunks table.
type EdgesDBHandler struct {
	db *helper.Database
	// EdgeTypes restricts traversal to the given edge types, all types when empty
	EdgeTypes []model.EdgeType
}

// NewEdgesDBHandler creates a new edges database handler.
// It loads the edge-related SQL functions and creates the table.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEdgesDBHandler(db *helper.Database, force bool) (*EdgesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	edgesDbHandler := &EdgesDBHandler{
		db: db,
	}

	err := loadSql.LoadEdgesSql(edgesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load edges sql", err)
	}

	err = edgesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EdgesDBHandler")

	return edgesDbHandler, nil
}

// CreateTable creates the 'edges' table in the database.
// If the table already exists, it does not create it again.
func (h *EdgesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_edges();`)
	if err != nil {
		return helper.NewError("init edges", err)
	}

	h.db.Logger.Info("Checked/created table edges")

	return nil
}

// InsertEdge inserts an edge, updating weight and metadata of an existing
// edge with the same source, target and type
func (h *EdgesDBHandler) InsertEdge(ctx context.Context, edge *model.Edge) error {
	if edge.SourceID == "" || edge.TargetID == "" {
		return helper.NewError("edge validation", fmt.Errorf("source and target id must not be empty"))
	}
	if edge.EdgeType == "" {
		edge.EdgeType = model.EdgeTypeSemantic
	}
	if edge.Weight == 0 {
		edge.Weight = 1
	}
	metadata := edge.Metadata
	if metadata == nil {
		metadata = model.Metadata{}
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_edge($1, $2, $3, $4, $5, $6)`,
		edge.SourceID,
		edge.TargetID,
		string(edge.EdgeType),
		edge.Weight,
		edge.Bidirectional,
		metadata,
	)

	err := scanEdge(row, edge)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteEdge deletes an edge by id
func (h *EdgesDBHandler) DeleteEdge(ctx context.Context, id uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_edge($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectEdgesConnected retrieves all edges starting or ending at nodeID
func (h *EdgesDBHandler) SelectEdgesConnected(ctx context.Context, nodeID string) ([]model.Edge, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_edges_connected($1, $2)`,
		nodeID,
		pq.Array(h.edgeTypes()),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// QueryNeighbors returns the nodes reachable from nodeID within hops,
// excluding nodeID itself, nearest first
func (h *EdgesDBHandler) QueryNeighbors(ctx context.Context, nodeID string, hops int, limit int) ([]model.Node, error) {
	// The seed itself takes one row of the limit
	fetch := 0
	if limit > 0 {
		fetch = limit + 1
	}
	nodes, err := h.selectNeighborhood(ctx, []string{nodeID}, hops, fetch)
	if err != nil {
		return nil, err
	}

	neighbors := make([]model.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Hops == 0 {
			continue
		}
		neighbors = append(neighbors, n)
	}
	if limit > 0 && len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}

	return neighbors, nil
}

// QuerySubgraph returns the nodes within hops of any seed, each once at its
// smallest hop distance, plus the edges among the returned nodes.
// Seeds that exist as chunks are returned with Hops 0.
func (h *EdgesDBHandler) QuerySubgraph(ctx context.Context, seedIDs []string, hops int, limit int) ([]model.Node, []model.Edge, error) {
	if len(seedIDs) == 0 {
		return []model.Node{}, []model.Edge{}, nil
	}

	nodes, err := h.selectNeighborhood(ctx, seedIDs, hops, limit)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_edges_between($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, nil, helper.NewError("query", err)
	}
	defer rows.Close()

	edges, err := scanEdges(rows)
	if err != nil {
		return nil, nil, err
	}

	return nodes, edges, nil
}

func (h *EdgesDBHandler) selectNeighborhood(ctx context.Context, seedIDs []string, hops int, limit int) ([]model.Node, error) {
	if hops < 0 {
		return nil, helper.NewError("neighborhood validation", fmt.Errorf("hops must not be negative, got %d", hops))
	}

	// A NULL limit returns every reachable node
	var limitParam interface{}
	if limit > 0 {
		limitParam = limit
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_neighborhood($1, $2, $3, $4)`,
		pq.Array(seedIDs),
		hops,
		pq.Array(h.edgeTypes()),
		limitParam,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var nodes []model.Node
	for rows.Next() {
		var node model.Node
		var documentRID uuid.NullUUID
		err := rows.Scan(
			&node.ID,
			&documentRID,
			&node.Content,
			&node.Metadata,
			&node.Hops,
			&node.Weight,
			pq.Array(&node.Path),
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		node.DocumentRID = documentRID.UUID

		nodes = append(nodes, node)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return nodes, nil
}

func (h *EdgesDBHandler) edgeTypes() []string {
	types := make([]string, len(h.EdgeTypes))
	for i, t := range h.EdgeTypes {
		types[i] = string(t)
	}
	return types
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEdge(row rowScanner, edge *model.Edge) error {
	var edgeType string
	err := row.Scan(
		&edge.ID,
		&edge.SourceID,
		&edge.TargetID,
		&edgeType,
		&edge.Weight,
		&edge.Bidirectional,
		&edge.Metadata,
		&edge.CreatedAt,
	)
	if err != nil {
		return err
	}
	edge.EdgeType = model.EdgeType(edgeType)
	return nil
}

func scanEdges(rows *sql.Rows) ([]model.Edge, error) {
	var edges []model.Edge
	for rows.Next() {
		var edge model.Edge
		err := scanEdge(rows, &edge)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		edges = append(edges, edge)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return edges, nil
}
