//go:build cgo

package trace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements Store using KuzuDB. It requires CGO because the
// go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory database.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore opens or creates an on-disk database at dbPath. KuzuDB
// creates the leaf directory itself.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

// Open returns an on-disk trace store with its schema initialized.
func Open(ctx context.Context, dbPath string) (Store, error) {
	s, err := NewKuzuFileStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.InitSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func openKuzu(path string) (*KuzuStore, error) {
	db, err := kuzu.OpenDatabase(path, kuzu.DefaultSystemConfig())
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// Node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Run(
		id STRING,
		query_text STRING,
		created_at INT64,
		state STRING,
		final_content STRING,
		error_message STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Response(
		id STRING,
		run_id STRING,
		iteration INT64,
		layer_index INT64,
		layer STRING,
		agent STRING,
		position INT64,
		kind STRING,
		content STRING,
		error_message STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS PRODUCED(FROM Run TO Response)`,
	`CREATE REL TABLE IF NOT EXISTS AGGREGATES(FROM Response TO Response)`,
	`CREATE REL TABLE IF NOT EXISTS FEEDS(FROM Response TO Response)`,
}

// InitSchema creates all tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Write operations ----------

// AddRun inserts a Run node.
func (s *KuzuStore) AddRun(_ context.Context, run Run) error {
	return s.exec(
		`CREATE (r:Run {id: $id, query_text: $query, created_at: $created, state: $state, final_content: $final, error_message: $err})`,
		map[string]any{
			"id":      run.ID,
			"query":   run.Query,
			"created": run.CreatedAt.UnixNano(),
			"state":   run.State,
			"final":   run.Final,
			"err":     run.Error,
		},
	)
}

// FinishRun updates a run's terminal state.
func (s *KuzuStore) FinishRun(ctx context.Context, runID, state, final, errMsg string) error {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return err
	}
	return s.exec(
		`MATCH (r:Run {id: $id}) SET r.state = $state, r.final_content = $final, r.error_message = $err`,
		map[string]any{"id": runID, "state": state, "final": final, "err": errMsg},
	)
}

// AddResponse inserts a Response node and links it to its run.
func (s *KuzuStore) AddResponse(_ context.Context, resp Response) error {
	return s.exec(
		`MATCH (r:Run {id: $run})
		 CREATE (r)-[:PRODUCED]->(x:Response {
			id: $id,
			run_id: $run,
			iteration: $iter,
			layer_index: $li,
			layer: $layer,
			agent: $agent,
			position: $pos,
			kind: $kind,
			content: $content,
			error_message: $err
		 })`,
		map[string]any{
			"id":      resp.ID,
			"run":     resp.RunID,
			"iter":    int64(resp.Iteration),
			"li":      int64(resp.LayerIndex),
			"layer":   resp.Layer,
			"agent":   resp.Agent,
			"pos":     int64(resp.Position),
			"kind":    string(resp.Kind),
			"content": resp.Content,
			"err":     resp.Error,
		},
	)
}

// AddEdge inserts a relationship between two responses.
func (s *KuzuStore) AddEdge(_ context.Context, edge Edge) error {
	var cypher string
	switch edge.Kind {
	case EdgeAggregates:
		cypher = `MATCH (a:Response {id: $src}), (b:Response {id: $dst}) CREATE (a)-[:AGGREGATES]->(b)`
	case EdgeFeeds:
		cypher = `MATCH (a:Response {id: $src}), (b:Response {id: $dst}) CREATE (a)-[:FEEDS]->(b)`
	default:
		return fmt.Errorf("kuzu: unsupported edge kind: %s", edge.Kind)
	}
	return s.exec(cypher, map[string]any{"src": edge.SourceID, "dst": edge.TargetID})
}

// ---------- Read operations ----------

const runColumns = "r.id, r.query_text, r.created_at, r.state, r.final_content, r.error_message"

const responseColumns = "x.id, x.run_id, x.iteration, x.layer_index, x.layer, x.agent, x.position, x.kind, x.content, x.error_message"

// GetRun retrieves a Run node by ID.
func (s *KuzuStore) GetRun(_ context.Context, runID string) (*Run, error) {
	rows, err := s.query(
		"MATCH (r:Run {id: $id}) RETURN "+runColumns,
		map[string]any{"id": runID},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	run := rowToRun(rows[0])
	return &run, nil
}

// ListRuns returns every run, oldest first.
func (s *KuzuStore) ListRuns(_ context.Context) ([]Run, error) {
	rows, err := s.query("MATCH (r:Run) RETURN "+runColumns+" ORDER BY r.created_at, r.id", nil)
	if err != nil {
		return nil, err
	}
	out := make([]Run, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToRun(r))
	}
	return out, nil
}

// Responses returns a run's responses in execution order.
func (s *KuzuStore) Responses(_ context.Context, runID string) ([]Response, error) {
	rows, err := s.query(
		`MATCH (r:Run {id: $run})-[:PRODUCED]->(x:Response)
		 RETURN `+responseColumns+`
		 ORDER BY x.iteration, x.layer_index, x.position`,
		map[string]any{"run": runID},
	)
	if err != nil {
		return nil, err
	}
	return rowsToResponses(rows), nil
}

// Sources returns the responses an aggregate reduced.
func (s *KuzuStore) Sources(_ context.Context, aggregateID string) ([]Response, error) {
	rows, err := s.query(
		`MATCH (a:Response {id: $id})-[:AGGREGATES]->(x:Response)
		 RETURN `+responseColumns+`
		 ORDER BY x.position`,
		map[string]any{"id": aggregateID},
	)
	if err != nil {
		return nil, err
	}
	return rowsToResponses(rows), nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a Cypher statement and collects all rows in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// rowToRun converts a runColumns row.
func rowToRun(r []any) Run {
	return Run{
		ID:        toString(r[0]),
		Query:     toString(r[1]),
		CreatedAt: time.Unix(0, toInt64(r[2])).UTC(),
		State:     toString(r[3]),
		Final:     toString(r[4]),
		Error:     toString(r[5]),
	}
}

// rowsToResponses converts responseColumns rows.
func rowsToResponses(rows [][]any) []Response {
	out := make([]Response, 0, len(rows))
	for _, r := range rows {
		out = append(out, Response{
			ID:         toString(r[0]),
			RunID:      toString(r[1]),
			Iteration:  int(toInt64(r[2])),
			LayerIndex: int(toInt64(r[3])),
			Layer:      toString(r[4]),
			Agent:      toString(r[5]),
			Position:   int(toInt64(r[6])),
			Kind:       ResponseKind(toString(r[7])),
			Content:    toString(r[8]),
			Error:      toString(r[9]),
		})
	}
	return out
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
