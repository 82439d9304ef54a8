package pgvector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/sqlfilter"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

type nodeStore struct {
	db *sql.DB
}

var (
	_ driven.NodeStore                 = (*nodeStore)(nil)
	_ driven.StorageQuery[domain.Node] = (*nodeStore)(nil)
)

const nodeColumns = `id, document_id, position, content, context, is_leaf, depth, parent_id, child_ids, embedding::text, created_at`

var nodeFilterColumns = map[string]string{
	"id":          "id",
	"document_id": "document_id",
	"index":       "position",
	"is_leaf":     "is_leaf",
	"depth":       "depth",
	"parent_id":   "parent_id",
}

// SaveNodes stores a built tree in one transaction.
func (s *nodeStore) SaveNodes(ctx context.Context, nodes []domain.Node) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertNodes(ctx, tx, nodes); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// insertNodes upserts nodes inside tx.
func insertNodes(ctx context.Context, tx *sql.Tx, nodes []domain.Node) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (id, document_id, position, content, context, is_leaf, depth, parent_id, child_ids, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			position = EXCLUDED.position,
			content = EXCLUDED.content,
			context = EXCLUDED.context,
			is_leaf = EXCLUDED.is_leaf,
			depth = EXCLUDED.depth,
			parent_id = EXCLUDED.parent_id,
			child_ids = EXCLUDED.child_ids,
			embedding = EXCLUDED.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range nodes {
		n := &nodes[i]
		childIDs, err := marshalJSON(n.ChildIDs)
		if err != nil {
			return fmt.Errorf("marshalling child ids: %w", err)
		}
		var parentID sql.NullString
		if n.ParentID != nil {
			parentID = sql.NullString{String: *n.ParentID, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, n.ID, n.DocumentID, n.Index, n.Content, n.Context,
			boolToInt(n.IsLeaf), n.Depth, parentID, childIDs, encodeEmbedding(n.Embedding),
			n.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("saving node: %w", err)
		}
	}
	return nil
}

// GetNodes returns a document's nodes, by depth then index.
func (s *nodeStore) GetNodes(ctx context.Context, documentID string) ([]domain.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE document_id = $1 ORDER BY depth, position`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var nodes []domain.Node //nolint:prealloc // size unknown from query
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nodes: %w", err)
	}
	return nodes, nil
}

func (s *nodeStore) DeleteNodes(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("deleting nodes: %w", err)
	}
	return nil
}

// Query ranks nodes by embedding similarity. Composite scoring needs
// recency and importance, which nodes lack.
func (s *nodeStore) Query(ctx context.Context, q domain.ScoringQuery) ([]domain.ScoredRow[domain.Node], error) {
	if q.Kind == domain.ScoringComposite {
		return nil, fmt.Errorf("%w: composite scoring needs recallable entities", domain.ErrInvalidInput)
	}

	b := sqlfilter.NewBuilder(sqlfilter.Postgres.WithoutMetadata(), nodeFilterColumns)
	sim, err := similarityExpr(q.Metric, b.Arg(encodeEmbedding(q.Embedding)))
	if err != nil {
		return nil, err
	}
	b.Where("embedding IS NOT NULL")
	if err := b.Filters(q.Filters); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s, %s AS sim FROM nodes %s ORDER BY sim DESC, depth, position %s`,
		nodeColumns, sim, b.Clause(), limitClause(q.Limit, b.Arg))

	rows, err := s.db.QueryContext(ctx, query, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoredRow[domain.Node] //nolint:prealloc // size unknown from query
	for rows.Next() {
		var score float64
		n, err := scanNode(rows, &score)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ScoredRow[domain.Node]{Entity: n, Similarity: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nodes: %w", err)
	}
	return out, nil
}

func scanNode(row scanner, extra ...any) (domain.Node, error) {
	var n domain.Node
	var isLeaf int
	var parentID, childIDs, embedding sql.NullString

	dest := []any{&n.ID, &n.DocumentID, &n.Index, &n.Content, &n.Context, &isLeaf, &n.Depth,
		&parentID, &childIDs, &embedding, &n.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return n, fmt.Errorf("scanning node: %w", err)
	}

	n.IsLeaf = isLeaf != 0
	n.CreatedAt = n.CreatedAt.UTC()
	if parentID.Valid {
		n.ParentID = &parentID.String
	}
	if err := unmarshalJSON(childIDs, &n.ChildIDs); err != nil {
		return n, fmt.Errorf("unmarshaling child ids: %w", err)
	}
	if embedding.Valid {
		vec, err := decodeEmbedding(embedding.String)
		if err != nil {
			return n, err
		}
		n.Embedding = vec
	}
	return n, nil
}
