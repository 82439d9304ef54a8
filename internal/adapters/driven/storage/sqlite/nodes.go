package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/sqlfilter"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// nodeStore implements driven.NodeStore and driven.StorageQuery[domain.Node].
type nodeStore struct {
	store *Store
}

var (
	_ driven.NodeStore                 = (*nodeStore)(nil)
	_ driven.StorageQuery[domain.Node] = (*nodeStore)(nil)
)

const nodeColumns = `id, document_id, position, content, context, is_leaf, depth, parent_id, child_ids, embedding, created_at`

// nodeFilterColumns are the node fields callers may filter on.
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
	tx, err := s.store.db.BeginTx(ctx, nil)
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
		INSERT INTO nodes (`+nodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			position = excluded.position,
			content = excluded.content,
			context = excluded.context,
			is_leaf = excluded.is_leaf,
			depth = excluded.depth,
			parent_id = excluded.parent_id,
			child_ids = excluded.child_ids,
			embedding = excluded.embedding
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
			boolToInt(n.IsLeaf), n.Depth, parentID, childIDs,
			encodeVector(n.Embedding), n.CreatedAt); err != nil {
			return fmt.Errorf("saving node %s: %w", n.ID, err)
		}
	}
	return nil
}

// GetNodes returns a document's nodes, by depth then index.
func (s *nodeStore) GetNodes(ctx context.Context, documentID string) ([]domain.Node, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+nodeColumns+` FROM nodes
		WHERE document_id = ?
		ORDER BY depth, position
	`, documentID)
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

// DeleteNodes removes a document's tree.
func (s *nodeStore) DeleteNodes(ctx context.Context, documentID string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM nodes WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting nodes: %w", err)
	}
	return nil
}

// Query scores nodes by embedding similarity inside SQLite. Nodes carry no
// recency or importance, so composite queries are rejected.
func (s *nodeStore) Query(ctx context.Context, q domain.ScoringQuery) ([]domain.ScoredRow[domain.Node], error) {
	if q.Kind == domain.ScoringComposite {
		return nil, fmt.Errorf("%w: composite scoring needs recallable entities", domain.ErrInvalidInput)
	}
	fn, err := similarityFunc(q.Metric)
	if err != nil {
		return nil, err
	}

	b := sqlfilter.NewBuilder(sqlfilter.SQLite.WithoutMetadata(), nodeFilterColumns)
	simExpr := fmt.Sprintf("%s(embedding, %s)", fn, b.Arg(encodeVector(q.Embedding)))
	b.Where("embedding IS NOT NULL")
	if err := b.Filters(q.Filters); err != nil {
		return nil, err
	}
	limit := b.Arg(sqlLimit(q.Limit))

	query := fmt.Sprintf(`SELECT %s, %s AS sim FROM nodes %s ORDER BY sim DESC, depth, position LIMIT %s`,
		nodeColumns, simExpr, b.Clause(), limit)

	rows, err := s.store.db.QueryContext(ctx, query, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoredRow[domain.Node] //nolint:prealloc // size unknown from query
	for rows.Next() {
		var sim float64
		n, err := scanNode(rows, &sim)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ScoredRow[domain.Node]{Entity: n, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nodes: %w", err)
	}
	return out, nil
}

// scanNode scans nodeColumns followed by any extra destinations.
func scanNode(row scanner, extra ...any) (domain.Node, error) {
	var n domain.Node
	var isLeaf int
	var parentID, childIDs sql.NullString
	var embedding []byte

	dest := []any{&n.ID, &n.DocumentID, &n.Index, &n.Content, &n.Context, &isLeaf, &n.Depth,
		&parentID, &childIDs, &embedding, &n.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return n, fmt.Errorf("scanning node: %w", err)
	}

	n.IsLeaf = isLeaf != 0
	if parentID.Valid {
		n.ParentID = &parentID.String
	}
	if err := unmarshalJSON(childIDs, &n.ChildIDs); err != nil {
		return n, fmt.Errorf("unmarshaling child ids: %w", err)
	}
	n.Embedding = decodeVector(embedding)
	return n, nil
}
