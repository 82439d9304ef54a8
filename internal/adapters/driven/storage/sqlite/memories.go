package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/sqlfilter"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// MemoryStore persists memories and scores them inside SQLite.
type MemoryStore struct {
	store *Store
}

var (
	_ driven.MemoryStore                 = (*MemoryStore)(nil)
	_ driven.StorageQuery[domain.Memory] = (*MemoryStore)(nil)
	_ driven.AccessToucher               = (*MemoryStore)(nil)
)

const memoryColumns = `id, content, embedding, timestamp, last_accessed_at, importance, depth, child_ids, is_shared, metadata`

// memoryFilterColumns are the memory fields callers may filter on.
// Any other field is looked up in metadata.
var memoryFilterColumns = map[string]string{
	"id":               "id",
	"timestamp":        "timestamp",
	"last_accessed_at": "last_accessed_at",
	"importance":       "importance",
	"depth":            "depth",
	"is_shared":        "is_shared",
}

// SaveMemory stores or updates a memory. Zero timestamps default to now.
func (s *MemoryStore) SaveMemory(ctx context.Context, m *domain.Memory) error {
	if m == nil {
		return domain.ErrInvalidInput
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if m.LastAccessedAt.IsZero() {
		m.LastAccessedAt = m.Timestamp
	}

	childIDs, err := marshalJSON(m.ChildIDs)
	if err != nil {
		return fmt.Errorf("marshalling child ids: %w", err)
	}
	metadata, err := marshalJSON(m.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO memories (`+memoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			embedding = excluded.embedding,
			timestamp = excluded.timestamp,
			last_accessed_at = excluded.last_accessed_at,
			importance = excluded.importance,
			depth = excluded.depth,
			child_ids = excluded.child_ids,
			is_shared = excluded.is_shared,
			metadata = excluded.metadata
	`, m.ID, m.Content, encodeVector(m.Embedding), unixSeconds(m.Timestamp),
		unixSeconds(m.LastAccessedAt), m.Importance, m.Depth, childIDs, boolToInt(m.IsShared), metadata)
	if err != nil {
		return fmt.Errorf("saving memory: %w", err)
	}
	return nil
}

// GetMemory retrieves a memory by ID.
func (s *MemoryStore) GetMemory(ctx context.Context, id string) (*domain.Memory, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMemories returns every memory, newest first.
func (s *MemoryStore) ListMemories(ctx context.Context) ([]domain.Memory, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT `+memoryColumns+` FROM memories ORDER BY timestamp DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying memories: %w", err)
	}
	defer rows.Close()

	var out []domain.Memory //nolint:prealloc // size unknown from query
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating memories: %w", err)
	}
	return out, nil
}

// TouchAccessed sets LastAccessedAt for ids.
func (s *MemoryStore) TouchAccessed(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{unixSeconds(at)}, stringArgs(ids)...)
	_, err := s.store.db.ExecContext(ctx,
		`UPDATE memories SET last_accessed_at = ? WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return fmt.Errorf("touching memories: %w", err)
	}
	return nil
}

// Query scores memories inside SQLite, by similarity or by the
// Generative-Agents composite, and returns them best-first.
func (s *MemoryStore) Query(ctx context.Context, q domain.ScoringQuery) ([]domain.ScoredRow[domain.Memory], error) {
	fn, err := similarityFunc(q.Metric)
	if err != nil {
		return nil, err
	}

	switch q.Kind {
	case domain.ScoringComposite:
		if q.Composite == nil {
			return nil, fmt.Errorf("%w: composite query without weights", domain.ErrInvalidInput)
		}
		return s.queryComposite(ctx, fn, q)
	default:
		return s.querySimilarity(ctx, fn, q)
	}
}

func (s *MemoryStore) querySimilarity(ctx context.Context, fn string, q domain.ScoringQuery) ([]domain.ScoredRow[domain.Memory], error) {
	b := sqlfilter.NewBuilder(sqlfilter.SQLite, memoryFilterColumns)
	simExpr := fmt.Sprintf("%s(embedding, %s)", fn, b.Arg(encodeVector(q.Embedding)))
	b.Where("embedding IS NOT NULL")
	if err := b.Filters(q.Filters); err != nil {
		return nil, err
	}
	limit := b.Arg(sqlLimit(q.Limit))

	query := fmt.Sprintf(`SELECT %s, %s AS sim FROM memories %s ORDER BY sim DESC, id LIMIT %s`,
		memoryColumns, simExpr, b.Clause(), limit)

	return s.scoredRows(ctx, query, b.Args(), false)
}

func (s *MemoryStore) queryComposite(ctx context.Context, fn string, q domain.ScoringQuery) ([]domain.ScoredRow[domain.Memory], error) {
	c := q.Composite
	b := sqlfilter.NewBuilder(sqlfilter.SQLite, memoryFilterColumns)

	// Placeholders bind positionally, so arguments are added in text order.
	composite := fmt.Sprintf("recall_composite(%s, %s, %s, rec, imp, rel)",
		b.Arg(c.WeightRecency), b.Arg(c.WeightImportance), b.Arg(c.WeightRelevance))
	subScores := fmt.Sprintf(
		"recall_relevance(%s, sim) AS rel, recall_recency(%s - last_accessed_at, %s) AS rec, recall_importance(importance, %s) AS imp",
		b.Arg(string(q.Metric)), b.Arg(c.NowUnix), b.Arg(c.HalfLifeSeconds), b.Arg(c.MaxImportance))
	simExpr := fmt.Sprintf("%s(embedding, %s)", fn, b.Arg(encodeVector(q.Embedding)))
	b.Where("embedding IS NOT NULL")
	if err := b.Filters(q.Filters); err != nil {
		return nil, err
	}
	limit := b.Arg(sqlLimit(q.Limit))

	query := fmt.Sprintf(`
		SELECT %[1]s, sim, rel, rec, imp, %[2]s AS composite FROM (
			SELECT %[1]s, sim, %[3]s FROM (
				SELECT %[1]s, %[4]s AS sim FROM memories %[5]s
			)
		)
		ORDER BY composite DESC, id
		LIMIT %[6]s`,
		memoryColumns, composite, subScores, simExpr, b.Clause(), limit)

	return s.scoredRows(ctx, query, b.Args(), true)
}

// scoredRows runs query and scans memoryColumns followed by sim and, for
// composite queries, rel, rec, imp and composite.
func (s *MemoryStore) scoredRows(ctx context.Context, query string, args []any, composite bool) ([]domain.ScoredRow[domain.Memory], error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying memories: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoredRow[domain.Memory] //nolint:prealloc // size unknown from query
	for rows.Next() {
		var row domain.ScoredRow[domain.Memory]
		extra := []any{&row.Similarity}
		if composite {
			extra = append(extra, &row.Relevance, &row.Recency, &row.Importance, &row.Composite)
		}
		m, err := scanMemory(rows, extra...)
		if err != nil {
			return nil, err
		}
		row.Entity = m
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating memories: %w", err)
	}
	return out, nil
}

// scanMemory scans memoryColumns followed by any extra destinations.
func scanMemory(row scanner, extra ...any) (domain.Memory, error) {
	var m domain.Memory
	var embedding []byte
	var ts, accessed float64
	var isShared int
	var childIDs, metadata sql.NullString

	dest := []any{&m.ID, &m.Content, &embedding, &ts, &accessed, &m.Importance, &m.Depth,
		&childIDs, &isShared, &metadata}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return m, err
		}
		return m, fmt.Errorf("scanning memory: %w", err)
	}

	m.Embedding = decodeVector(embedding)
	m.Timestamp = fromUnixSeconds(ts)
	m.LastAccessedAt = fromUnixSeconds(accessed)
	m.IsShared = isShared != 0
	if err := unmarshalJSON(childIDs, &m.ChildIDs); err != nil {
		return m, fmt.Errorf("unmarshaling child ids: %w", err)
	}
	if err := unmarshalJSON(metadata, &m.Metadata); err != nil {
		return m, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	return m, nil
}
