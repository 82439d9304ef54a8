package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	pq "github.com/lib/pq"

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/sqlfilter"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// MemoryStore persists memories and evaluates the Generative-Agents score in SQL.
type MemoryStore struct {
	db *sql.DB
}

var (
	_ driven.MemoryStore                 = (*MemoryStore)(nil)
	_ driven.StorageQuery[domain.Memory] = (*MemoryStore)(nil)
	_ driven.AccessToucher               = (*MemoryStore)(nil)
)

const memoryColumns = `id, content, embedding::text, timestamp, last_accessed_at, importance, depth, child_ids, is_shared, metadata::text`

var memoryFilterColumns = map[string]string{
	"id":               "id",
	"timestamp":        "timestamp",
	"last_accessed_at": "last_accessed_at",
	"importance":       "importance",
	"depth":            "depth",
	"is_shared":        "is_shared",
}

// SaveMemory upserts a memory. Zero timestamps default to now.
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, content, embedding, timestamp, last_accessed_at, importance, depth, child_ids, is_shared, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			timestamp = EXCLUDED.timestamp,
			last_accessed_at = EXCLUDED.last_accessed_at,
			importance = EXCLUDED.importance,
			depth = EXCLUDED.depth,
			child_ids = EXCLUDED.child_ids,
			is_shared = EXCLUDED.is_shared,
			metadata = EXCLUDED.metadata
	`, m.ID, m.Content, encodeEmbedding(m.Embedding), unixSeconds(m.Timestamp), unixSeconds(m.LastAccessedAt),
		m.Importance, m.Depth, childIDs, boolToInt(m.IsShared), metadata)
	if err != nil {
		return fmt.Errorf("saving memory: %w", err)
	}
	return nil
}

func (s *MemoryStore) GetMemory(ctx context.Context, id string) (*domain.Memory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = $1`, id)
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
	rows, err := s.db.QueryContext(ctx, `SELECT `+memoryColumns+` FROM memories ORDER BY timestamp DESC, id`)
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

// TouchAccessed sets last_accessed_at for ids.
func (s *MemoryStore) TouchAccessed(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE memories SET last_accessed_at = $1 WHERE id = ANY($2)`, unixSeconds(at), pq.Array(ids)); err != nil {
		return fmt.Errorf("touching memories: %w", err)
	}
	return nil
}

// Query ranks memories by similarity or by the composite of relevance,
// recency and importance.
func (s *MemoryStore) Query(ctx context.Context, q domain.ScoringQuery) ([]domain.ScoredRow[domain.Memory], error) {
	b := sqlfilter.NewBuilder(sqlfilter.Postgres, memoryFilterColumns)
	sim, err := similarityExpr(q.Metric, b.Arg(encodeEmbedding(q.Embedding)))
	if err != nil {
		return nil, err
	}

	composite := q.Kind == domain.ScoringComposite
	if composite && q.Composite == nil {
		return nil, fmt.Errorf("%w: composite query without weights", domain.ErrInvalidInput)
	}

	var query string
	if composite {
		c := q.Composite
		// $n placeholders may be referenced more than once.
		now, halfLife, maxImp := b.Arg(c.NowUnix), b.Arg(c.HalfLifeSeconds), b.Arg(c.MaxImportance)
		wRec, wImp, wRel := b.Arg(c.WeightRecency), b.Arg(c.WeightImportance), b.Arg(c.WeightRelevance)
		b.Where("embedding IS NOT NULL")
		if err := b.Filters(q.Filters); err != nil {
			return nil, err
		}

		recency := fmt.Sprintf(`CASE WHEN %[1]s::float8 - last_accessed_at <= 0 OR %[2]s::float8 <= 0 THEN 1.0
			ELSE POWER(0.5, (%[1]s::float8 - last_accessed_at) / %[2]s::float8) END`, now, halfLife)
		importance := fmt.Sprintf(`CASE WHEN %[1]s::float8 <= 0 THEN 0.0
			ELSE GREATEST(0.0, LEAST(1.0, importance::float8 / %[1]s::float8)) END`, maxImp)

		query = fmt.Sprintf(`
			SELECT %[1]s, sim, rel, rec, imp,
				%[2]s::float8 * rec + %[3]s::float8 * imp + %[4]s::float8 * rel AS composite
			FROM (
				SELECT %[9]s, sim, %[5]s AS rel, %[6]s AS rec, %[7]s AS imp
				FROM (
					SELECT %[9]s, %[8]s AS sim FROM memories %[10]s
				) AS similar
			) AS scored
			ORDER BY composite DESC, id
			%[11]s`,
			scoredMemoryColumns, wRec, wImp, wRel, relevanceExpr(q.Metric, "sim"), recency, importance,
			sim, rawMemoryColumns, b.Clause(), limitClause(q.Limit, b.Arg))
	} else {
		b.Where("embedding IS NOT NULL")
		if err := b.Filters(q.Filters); err != nil {
			return nil, err
		}
		query = fmt.Sprintf(`SELECT %s, %s AS sim FROM memories %s ORDER BY sim DESC, id %s`,
			memoryColumns, sim, b.Clause(), limitClause(q.Limit, b.Arg))
	}

	return s.scoredRows(ctx, query, b.Args(), composite)
}

// rawMemoryColumns are carried through the composite subqueries; the
// outermost select renders them with scoredMemoryColumns.
const (
	rawMemoryColumns    = `id, content, embedding, timestamp, last_accessed_at, importance, depth, child_ids, is_shared, metadata`
	scoredMemoryColumns = `id, content, embedding::text AS embedding, timestamp, last_accessed_at, importance, depth, child_ids, is_shared, metadata::text AS metadata`
)

func (s *MemoryStore) scoredRows(ctx context.Context, query string, args []any, composite bool) ([]domain.ScoredRow[domain.Memory], error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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

func scanMemory(row scanner, extra ...any) (domain.Memory, error) {
	var m domain.Memory
	var ts, accessed float64
	var isShared int
	var embedding, childIDs, metadata sql.NullString

	dest := []any{&m.ID, &m.Content, &embedding, &ts, &accessed, &m.Importance, &m.Depth,
		&childIDs, &isShared, &metadata}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return m, err
		}
		return m, fmt.Errorf("scanning memory: %w", err)
	}

	if embedding.Valid {
		vec, err := decodeEmbedding(embedding.String)
		if err != nil {
			return m, err
		}
		m.Embedding = vec
	}
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
