// Package pgvector provides PostgreSQL storage with the pgvector extension.
// Similarity and composite scores are computed by the database with the
// <=>, <#> and <-> distance operators.
package pgvector

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	pq "github.com/lib/pq" // PostgreSQL driver

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// Config contains configuration for the pgvector store.
type Config struct {
	// DSN is the PostgreSQL connection string.
	// If empty, DB must be provided.
	DSN string

	// DB is an existing database connection to reuse.
	// If provided, DSN is ignored and the store will not close the connection.
	DB *sql.DB

	// RunMigrations controls whether to apply embedded migrations on startup.
	RunMigrations bool
}

// Store exposes the storage ports over one PostgreSQL database.
type Store struct {
	db     *sql.DB
	ownsDB bool
}

// New opens a pgvector store.
func New(cfg Config) (*Store, error) {
	var db *sql.DB
	var ownsDB bool

	switch {
	case cfg.DB != nil:
		db = cfg.DB
	case cfg.DSN != "":
		var err error
		db, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		ownsDB = true

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	default:
		return nil, domain.NewConfigurationError("storage.dsn", "either DSN or DB must be provided")
	}

	s := &Store{db: db, ownsDB: ownsDB}
	if cfg.RunMigrations {
		if err := s.runMigrations(context.Background()); err != nil {
			if ownsDB {
				db.Close()
			}
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return s, nil
}

// Close releases the connection when the store opened it.
func (s *Store) Close() error {
	if s.ownsDB && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{db: s.db}
}

// NodeStore returns a NodeStore interface backed by this store.
func (s *Store) NodeStore() driven.NodeStore {
	return &nodeStore{db: s.db}
}

// Nodes returns the scoring query over index nodes.
func (s *Store) Nodes() driven.StorageQuery[domain.Node] {
	return &nodeStore{db: s.db}
}

// Memories returns the memory store, which also serves scoring queries and access touches.
func (s *Store) Memories() *MemoryStore {
	return &MemoryStore{db: s.db}
}

// CallLogStore returns a CallLogStore interface backed by this store.
func (s *Store) CallLogStore() driven.CallLogStore {
	return &callLogStore{db: s.db}
}

// runMigrations applies pending migrations, each in its own transaction.
func (s *Store) runMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS recall_schema_migrations (
			id TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("create recall_schema_migrations: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.ID] {
			continue
		}
		if strings.TrimSpace(m.UpSQL) == "" {
			return fmt.Errorf("missing up migration for %s", m.ID)
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.ID, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return fmt.Errorf("apply migration %s: %w", m.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO recall_schema_migrations (id) VALUES ($1)`, m.ID); err != nil {
		return fmt.Errorf("record migration %s: %w", m.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.ID, err)
	}
	return nil
}

func (s *Store) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM recall_schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query recall_schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan recall_schema_migrations: %w", err)
		}
		applied[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recall_schema_migrations: %w", err)
	}
	return applied, nil
}

// migration is one embedded schema change.
type migration struct {
	ID      string
	UpSQL   string
	DownSQL string
}

func loadMigrations() ([]migration, error) {
	paths, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	entries := map[string]*migration{}
	for _, path := range paths {
		base := strings.TrimPrefix(path, "migrations/")
		var suffix string
		switch {
		case strings.HasSuffix(base, ".up.sql"):
			suffix = ".up.sql"
		case strings.HasSuffix(base, ".down.sql"):
			suffix = ".down.sql"
		default:
			continue
		}
		id := strings.TrimSuffix(base, suffix)
		entry := entries[id]
		if entry == nil {
			entry = &migration{ID: id}
			entries[id] = entry
		}
		data, err := migrationsFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", path, err)
		}
		if suffix == ".up.sql" {
			entry.UpSQL = string(data)
		} else {
			entry.DownSQL = string(data)
		}
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]migration, 0, len(ids))
	for _, id := range ids {
		out = append(out, *entries[id])
	}
	return out, nil
}

// similarityExpr returns an expression over the embedding column, oriented so
// that larger is better, comparing against the vector bound at placeholder.
func similarityExpr(m domain.Metric, placeholder string) (string, error) {
	switch m {
	case domain.MetricCosine:
		return fmt.Sprintf("(1 - (embedding <=> %s::vector))", placeholder), nil
	case domain.MetricInnerProduct:
		// <#> returns the negative inner product.
		return fmt.Sprintf("(-(embedding <#> %s::vector))", placeholder), nil
	case domain.MetricEuclidean:
		return fmt.Sprintf("(-(embedding <-> %s::vector))", placeholder), nil
	default:
		return "", fmt.Errorf("%w: metric %q", domain.ErrUnsupportedType, m)
	}
}

// relevanceExpr maps a similarity column into [0, 1].
func relevanceExpr(m domain.Metric, sim string) string {
	if m == domain.MetricEuclidean {
		return fmt.Sprintf("(1.0 / (1.0 + ABS(%s)))", sim)
	}
	return fmt.Sprintf("GREATEST(0.0, LEAST(1.0, (%s + 1.0) / 2.0))", sim)
}

// limitClause returns "LIMIT $n", or nothing for an unlimited query.
func limitClause(limit int, arg func(any) string) string {
	if limit <= 0 {
		return ""
	}
	return "LIMIT " + arg(limit)
}

// encodeEmbedding converts []float32 to pgvector text format: [0.1,0.2,...]
func encodeEmbedding(embedding []float32) sql.NullString {
	if len(embedding) == 0 {
		return sql.NullString{}
	}

	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sql.NullString{String: sb.String(), Valid: true}
}

// decodeEmbedding converts pgvector text format back to []float32.
func decodeEmbedding(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding: %w", err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// marshalJSON encodes v, storing nil maps and slices as NULL.
func marshalJSON(v any) (sql.NullString, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	if string(data) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalJSON(col sql.NullString, v any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), v)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(v float64) time.Time {
	sec := int64(v)
	nsec := int64((v - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
