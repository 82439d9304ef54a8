package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

type documentStore struct {
	db *sql.DB
}

var _ driven.DocumentStore = (*documentStore)(nil)

const (
	documentColumns = `id, title, type, content, hash, metadata, created_at`

	upsertDocument = `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			type = EXCLUDED.type,
			content = EXCLUDED.content,
			hash = EXCLUDED.hash,
			metadata = EXCLUDED.metadata`
)

// SaveDocument upserts a document. A second document with an existing hash
// is domain.ErrAlreadyExists.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return domain.ErrInvalidInput
	}
	metadata, err := marshalJSON(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, upsertDocument, doc.ID, doc.Title, string(doc.Type), doc.Content, doc.Hash, metadata, doc.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("saving document: %w", domain.ErrAlreadyExists)
		}
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// ReplaceDocument drops any previous row for doc.ID, cascading to its nodes,
// and writes doc with its new tree in the same transaction.
func (s *documentStore) ReplaceDocument(ctx context.Context, doc *domain.Document, nodes []domain.Node) error {
	if doc == nil {
		return domain.ErrInvalidInput
	}
	metadata, err := marshalJSON(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, doc.ID); err != nil {
		return fmt.Errorf("deleting previous document: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertDocument, doc.ID, doc.Title, string(doc.Type), doc.Content,
		doc.Hash, metadata, doc.CreatedAt.UTC()); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("saving document: %w", domain.ErrAlreadyExists)
		}
		return fmt.Errorf("saving document: %w", err)
	}
	if err := insertNodes(ctx, tx, nodes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
}

func (s *documentStore) GetDocumentByHash(ctx context.Context, hash string) (*domain.Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE hash = $1`, hash))
}

// DeleteDocument removes a document and, through the foreign key, its nodes.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

func scanDocument(row scanner) (*domain.Document, error) {
	var doc domain.Document
	var docType string
	var metadata sql.NullString

	if err := row.Scan(&doc.ID, &doc.Title, &docType, &doc.Content, &doc.Hash, &metadata, &doc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.Type = domain.DocumentType(docType)
	doc.CreatedAt = doc.CreatedAt.UTC()
	if err := unmarshalJSON(metadata, &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	return &doc, nil
}

type callLogStore struct {
	db *sql.DB
}

var _ driven.CallLogStore = (*callLogStore)(nil)

// DefaultCallListLimit applies when List is called with a non-positive limit.
const DefaultCallListLimit = 50

func (s *callLogStore) Record(ctx context.Context, rec *domain.CallRecord) error {
	if rec == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_logs (id, operation, model, prompt, response, status, error, attempts,
			prompt_tokens, completion_tokens, total_tokens, finish_reason, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, rec.ID, rec.Operation, rec.Model, rec.Prompt, rec.Response, string(rec.Status), rec.Error,
		rec.Attempts, rec.Usage.PromptTokens, rec.Usage.CompletionTokens, rec.Usage.TotalTokens,
		rec.FinishReason, rec.StartedAt.UTC(), rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("recording call: %w", err)
	}
	return nil
}

// List returns the most recent records first.
func (s *callLogStore) List(ctx context.Context, limit int) ([]domain.CallRecord, error) {
	if limit <= 0 {
		limit = DefaultCallListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation, model, prompt, response, status, error, attempts,
			prompt_tokens, completion_tokens, total_tokens, finish_reason, started_at, duration_ms
		FROM call_logs
		ORDER BY started_at DESC, seq DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying calls: %w", err)
	}
	defer rows.Close()

	var out []domain.CallRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var rec domain.CallRecord
		var status string
		var durationMs int64
		if err := rows.Scan(&rec.ID, &rec.Operation, &rec.Model, &rec.Prompt, &rec.Response, &status,
			&rec.Error, &rec.Attempts, &rec.Usage.PromptTokens, &rec.Usage.CompletionTokens,
			&rec.Usage.TotalTokens, &rec.FinishReason, &rec.StartedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("scanning call: %w", err)
		}
		rec.Status = domain.CallStatus(status)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating calls: %w", err)
	}
	return out, nil
}
