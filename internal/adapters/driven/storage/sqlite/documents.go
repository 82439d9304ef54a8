package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

var _ driven.DocumentStore = (*documentStore)(nil)

type documentStore struct {
	store *Store
}

const (
	documentColumns = `id, title, type, content, hash, metadata, created_at`

	upsertDocument = `INSERT INTO documents (` + documentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title, type = excluded.type, content = excluded.content,
	hash = excluded.hash, metadata = excluded.metadata`
)

// SaveDocument keeps the original created_at when an ID is re-saved.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return domain.ErrInvalidInput
	}
	meta, err := marshalJSON(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata for %s: %w", doc.ID, err)
	}
	_, err = s.store.db.ExecContext(ctx, upsertDocument,
		doc.ID, doc.Title, string(doc.Type), doc.Content, doc.Hash, meta, doc.CreatedAt)
	switch {
	case err == nil:
		return nil
	case strings.Contains(err.Error(), "UNIQUE constraint failed: documents.hash"):
		return fmt.Errorf("save document %s: %w", doc.ID, domain.ErrAlreadyExists)
	default:
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}
}

// ReplaceDocument swaps doc and its tree in one transaction. The previous
// row, and through the cascade its nodes, survive any failure.
func (s *documentStore) ReplaceDocument(ctx context.Context, doc *domain.Document, nodes []domain.Node) error {
	if doc == nil {
		return domain.ErrInvalidInput
	}
	meta, err := marshalJSON(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata for %s: %w", doc.ID, err)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, doc.ID); err != nil {
		return fmt.Errorf("drop previous %s: %w", doc.ID, err)
	}
	_, err = tx.ExecContext(ctx, upsertDocument,
		doc.ID, doc.Title, string(doc.Type), doc.Content, doc.Hash, meta, doc.CreatedAt)
	switch {
	case err == nil:
	case strings.Contains(err.Error(), "UNIQUE constraint failed: documents.hash"):
		return fmt.Errorf("save document %s: %w", doc.ID, domain.ErrAlreadyExists)
	default:
		return fmt.Errorf("save document %s: %w", doc.ID, err)
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
	return s.one(ctx, "id", id)
}

func (s *documentStore) GetDocumentByHash(ctx context.Context, hash string) (*domain.Document, error) {
	return s.one(ctx, "hash", hash)
}

// DeleteDocument relies on ON DELETE CASCADE to drop the node tree.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// one looks a document up by a unique column.
func (s *documentStore) one(ctx context.Context, column, value string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE `+column+` = ?`, value)
	return scanDocument(row)
}

// scanner is *sql.Row or *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.Document, error) {
	var (
		doc  domain.Document
		typ  string
		meta sql.NullString
	)
	err := row.Scan(&doc.ID, &doc.Title, &typ, &doc.Content, &doc.Hash, &meta, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.Type = domain.DocumentType(typ)
	if err := unmarshalJSON(meta, &doc.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", doc.ID, err)
	}
	return &doc, nil
}
