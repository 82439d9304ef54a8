package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// DocumentType classifies the content of a document.
type DocumentType string

// Known document types.
const (
	// DocumentTypeText is plain prose.
	DocumentTypeText DocumentType = "text"

	// DocumentTypeMarkdown is markdown formatted text.
	DocumentTypeMarkdown DocumentType = "markdown"

	// DocumentTypeTranscript is a conversation or meeting transcript.
	DocumentTypeTranscript DocumentType = "transcript"
)

// Document is a unit of input text to be indexed.
// A document is immutable once created; Hash identifies its content.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Title is the human-readable title.
	Title string

	// Type classifies the content.
	Type DocumentType

	// Content is the full text content.
	Content string

	// Hash is the SHA-256 of Type and Content, used to deduplicate re-ingestion.
	Hash string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time
}

// NewDocument creates a document and derives its content hash.
func NewDocument(id, title string, docType DocumentType, content string) Document {
	if docType == "" {
		docType = DocumentTypeText
	}
	return Document{
		ID:        id,
		Title:     title,
		Type:      docType,
		Content:   content,
		Hash:      HashContent(docType, content),
		Metadata:  make(map[string]any),
		CreatedAt: time.Now().UTC(),
	}
}

// HashContent returns the hex SHA-256 of a document's type and content.
func HashContent(docType DocumentType, content string) string {
	h := sha256.New()
	h.Write([]byte(docType))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

// RawDocument is file content before normalisation.
type RawDocument struct {
	// ID becomes the document ID.
	ID string

	// Path is the source file path. Its extension selects the normaliser.
	Path string

	Content  []byte
	Metadata map[string]any
}
