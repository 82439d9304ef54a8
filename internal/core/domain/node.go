package domain

import "time"

// Node is a contiguous span of document text positioned in the index tree.
// Leaves (depth 0) come straight from segmentation; every other node holds an
// LLM summary of the concatenation of its children, in index order.
type Node struct {
	// ID is the unique identifier for the node.
	ID string

	// DocumentID links to the Document the tree was built from.
	DocumentID string

	// Index is the ordinal position within the node's level.
	Index int

	// Content is the segment text (leaves) or the summary (parents).
	Content string

	// Context is the rolling summary of everything before this node.
	// Empty unless the build ran with rolling context enabled.
	Context string

	// IsLeaf is true for segmentation output. IsLeaf holds iff Depth == 0.
	IsLeaf bool

	// Depth is the tree level, 0 for leaves.
	Depth int

	// ParentID is nil for the root.
	ParentID *string

	// ChildIDs lists children in index order. Empty for leaves.
	ChildIDs []string

	// Embedding is the passage vector, set at ingestion.
	Embedding []float32

	// CreatedAt is when the node was built.
	CreatedAt time.Time
}

// EntityID implements Searchable.
func (n Node) EntityID() string { return n.ID }

// Text implements Searchable.
func (n Node) Text() string { return n.Content }

// Vector implements Searchable.
func (n Node) Vector() []float32 { return n.Embedding }

// IsRoot returns true if the node has no parent.
func (n Node) IsRoot() bool { return n.ParentID == nil }
