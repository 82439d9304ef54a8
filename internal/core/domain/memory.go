package domain

import "time"

// MaxImportance is the upper bound of a stored memory importance.
const MaxImportance = 9

// Memory is an observation or reflection recorded for an agent.
// Memories are created outside the retrieval engine; retrieval may bump
// LastAccessedAt when the caller asks for it.
type Memory struct {
	// ID is the unique identifier for the memory.
	ID string

	// Content is the memory text.
	Content string

	// Embedding is the passage vector for Content.
	Embedding []float32

	// Timestamp is when the memory was created.
	Timestamp time.Time

	// LastAccessedAt is when the memory was last retrieved.
	LastAccessedAt time.Time

	// Importance is a rating in [0, MaxImportance].
	Importance int

	// Depth is 0 for observations and >0 for reflections built from other memories.
	Depth int

	// ChildIDs lists the memories a reflection was built from.
	ChildIDs []string

	// IsShared marks memories visible beyond their owner.
	IsShared bool

	// Metadata holds owner and scope attributes used by filters.
	Metadata map[string]any
}

// EntityID implements Searchable.
func (m Memory) EntityID() string { return m.ID }

// Text implements Searchable.
func (m Memory) Text() string { return m.Content }

// Vector implements Searchable.
func (m Memory) Vector() []float32 { return m.Embedding }

// ImportanceScore implements Recallable.
func (m Memory) ImportanceScore() int { return m.Importance }

// LastAccess implements Recallable.
func (m Memory) LastAccess() time.Time { return m.LastAccessedAt }
