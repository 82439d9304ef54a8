package domain

import "time"

// Searchable is an entity the retrieval engine can rank by embedding.
type Searchable interface {
	EntityID() string
	Text() string
	Vector() []float32
}

// Recallable is a Searchable that also carries the attributes needed for
// recency and importance scoring.
type Recallable interface {
	Searchable
	ImportanceScore() int
	LastAccess() time.Time
}

var (
	_ Searchable = Node{}
	_ Recallable = Memory{}
)
