// Package domain holds recall's entities and errors: documents and the index
// nodes built over them, agent memories, search parameters with their
// storage pushdown (ScoringQuery), and the ranked result types each retrieval
// strategy returns.
//
// It imports only the standard library; every other package depends on it.
package domain
