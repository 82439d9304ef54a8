// Package sqlite stores documents, index trees, memories and call logs in a
// single SQLite file using the pure-Go modernc.org/sqlite driver.
//
// Similarity and the generative-agents composite run inside SQLite as scalar
// functions registered with the driver (functions.go), so ordering, filtering
// and limiting happen in one query.
//
// Schema files live in schema/ and are applied in order on open; the .down.sql
// files are kept for manual rollback only.
package sqlite
