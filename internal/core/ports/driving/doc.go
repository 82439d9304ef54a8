// Package driving declares what the CLI may ask of the core: ingesting and
// indexing documents, writing memories, searching, and reading or changing
// settings. internal/core/services implements each interface.
package driving
