package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

//go:embed schema/*.up.sql
var schemaFS embed.FS

// step is one numbered schema file, e.g. schema/001_initial.up.sql.
type step struct {
	version int
	name    string
}

// migrate applies every schema step newer than the recorded version, each in
// its own transaction.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	steps, err := pendingSteps(schemaFS, current)
	if err != nil {
		return err
	}
	for _, st := range steps {
		body, err := fs.ReadFile(schemaFS, st.name)
		if err != nil {
			return err
		}
		if err := applyStep(db, st.version, string(body)); err != nil {
			return fmt.Errorf("%s: %w", st.name, err)
		}
	}
	return nil
}

// pendingSteps lists schema files above current, oldest first. Files without
// a numeric prefix are ignored.
func pendingSteps(fsys fs.FS, current int) ([]step, error) {
	names, err := fs.Glob(fsys, "schema/*.up.sql")
	if err != nil {
		return nil, err
	}
	var steps []step
	for _, name := range names {
		prefix, _, ok := strings.Cut(strings.TrimPrefix(name, "schema/"), "_")
		if !ok {
			continue
		}
		v, err := strconv.Atoi(prefix)
		if err != nil || v <= current {
			continue
		}
		steps = append(steps, step{version: v, name: name})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}

func applyStep(db *sql.DB, version int, body string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(body); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
		return err
	}
	return tx.Commit()
}
