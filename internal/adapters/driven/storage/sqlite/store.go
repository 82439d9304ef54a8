package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// dbFile is the database name inside the data directory.
const dbFile = "recall.db"

// pragmas apply to every pooled connection.
const pragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// Store owns one SQLite database. The typed accessors share its handle.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) dataDir/recall.db and brings its
// schema up to date. An empty dataDir means ~/.recall/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".recall", "data")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	path := filepath.Join(dataDir, dbFile)
	db, err := sql.Open("sqlite", path+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Path is the database file.
func (s *Store) Path() string { return s.path }

func (s *Store) DocumentStore() driven.DocumentStore { return &documentStore{store: s} }

func (s *Store) NodeStore() driven.NodeStore { return &nodeStore{store: s} }

// Nodes serves scoring queries over index nodes.
func (s *Store) Nodes() driven.StorageQuery[domain.Node] { return &nodeStore{store: s} }

// Memories serves memory writes, scoring queries and access touches.
func (s *Store) Memories() *MemoryStore { return &MemoryStore{store: s} }

func (s *Store) CallLogStore() driven.CallLogStore { return &callLogStore{store: s} }
