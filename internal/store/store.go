package store

import (
	"database/sql"

	_ "github.com/duckdb/duckdb-go/v2"
)

// NewDB opens the DuckDB database at path; use ":memory:" for an ephemeral
// database in tests.
func NewDB(path string) (*sql.DB, error) {
	if path == ":memory:" {
		path = ""
	}
	return sql.Open("duckdb", path)
}

// Store provides access to all storage repositories.
type Store struct {
	db      *sql.DB
	history *HistoryStore
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:      db,
		history: NewHistoryStore(db),
	}
}

func (s *Store) History() *HistoryStore {
	return s.history
}

func (s *Store) Close() error {
	return s.db.Close()
}
