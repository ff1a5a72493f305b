package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for codegraph's 7 tables.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
// Use ":memory:" for a throwaway in-memory store.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Reset deletes all rows from every table. A build replaces the previous
// graph wholesale, so Reset runs at the start of each build.
func (s *Store) Reset() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("reset: begin: %w", err)
	}
	defer tx.Rollback()

	// Reverse-dependency order for FK constraints.
	for _, table := range []string{
		"diagnostics", "reexports", "call_graph", "call_sites",
		"import_bindings", "symbols", "files",
	} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return tx.Commit()
}

const schemaDDL = `
-- Extraction tables

CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  module          TEXT NOT NULL,
  language        TEXT NOT NULL,
  hash            TEXT,
  status          TEXT NOT NULL DEFAULT 'ok',
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS symbols (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER REFERENCES files(id),
  name            TEXT NOT NULL,
  fq_name         TEXT NOT NULL,
  kind            TEXT NOT NULL,
  doc             TEXT,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER,
  parent_symbol_id INTEGER REFERENCES symbols(id)
);

CREATE TABLE IF NOT EXISTS import_bindings (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  source          TEXT NOT NULL,
  imported_name   TEXT,
  local_alias     TEXT,
  line            INTEGER,
  col             INTEGER,
  target_symbol_id INTEGER REFERENCES symbols(id),
  state           TEXT NOT NULL DEFAULT 'unresolved'
);

CREATE TABLE IF NOT EXISTS call_sites (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  caller_symbol_id INTEGER NOT NULL REFERENCES symbols(id),
  callee_text     TEXT NOT NULL,
  receiver        TEXT,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER,
  callee_symbol_id INTEGER REFERENCES symbols(id),
  resolution      TEXT NOT NULL DEFAULT 'unresolved'
);

-- Resolution tables

CREATE TABLE IF NOT EXISTS call_graph (
  id              INTEGER PRIMARY KEY,
  caller_symbol_id INTEGER NOT NULL REFERENCES symbols(id),
  callee_symbol_id INTEGER NOT NULL REFERENCES symbols(id),
  call_site_id    INTEGER NOT NULL REFERENCES call_sites(id),
  file_id         INTEGER REFERENCES files(id),
  line            INTEGER,
  col             INTEGER
);

CREATE TABLE IF NOT EXISTS reexports (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  exported_name   TEXT NOT NULL,
  original_symbol_id INTEGER NOT NULL REFERENCES symbols(id)
);

-- Diagnostics channel (ordered, separate from graph output)

CREATE TABLE IF NOT EXISTS diagnostics (
  id              INTEGER PRIMARY KEY,
  seq             INTEGER NOT NULL,
  severity        TEXT NOT NULL,
  category        TEXT NOT NULL,
  path            TEXT,
  line            INTEGER,
  col             INTEGER,
  message         TEXT NOT NULL
);

-- Indexes

CREATE INDEX IF NOT EXISTS idx_files_module ON files(module);
CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_fq_name ON symbols(fq_name);
CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);
CREATE INDEX IF NOT EXISTS idx_symbols_parent ON symbols(parent_symbol_id);
CREATE INDEX IF NOT EXISTS idx_import_bindings_file ON import_bindings(file_id);
CREATE INDEX IF NOT EXISTS idx_import_bindings_source ON import_bindings(source);
CREATE INDEX IF NOT EXISTS idx_call_sites_file ON call_sites(file_id);
CREATE INDEX IF NOT EXISTS idx_call_sites_caller ON call_sites(caller_symbol_id);
CREATE INDEX IF NOT EXISTS idx_call_graph_caller ON call_graph(caller_symbol_id);
CREATE INDEX IF NOT EXISTS idx_call_graph_callee ON call_graph(callee_symbol_id);
CREATE INDEX IF NOT EXISTS idx_reexports_file ON reexports(file_id);
CREATE INDEX IF NOT EXISTS idx_reexports_original ON reexports(original_symbol_id);
CREATE INDEX IF NOT EXISTS idx_diagnostics_seq ON diagnostics(seq);
`
