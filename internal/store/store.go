// Package store provides SQLite-backed persistence for mailtx: the email
// table with its synchronized full-text index, the per-email embedding
// vectors, and the transaction ledger.
package store

import (
	"database/sql"
	"embed"
	"errors"
	"os"
	"path/filepath"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
)

//go:embed schema.sql schema_fts.sql
var schemaFS embed.FS

// ErrDuplicate reports a uniqueness violation (email id, content hash, or
// the (email_id, amount_cents) pair). Callers treat it as a skip, never a
// fatal error.
var ErrDuplicate = eris.New("duplicate row")

// Store provides database operations for mailtx.
type Store struct {
	db            *sql.DB
	dbPath        string
	fts5Available bool
}

const defaultSQLiteParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"

func init() {
	// Register the sqlite-vec extension with every cgo SQLite connection so
	// vec_* SQL functions are available alongside our own cosine scan.
	sqlite_vec.Auto()
}

// isSQLiteError checks if err is a sqlite3.Error with a message containing substr.
// Type-asserts via errors.As rather than string-matching err.Error() directly.
func isSQLiteError(err error, substr string) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return strings.Contains(sqliteErr.Error(), substr)
	}
	return false
}

// isUniqueViolation reports whether err is a primary-key or unique-constraint
// violation from the SQLite driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// Open opens or creates the database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, eris.Wrap(err, "create db directory")
	}

	dsn := dbPath + defaultSQLiteParams
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "open database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "ping database")
	}

	return &Store{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// OpenMemory opens an in-memory database, used by tests and ephemeral runs.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite3", ":memory:"+defaultSQLiteParams)
	if err != nil {
		return nil, eris.Wrap(err, "open database")
	}
	// Each pooled connection would get its own private memory database;
	// pin the pool to a single connection.
	db.SetMaxOpenConns(1)
	return &Store{db: db, dbPath: ":memory:"}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// FTS5Available reports whether the FTS5 index was created successfully.
func (s *Store) FTS5Available() bool {
	return s.fts5Available
}

// InitSchema initializes the database schema, creating all tables if they
// don't exist. The FTS5 index is optional: some SQLite builds lack the
// module, in which case full-text search is simply unavailable.
func (s *Store) InitSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return eris.Wrap(err, "read schema.sql")
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return eris.Wrap(err, "execute schema.sql")
	}

	ftsSchema, err := schemaFS.ReadFile("schema_fts.sql")
	if err != nil {
		return eris.Wrap(err, "read schema_fts.sql")
	}
	if _, err := s.db.Exec(string(ftsSchema)); err != nil {
		if isSQLiteError(err, "no such module: fts5") {
			s.fts5Available = false
			return nil
		}
		return eris.Wrap(err, "init fts5 schema")
	}
	s.fts5Available = true
	return nil
}

// Stats holds database statistics.
type Stats struct {
	EmailCount       int64
	EmbeddingCount   int64
	TransactionCount int64
	DatabaseSize     int64
}

// GetStats returns row counts and the database file size.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM emails", &stats.EmailCount},
		{"SELECT COUNT(*) FROM embeddings", &stats.EmbeddingCount},
		{"SELECT COUNT(*) FROM tx", &stats.TransactionCount},
	}

	for _, q := range queries {
		if err := s.db.QueryRow(q.query).Scan(q.dest); err != nil {
			if isSQLiteError(err, "no such table") {
				continue
			}
			return nil, eris.Wrapf(err, "get stats %q", q.query)
		}
	}

	if info, err := os.Stat(s.dbPath); err == nil {
		stats.DatabaseSize = info.Size()
	}

	return stats, nil
}
