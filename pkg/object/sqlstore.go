package object

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const sqlSchema = `
CREATE TABLE IF NOT EXISTS objects (
    hash TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    data BLOB NOT NULL
);
`

const sqlPragma = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA temp_store=MEMORY;
`

type sqlObject struct {
	Type string `db:"type"`
	Data []byte `db:"data"`
}

// SQLStore is a Database backed by a single SQLite file.
type SQLStore struct {
	db   *sqlx.DB
	path string
}

// OpenSQLStore opens (creating if needed) the SQLite object database at
// path. Use ":memory:" for a throwaway database.
func OpenSQLStore(path string) (*SQLStore, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("open sql store: mkdir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", path)
	}

	slog.Debug("object db", "driver", "sqlite3", "path", path)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sql store: connect: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqlPragma); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sql store: pragmas: %w", err)
	}
	if _, err := db.Exec(sqlSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sql store: schema: %w", err)
	}
	return &SQLStore{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Has reports whether the store contains an object with the given hash.
func (s *SQLStore) Has(h Hash) bool {
	var n int
	if err := s.db.Get(&n, "SELECT COUNT(1) FROM objects WHERE hash = ?", string(h)); err != nil {
		return false
	}
	return n > 0
}

// Write stores an object and returns its content hash.
func (s *SQLStore) Write(objType ObjectType, data []byte) (Hash, error) {
	h := HashObject(objType, data)
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO objects (hash, type, data) VALUES (?, ?, ?)",
		string(h), string(objType), data,
	)
	if err != nil {
		return "", fmt.Errorf("object write %s: %w", h, err)
	}
	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content.
func (s *SQLStore) Read(h Hash) (ObjectType, []byte, error) {
	var obj sqlObject
	err := s.db.Get(&obj, "SELECT type, data FROM objects WHERE hash = ?", string(h))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
		}
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	if got := HashObject(ObjectType(obj.Type), obj.Data); got != h {
		return "", nil, fmt.Errorf("object read %s: content hashes to %s", h, got)
	}
	return ObjectType(obj.Type), obj.Data, nil
}
