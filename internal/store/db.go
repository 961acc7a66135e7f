// Package store persists posted notifications in SQLite. Chat messages and
// conversations are never stored; they are always fetched from the backend.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNoFTS5 is returned by Open when the sqlite3 driver was built without
// the sqlite_fts5 tag. Notification search depends on it.
var ErrNoFTS5 = errors.New("sqlite built without FTS5 (build with -tags sqlite_fts5)")

// DB is the profile's vibechat.db.
type DB struct {
	*sql.DB
	path string
}

// Open connects in WAL mode with a busy timeout and checks that FTS5 is
// compiled in.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	var fts bool
	if err := db.QueryRow(`SELECT sqlite_compileoption_used('ENABLE_FTS5')`).Scan(&fts); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}
	if !fts {
		_ = db.Close()
		return nil, ErrNoFTS5
	}
	return &DB{DB: db, path: path}, nil
}

// Path returns the database file.
func (db *DB) Path() string {
	return db.path
}
