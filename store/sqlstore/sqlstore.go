// Package sqlstore provides object and result stores backed by SQLite, via
// the pure Go modernc.org/sqlite driver.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // registers the sqlite database/sql driver
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS objects (
	entity_type TEXT NOT NULL,
	id          TEXT NOT NULL,
	data        TEXT NOT NULL,
	PRIMARY KEY (entity_type, id)
);

CREATE TABLE IF NOT EXISTS compliance_results (
	id              TEXT NOT NULL PRIMARY KEY,
	check_name      TEXT NOT NULL,
	entity_type     TEXT NOT NULL,
	object_id       TEXT NOT NULL,
	attribute       TEXT NOT NULL,
	last_evaluated  TEXT NOT NULL,
	attribute_value TEXT NOT NULL DEFAULT '',
	valid           INTEGER NOT NULL,
	message         TEXT NOT NULL DEFAULT '',
	UNIQUE (check_name, entity_type, object_id, attribute)
);

CREATE INDEX IF NOT EXISTS idx_compliance_results_object
	ON compliance_results (entity_type, object_id);
`

// DB is an open SQLite database holding objects and compliance results.
type DB struct {
	db *sql.DB
}

// Open opens, creating if needed, the SQLite database at path and makes sure
// its tables exist.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// single writer, WAL mode for concurrent reads
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Objects returns the object store of the database.
func (d *DB) Objects() *Objects {
	return &Objects{db: d.db}
}

// Results returns the result store of the database.
func (d *DB) Results() *Results {
	return &Results{db: d.db}
}
