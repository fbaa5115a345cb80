package snapshot

import (
	"database/sql"
	"fmt"
)

const nodesTableDDL = `
CREATE TABLE IF NOT EXISTS nodes (
    id INTEGER PRIMARY KEY,
    parent_id INTEGER,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    kind INTEGER NOT NULL,
    size INTEGER NOT NULL,
    blocks INTEGER NOT NULL,
    flags INTEGER NOT NULL,
    scanned INTEGER NOT NULL DEFAULT 0,
    dev INTEGER NOT NULL DEFAULT 0,
    ino INTEGER NOT NULL DEFAULT 0,
    nlink INTEGER NOT NULL DEFAULT 0,
    mtime INTEGER,
    uid INTEGER,
    gid INTEGER,
    mode INTEGER
);
`

const metaTableDDL = `
CREATE TABLE IF NOT EXISTS scan_meta (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    root_path TEXT NOT NULL,
    scan_time INTEGER NOT NULL,
    total_size INTEGER DEFAULT 0,
    total_blocks INTEGER DEFAULT 0,
    item_count INTEGER DEFAULT 0,
    error_count INTEGER DEFAULT 0
);
`

const nodesParentIndexDDL = `CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id, position);`

// InitSchema creates all tables in the database.
func InitSchema(db *sql.DB) error {
	for _, ddl := range []string{nodesTableDDL, metaTableDDL, nodesParentIndexDDL} {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to execute DDL: %w", err)
		}
	}
	return nil
}

// ApplyWritePragmas configures SQLite for bulk ingestion.
func ApplyWritePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply pragma %q: %w", pragma, err)
		}
	}
	return nil
}

// Finalize prepares a snapshot database for read-only use: DELETE
// journaling is more portable than a WAL sidecar.
func Finalize(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA optimize"); err != nil {
		return fmt.Errorf("failed to optimize: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = DELETE"); err != nil {
		return fmt.Errorf("failed to set journal mode: %w", err)
	}
	return nil
}
