package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		cpus        INTEGER NOT NULL,
		time_slice  INTEGER NOT NULL,
		steps       INTEGER NOT NULL DEFAULT 0,
		switches    INTEGER NOT NULL DEFAULT 0,
		signals     INTEGER NOT NULL DEFAULT 0,
		scenario    TEXT NOT NULL DEFAULT '',
		duration_ns INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS trace_events (
		run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq      INTEGER NOT NULL,
		step     INTEGER NOT NULL,
		cpu      INTEGER NOT NULL,
		op       TEXT NOT NULL,
		thread   TEXT NOT NULL DEFAULT '',
		next     TEXT NOT NULL DEFAULT '',
		priority INTEGER NOT NULL DEFAULT 0,
		boost    INTEGER NOT NULL DEFAULT 0,
		detail   TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, seq)
	)`,

	`CREATE TABLE IF NOT EXISTS thread_summaries (
		run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		name          TEXT NOT NULL,
		base_priority INTEGER NOT NULL,
		boost         INTEGER NOT NULL DEFAULT 0,
		state         TEXT NOT NULL,
		pinned_cpu    INTEGER NOT NULL DEFAULT -1,
		last_cpu      INTEGER NOT NULL DEFAULT -1,
		dispatches    INTEGER NOT NULL DEFAULT 0,
		ticks_run     INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, name)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_trace_events_cpu ON trace_events(run_id, cpu)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	// Signal target mask, added after the first trace format.
	{
		table:    "trace_events",
		column:   "mask",
		alterSQL: "ALTER TABLE trace_events ADD COLUMN mask INTEGER NOT NULL DEFAULT 0",
		indexSQL: "CREATE INDEX IF NOT EXISTS idx_trace_events_op ON trace_events(run_id, op)",
	},
}

// migrate executes all schema DDL statements, alter migrations, and post-migration indexes.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	exists, err := hasColumn(ctx, db, table, column)
	if err != nil || exists {
		return err
	}
	_, err = db.ExecContext(ctx, alterSQL)
	return err
}

func hasColumn(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}
