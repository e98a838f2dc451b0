// Package db provides SQLite storage for viewlink: the task link registry
// and the four view-native tables (todo, wbs, kanban, gantt).
//
// The database is stored at ~/.viewlink/viewlink.db by default.
// Use Open() to connect and Migrate() once at startup to create the schema.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// migrations are applied in order; PRAGMA user_version records how many ran.
var migrations = []string{
	// 1: task link registry
	`
CREATE TABLE IF NOT EXISTS task_links (
	id TEXT PRIMARY KEY,
	unifiedId TEXT NOT NULL,
	viewType TEXT NOT NULL CHECK(viewType IN ('todo','wbs','kanban','gantt')),
	originalId TEXT NOT NULL,
	syncEnabled INTEGER NOT NULL DEFAULT 1,
	createdAt TEXT NOT NULL,
	lastSyncedAt TEXT NOT NULL,
	UNIQUE(viewType, originalId)
);

CREATE INDEX IF NOT EXISTS idx_task_links_unified ON task_links(unifiedId);
CREATE INDEX IF NOT EXISTS idx_task_links_view_original ON task_links(viewType, originalId);
CREATE UNIQUE INDEX IF NOT EXISTS idx_task_links_unified_view ON task_links(unifiedId, viewType);
`,
	// 2: view-native tables
	`
CREATE TABLE IF NOT EXISTS todos (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	completed INTEGER NOT NULL DEFAULT 0,
	due_date TEXT,
	assignee TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS wbs_tasks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	parent_id TEXT REFERENCES wbs_tasks(id),
	position INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'not_started' CHECK(status IN ('not_started','in_progress','completed')),
	progress INTEGER NOT NULL DEFAULT 0 CHECK(progress BETWEEN 0 AND 100),
	start_date TEXT,
	end_date TEXT,
	assignee TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS kanban_lanes (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS kanban_cards (
	id TEXT PRIMARY KEY,
	lane_id TEXT NOT NULL REFERENCES kanban_lanes(id),
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL DEFAULT 0,
	due_date TEXT,
	assignee TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS gantt_tasks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0 CHECK(progress BETWEEN 0 AND 100),
	assignee TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS gantt_deps (
	task_id TEXT REFERENCES gantt_tasks(id),
	depends_on TEXT REFERENCES gantt_tasks(id),
	PRIMARY KEY (task_id, depends_on)
);

CREATE INDEX IF NOT EXISTS idx_wbs_parent ON wbs_tasks(parent_id);
CREATE INDEX IF NOT EXISTS idx_kanban_cards_lane ON kanban_cards(lane_id);
`,
}

// DB wraps a SQL database connection with viewlink-specific operations.
type DB struct {
	*sql.DB
}

// Querier is the statement surface shared by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DefaultPath returns the default database path (~/.viewlink/viewlink.db)
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".viewlink", "viewlink.db"), nil
}

// Open opens or creates the database at the given path
func Open(path string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{db}, nil
}

// Migrate brings the schema up to date. It is meant to run once at startup,
// not on the repository hot path.
func (db *DB) Migrate(ctx context.Context) error {
	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for i := version; i < len(migrations); i++ {
		if _, err := db.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return fmt.Errorf("failed to record schema version %d: %w", i+1, err)
		}
	}
	return nil
}

// SchemaVersion returns the number of migrations applied.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// LatestSchemaVersion is the version Migrate brings a database to.
func LatestSchemaVersion() int {
	return len(migrations)
}
