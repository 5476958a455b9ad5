// Package db handles SQLite initialisation and schema migrations for the
// server-side record store.
//
// modernc.org/sqlite is a pure-Go port of SQLite — no CGo, no C compiler,
// cross-compiles cleanly. The driver registers itself under the name
// "sqlite" (not "sqlite3").
package db

import (
	"database/sql"
	"fmt"
	"strings"

	// Blank import: the modernc driver registers itself with
	// database/sql under the name "sqlite" when this package loads.
	_ "modernc.org/sqlite"
)

// Open opens (or creates) the SQLite database at dsn and runs all migrations.
//
// Recommended DSN formats:
//   - Production file: "storecheck.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
//   - Tests:           "file:testXYZ?mode=memory&cache=shared&_pragma=foreign_keys(1)"
//
// URI pragma parameters matter because database/sql pools connections and
// each new connection starts with SQLite defaults; putting the pragmas in
// the DSN applies them to every connection in the pool.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// migrate runs each DDL statement in the schema individually. The sqlite
// drivers execute only the first statement of a multi-statement Exec, so we
// split on ";" and loop.
func migrate(db *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration statement failed: %w\nstatement: %s", err, stmt)
		}
	}
	return nil
}

// schema contains every CREATE TABLE statement for the application.
//
//	users            — one table for all roles; "role" distinguishes them.
//	regions          — top of the org hierarchy.
//	districts        — N per region.
//	stores           — N per district; "format" is the physical layout.
//	checklist_items  — the shared audit template. "sort_order" may be
//	                   negative so migrated items can sort before defaults.
//	visits           — one audit of one store by one evaluator. Lifecycle
//	                   draft → completed → synchronized. Completion percent
//	                   is derived from answers, never stored here.
//	visit_answers    — at most one row per (visit, item); the UNIQUE
//	                   constraint backs the delete-then-reinsert update
//	                   strategy in the visits handler.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    name          TEXT NOT NULL,
    role          TEXT NOT NULL CHECK(role IN ('evaluator','manager','regional','admin')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS regions (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS districts (
    id         TEXT PRIMARY KEY,
    region_id  TEXT NOT NULL REFERENCES regions(id),
    name       TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS stores (
    id          TEXT PRIMARY KEY,
    district_id TEXT NOT NULL REFERENCES districts(id),
    name        TEXT NOT NULL,
    address     TEXT NOT NULL DEFAULT '',
    format      TEXT NOT NULL DEFAULT '' CHECK(format IN ('','free_standing','food_court','in_line')),
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS checklist_items (
    id         TEXT PRIMARY KEY,
    title      TEXT NOT NULL,
    type       TEXT NOT NULL CHECK(type IN ('boolean','text','number','percentage','photo','status')),
    sort_order INTEGER NOT NULL DEFAULT 0,
    required   INTEGER NOT NULL DEFAULT 1,
    section    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS visits (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL REFERENCES users(id),
    store_id         TEXT NOT NULL REFERENCES stores(id),
    visited_at       TEXT NOT NULL,
    state            TEXT NOT NULL DEFAULT 'draft' CHECK(state IN ('draft','completed','synchronized')),
    manager_name     TEXT NOT NULL DEFAULT '',
    plan_financial   TEXT NOT NULL DEFAULT '',
    plan_experience  TEXT NOT NULL DEFAULT '',
    plan_operational TEXT NOT NULL DEFAULT '',
    comments         TEXT NOT NULL DEFAULT '',
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS visit_answers (
    id               TEXT PRIMARY KEY,
    visit_id         TEXT NOT NULL REFERENCES visits(id),
    item_id          TEXT NOT NULL REFERENCES checklist_items(id),
    boolean_value    INTEGER,
    text_value       TEXT,
    number_value     REAL,
    percentage_value REAL,
    photo_path       TEXT,
    observation      TEXT,
    UNIQUE (visit_id, item_id)
);

CREATE INDEX IF NOT EXISTS idx_visits_user ON visits(user_id);
CREATE INDEX IF NOT EXISTS idx_visits_store ON visits(store_id);
CREATE INDEX IF NOT EXISTS idx_visits_visited_at ON visits(visited_at);
CREATE INDEX IF NOT EXISTS idx_districts_region ON districts(region_id);
CREATE INDEX IF NOT EXISTS idx_stores_district ON stores(district_id)
`
