package storage

import "github.com/jmoiron/sqlx"

// Dialect names the SQL backend the engine talks to. Queries are written
// with '?' placeholders and rebound per dialect.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) bindType() int {
	if d == Postgres {
		return sqlx.DOLLAR
	}
	return sqlx.QUESTION
}

func (d Dialect) rebind(query string) string {
	return sqlx.Rebind(d.bindType(), query)
}

var bootstrapStatements = []string{
	`CREATE TABLE IF NOT EXISTS kv_schema (
		name TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS kv_collections (
		name TEXT PRIMARY KEY,
		indexes TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS kv_objects (
		collection TEXT NOT NULL,
		id BIGINT NOT NULL,
		body TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	)`,
	`CREATE TABLE IF NOT EXISTS kv_index (
		collection TEXT NOT NULL,
		index_name TEXT NOT NULL,
		index_key TEXT NOT NULL,
		id BIGINT NOT NULL,
		PRIMARY KEY (collection, index_name, index_key, id)
	)`,
	`CREATE INDEX IF NOT EXISTS kv_index_by_object ON kv_index (collection, id)`,
}
