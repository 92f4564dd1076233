package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"           // registers the "postgres" driver
	_ "modernc.org/sqlite"          // registers the "sqlite" driver
)

// OpenPostgres opens a *sql.DB against dsn using lib/pq, the teacher's
// Postgres driver of record.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	return db, nil
}

// OpenSQLite opens a *sql.DB against path using the embedded,
// cgo-free modernc.org/sqlite driver — the single-process deployment
// path when no Postgres instance is available.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	return db, nil
}
