package store

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/mattn/go-sqlite3" // Registers the sqlite3 driver.
)

// NewSQLite opens a SQLite store at path (":memory:" allowed) and applies
// pending migrations.
func NewSQLite(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: an in-memory database is private to its connection
	// and SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	instance, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create migrate driver: %w", err)
	}
	if err := migrateUp(sqliteDialect, instance); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{db: db, dialect: sqliteDialect}, nil
}
