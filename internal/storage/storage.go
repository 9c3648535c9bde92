// Package storage bootstraps the local SQLite database: it opens the DSN,
// applies the embedded goose migrations and wires the repository set used
// by the engine.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/migrations"
	"github.com/dmitrijs2005/fieldsync/internal/repositories/assets"
	"github.com/dmitrijs2005/fieldsync/internal/repositories/events"
	"github.com/dmitrijs2005/fieldsync/internal/repositories/projects"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Repositories groups the engine's persistence interfaces behind one wiring
// point.
type Repositories struct {
	Projects projects.Repository
	Assets   assets.Repository
	Events   events.Repository
}

// RunMigrations applies all embedded migrations that are not yet recorded
// in the goose version table. Safe to call repeatedly.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the SQLite database at dsn and brings its schema up to
// date. The caller owns the returned handle.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// NewRepositories binds the SQLite repository implementations to db.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Projects: projects.NewSQLiteRepository(db),
		Assets:   assets.NewSQLiteRepository(db),
		Events:   events.NewSQLiteRepository(db),
	}
}
