package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// MigrationSource is an embed.FS (or any fs.FS) containing golang-migrate
// "NNNN_name.{up,down}.sql" files, rooted at the directory passed to
// NewMigrationSource.
type MigrationSource struct {
	fsys fs.FS
	dir  string
}

func NewMigrationSource(fsys fs.FS, dir string) MigrationSource {
	return MigrationSource{fsys: fsys, dir: dir}
}

// RunMigrations applies every pending up-migration from src.
func RunMigrations(db *sql.DB, src MigrationSource) error {
	sourceDriver, err := iofs.New(src.fsys, src.dir)
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	dbDriver, err := pgx.WithInstance(db, &pgx.Config{})
	if err != nil {
		return fmt.Errorf("migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "pgx", dbDriver)
	if err != nil {
		return fmt.Errorf("migration setup: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}
	return nil
}
