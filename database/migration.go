package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/mbolis/quick-form/log"
)

//go:embed migrations
var dbMigrations embed.FS

// SchemaVersion is the migration the embedded schema ends at.
const SchemaVersion = 2

// migrateDB brings the schema up to SchemaVersion and returns the version
// found afterwards. A schema left dirty by a failed migration is refused.
func migrateDB(db *sql.DB) (uint, error) {
	src, err := iofs.New(dbMigrations, "migrations")
	if err != nil {
		return 0, err
	}

	dst, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return 0, err
	}

	migrator, err := migrate.NewWithInstance("iofs", src, "sqlite3", dst)
	if err != nil {
		return 0, err
	}

	err = migrator.Up()
	var dirty migrate.ErrDirty
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		// db already up to date
	case errors.As(err, &dirty):
		return 0, fmt.Errorf("schema version %d is dirty, repair it and force the version: %w", dirty.Version, err)
	case err != nil:
		return 0, fmt.Errorf("migrate schema: %w", err)
	}

	version, _, err := migrator.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if version > SchemaVersion {
		log.Warnf("database schema version %d is newer than %d", version, SchemaVersion)
	} else {
		log.Debugf("database schema at version %d", version)
	}
	return version, nil
}
