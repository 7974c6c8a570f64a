package postgres

import (
	stdliberrors "errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // file source driver

	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

// RunMigrations applies all pending schema migrations from migrationsPath
// (e.g. "file://migrations"). Both server and worker call this on startup
// when migrate_on_start is set; running it concurrently is safe because
// golang-migrate serializes on its schema lock.
func RunMigrations(dbURL, migrationsPath string) error {
	m, err := migrate.New(migrationsPath, dbURL)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	defer m.Close()

	if err := m.Up(); err != nil && !stdliberrors.Is(err, migrate.ErrNoChange) {
		version, _, _ := m.Version()
		return errors.Wrap(err, errors.ErrCodeDatabaseError,
			fmt.Sprintf("failed to run migrations (current version: %d)", version))
	}
	return nil
}

// MigrationStatus reports the applied version and whether a previous
// migration failed partway (dirty).
func MigrationStatus(dbURL, migrationsPath string) (version uint, dirty bool, err error) {
	m, err := migrate.New(migrationsPath, dbURL)
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	defer m.Close()

	version, dirty, err = m.Version()
	if err != nil {
		if stdliberrors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to get migration version")
	}
	return version, dirty, nil
}

// RollbackMigration reverts the schema by steps. Development use only.
func RollbackMigration(dbURL, migrationsPath string, steps int) error {
	if steps <= 0 {
		return errors.Newf(errors.CodeInvalidParam, "steps must be greater than 0, got %d", steps)
	}

	m, err := migrate.New(migrationsPath, dbURL)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	defer m.Close()

	if err := m.Steps(-steps); err != nil {
		if stdliberrors.Is(err, migrate.ErrNoChange) {
			return errors.New(errors.CodeInvalidParam, "no migrations to roll back")
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError,
			fmt.Sprintf("failed to roll back %d step(s)", steps))
	}
	return nil
}
