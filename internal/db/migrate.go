package db

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// Schemas lists the services that own a migration set.
var Schemas = []string{"orders", "inventory", "payments"}

// MigrationsTable keeps each service's migration history separate so several
// services can share one database.
func MigrationsTable(schema string) string {
	return "schema_migrations_" + schema
}

// Source returns the embedded migration files for one service.
func Source(schema string) (fs.FS, error) {
	sub, err := fs.Sub(migrationsFS, "migrations/"+schema)
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("unknown schema %q: %w", schema, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("unknown schema %q", schema)
	}
	return sub, nil
}

// RunMigrations applies all pending migrations of the given service schema.
func RunMigrations(dsn, schema string, logger *zap.Logger) error {
	files, err := Source(schema)
	if err != nil {
		return err
	}

	conn, err := Open(dsn)
	if err != nil {
		return fmt.Errorf("open db for migrations: %w", err)
	}
	defer conn.Close()

	sourceDriver, err := iofs.New(files, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(conn, &postgres.Config{MigrationsTable: MigrationsTable(schema)})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("migrations applied",
		zap.String("event", schema+".schema.ready"),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))

	return nil
}
