package persistence

import (
	"context"
	"embed"
	"io/fs"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationFS returns the embedded org schema migrations.
func MigrationFS() fs.FS {
	sub, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

func newProvider(pool *pgxpool.Pool) (*goose.Provider, func() error, error) {
	db := stdlib.OpenDBFromPool(pool)
	provider, err := goose.NewProvider(goose.DialectPostgres, db, MigrationFS())
	if err != nil {
		_ = db.Close()
		return nil, nil, errors.Wrap(err, "init migrations")
	}
	return provider, db.Close, nil
}

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger logrus.FieldLogger) error {
	provider, closeDB, err := newProvider(pool)
	if err != nil {
		return err
	}
	defer func() { _ = closeDB() }()

	results, err := provider.Up(ctx)
	if err != nil {
		return errors.Wrap(err, "apply migrations")
	}
	for _, r := range results {
		logger.WithFields(logrus.Fields{
			"version":  r.Source.Version,
			"file":     r.Source.Path,
			"duration": r.Duration.String(),
		}).Info("org.migration.applied")
	}
	return nil
}

// PendingMigrations reports how many migrations have not been applied yet.
func PendingMigrations(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	provider, closeDB, err := newProvider(pool)
	if err != nil {
		return 0, err
	}
	defer func() { _ = closeDB() }()

	statuses, err := provider.Status(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "migration status")
	}
	pending := 0
	for _, st := range statuses {
		if st.State == goose.StatePending {
			pending++
		}
	}
	return pending, nil
}
