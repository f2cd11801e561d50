// Package migrations holds the SQL schema and applies it with golang-migrate.
//
// Files are named NNNN_name.up.sql / NNNN_name.down.sql and embedded into the
// binary. Applied versions are tracked in schema_migrations.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"hotel-directory/pkg/logger"
)

//go:embed *.sql
var files embed.FS

// Source returns the embedded migration set as a golang-migrate source.
func Source() (source.Driver, error) {
	return iofs.New(files, ".")
}

// Runner applies the embedded migrations to one database.
type Runner struct {
	m    *migrate.Migrate
	stop func() bool
}

// New binds a runner to db. Close releases the runner and closes db.
// Cancelling ctx stops a run after the migration in progress completes.
func New(ctx context.Context, db *sql.DB) (*Runner, error) {
	src, err := Source()
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	drv, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", drv)
	if err != nil {
		_ = src.Close()
		_ = drv.Close()
		return nil, err
	}
	m.Log = migrateLogger{log: logger.From(ctx)}

	stop := context.AfterFunc(ctx, func() {
		select {
		case m.GracefulStop <- true:
		default:
		}
	})
	return &Runner{m: m, stop: stop}, nil
}

// Up applies every pending migration and returns the resulting version.
func (r *Runner) Up() (uint, error) {
	if err := r.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return r.versionOnError(err)
	}
	return r.Version()
}

// Down reverts the most recent steps migrations and returns the resulting version.
func (r *Runner) Down(steps int) (uint, error) {
	if steps < 1 {
		return 0, fmt.Errorf("steps must be >= 1, got %d", steps)
	}
	if err := r.m.Steps(-steps); err != nil {
		return r.versionOnError(err)
	}
	return r.Version()
}

// Version reports the applied version. It is 0 on an empty database and an
// error when the last run left the schema dirty.
func (r *Runner) Version() (uint, error) {
	v, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if dirty {
		return v, fmt.Errorf("schema version %d is dirty", v)
	}
	return v, nil
}

func (r *Runner) versionOnError(err error) (uint, error) {
	v, _, verr := r.m.Version()
	if verr != nil {
		v = 0
	}
	return v, err
}

func (r *Runner) Close() error {
	r.stop()
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}

// Up applies pending migrations to db and closes it.
func Up(ctx context.Context, db *sql.DB) (uint, error) {
	r, err := New(ctx, db)
	if err != nil {
		return 0, err
	}
	v, err := r.Up()
	return v, errors.Join(err, r.Close())
}

// migrateLogger routes golang-migrate progress lines into slog.
type migrateLogger struct {
	log *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (l migrateLogger) Verbose() bool { return false }
