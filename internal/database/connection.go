// Package database provides connection management and repositories for the change store.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/choplin/wdrc/db/migrations"
	"github.com/choplin/wdrc/internal/config"
	"github.com/choplin/wdrc/internal/database/sqldb"

	// Register database/sql drivers.
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Dialect names the SQL flavour of the change store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Context holds the database connection and query interface.
type Context struct {
	DB      *sqlx.DB
	Queries *sqldb.Queries
	Dialect Dialect
}

// CreateDatabase opens the change store described by store and applies migrations.
func CreateDatabase(store config.StoreConfig) (*Context, error) {
	switch Dialect(store.Driver) {
	case DialectSQLite, "":
		return openSQLite(store)
	case DialectPostgres:
		return openPostgres(store)
	default:
		return nil, fmt.Errorf("unsupported change store driver %q", store.Driver)
	}
}

func openSQLite(store config.StoreConfig) (*Context, error) {
	path := store.DSN
	if path == "" {
		path = store.Database
	}
	if path == "" {
		path = config.GetDefaultDBPath()
	}

	useMemory := path == ":memory:"

	if !useMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	var dsn string
	if useMemory {
		dsn = "file::memory:?cache=shared&_pragma=busy_timeout(5000)"
	} else {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", filepath.ToSlash(absPath))
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers; transactions must not touch db directly.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialise migrate driver: %w", err)
	}
	if err := runMigrations(driver, DialectSQLite); err != nil {
		_ = db.Close()
		return nil, err
	}

	return newContext(db, DialectSQLite), nil
}

func openPostgres(store config.StoreConfig) (*Context, error) {
	dsn, err := store.DataSourceName()
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialise migrate driver: %w", err)
	}
	if err := runMigrations(driver, DialectPostgres); err != nil {
		_ = db.Close()
		return nil, err
	}

	return newContext(db, DialectPostgres), nil
}

func newContext(db *sqlx.DB, dialect Dialect) *Context {
	return &Context{
		DB:      db,
		Queries: sqldb.New(db),
		Dialect: dialect,
	}
}

// CloseDatabase closes the database connection.
func CloseDatabase(ctx *Context) error {
	if ctx == nil || ctx.DB == nil {
		return nil
	}
	return ctx.DB.Close()
}

// WithTx runs fn with a Context whose Queries are bound to a new transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func WithTx(ctx context.Context, dbCtx *Context, fn func(tx *Context) error) error {
	if dbCtx == nil || dbCtx.DB == nil {
		return errors.New("database: missing database context")
	}

	tx, err := dbCtx.DB.BeginTxx(ctx, nil)
	if err != nil {
		return persistenceError("begin transaction", err)
	}

	queries := dbCtx.Queries
	if queries == nil {
		queries = sqldb.New(dbCtx.DB)
	}
	txCtx := &Context{DB: dbCtx.DB, Queries: queries.WithTx(tx), Dialect: dbCtx.Dialect}

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback error: %w)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return persistenceError("commit transaction", err)
	}
	return nil
}

// ClearDatabase removes all data from the database.
func ClearDatabase(ctx *Context) error {
	if ctx == nil || ctx.DB == nil {
		return nil
	}
	return WithTx(context.Background(), ctx, func(tx *Context) error {
		return tx.Queries.DeleteAll(context.Background())
	})
}

func runMigrations(driver migratedb.Driver, dialect Dialect) error {
	sourceDriver, err := iofs.New(migrations.Files, string(dialect))
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	defer func() {
		_ = sourceDriver.Close()
	}()

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, string(dialect), driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
