// Package store persists admins, roles, their association and the activity
// log in a relational database. SQLite, PostgreSQL, MySQL/MariaDB and SQL
// Server are supported through sqlx; uniqueness is enforced by the schema.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// Options selects and tunes the backing database.
type Options struct {
	// Driver is one of sqlite, postgres, mysql, mariadb or mssql.
	Driver string
	// DSN is the driver connection string. For SQLite it is a file path;
	// empty or ":memory:" opens a private in-memory database.
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store is the credential and activity store.
type Store struct {
	db      *sqlx.DB
	dialect *dialect
}

// Open connects to the database described by opts and applies the schema.
func Open(ctx context.Context, opts Options) (*Store, error) {
	d, err := lookupDialect(opts.Driver)
	if err != nil {
		return nil, err
	}

	if d.name == DialectSQLite && opts.DSN != "" && opts.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(opts.DSN), 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn, err := d.dsn(opts.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.name, err)
	}

	if d.name == DialectSQLite {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	} else {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if opts.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(opts.ConnMaxLifetime)
		}
	}

	s := &Store{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s database: %w", d.name, err)
	}
	return s, nil
}

// OpenMemory opens a migrated in-memory SQLite store. Used by tests and by
// commands that only need a scratch database.
func OpenMemory() (*Store, error) {
	return Open(context.Background(), Options{Driver: DialectSQLite, DSN: ":memory:"})
}

// Dialect returns the canonical dialect name (sqlite, postgres, mysql, mssql).
func (s *Store) Dialect() string {
	return s.dialect.name
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB returns the underlying connection pool, for pool statistics.
func (s *Store) DB() *sql.DB {
	return s.db.DB
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, committing when fn returns nil.
// Callers must use tx exclusively inside fn; the SQLite pool holds a single
// connection.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// insert runs a named INSERT and returns the new row id using the dialect's
// strategy.
func (s *Store) insert(ctx context.Context, ext sqlx.ExtContext, table string, cols []string, arg interface{}) (int64, error) {
	q, args, err := ext.BindNamed(s.dialect.insertSQL(table, cols), arg)
	if err != nil {
		return 0, fmt.Errorf("bind insert: %w", err)
	}

	if s.dialect.returning != "" {
		var id int64
		if err := ext.QueryRowxContext(ctx, q, args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	result, err := ext.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// affectedOne maps a zero-row result to ErrNotFound.
func affectedOne(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
