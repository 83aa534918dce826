// Package store provides the gateway to the relational backing store. All
// SQL issued by handlers goes through the Store interface: parameterized
// statements, stored procedure calls, and transaction scopes that commit or
// roll back as a unit.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/protrack-edu/protrack-server/internal/logger"
)

// ErrNoRows is returned by QueryValue when the query matches nothing
var ErrNoRows = errors.New("store: no rows")

// Tx is the statement surface available inside a transaction scope. Every
// statement issued through it is atomic with the rest of the scope.
type Tx interface {
	// Exec runs a statement and returns the number of affected rows
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// Query runs a query and returns all rows
	Query(ctx context.Context, query string, args ...any) ([]Row, error)

	// QueryValue runs a query expected to return a single scalar. It
	// returns ErrNoRows when the query matches nothing.
	QueryValue(ctx context.Context, query string, args ...any) (string, error)
}

// Store is the query/execute interface handlers are written against
type Store interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	QueryValue(ctx context.Context, query string, args ...any) (string, error)

	// CallProcedure invokes a stored procedure/function by name and
	// returns its result rows
	CallProcedure(ctx context.Context, name string, args ...any) ([]Row, error)

	// WithTx runs fn inside a transaction. The transaction commits only
	// if fn returns nil; any error or panic rolls back every statement
	// issued through the Tx.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// DB implements Store over a database/sql connection pool
type DB struct {
	db  *sql.DB
	log *logger.Logger
}

// Open connects to PostgreSQL with the given connection string and verifies
// the connection with a ping.
func Open(ctx context.Context, dsn string, log *logger.Logger) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection established")
	return New(db, log), nil
}

// New wraps an existing connection pool. Used by tests to back the store
// with a different driver.
func New(db *sql.DB, log *logger.Logger) *DB {
	return &DB{db: db, log: log}
}

// Close closes the underlying connection pool
func (d *DB) Close() error {
	return d.db.Close()
}

// Exec runs a statement and returns the number of affected rows
func (d *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Query runs a query and returns all rows
func (d *DB) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows)
}

// QueryValue runs a query expected to return a single scalar
func (d *DB) QueryValue(ctx context.Context, query string, args ...any) (string, error) {
	return queryValue(ctx, d.db, query, args...)
}

// CallProcedure invokes a stored function and returns its result rows
func (d *DB) CallProcedure(ctx context.Context, name string, args ...any) ([]Row, error) {
	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf("SELECT * FROM %s(%s)", name, strings.Join(placeholders, ", "))
	return d.Query(ctx, query, args...)
}

// WithTx runs fn inside a transaction scope
func (d *DB) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil {
				d.log.Error("Rollback after panic failed: %v", rbErr)
			}
			panic(p)
		}
	}()

	if err := fn(&dbTx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			d.log.Error("Rollback failed: %v", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// dbTx adapts *sql.Tx to the Tx interface
type dbTx struct {
	tx *sql.Tx
}

func (t *dbTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *dbTx) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows)
}

func (t *dbTx) QueryValue(ctx context.Context, query string, args ...any) (string, error) {
	return queryValue(ctx, t.tx, query, args...)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryValue(ctx context.Context, q rowQuerier, query string, args ...any) (string, error) {
	var v sql.NullString
	if err := q.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoRows
		}
		return "", err
	}
	return v.String, nil
}

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation. Handlers use it to turn duplicate inserts into a specific
// client-facing message instead of a generic internal error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
