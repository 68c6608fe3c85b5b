// Package storage is the SQLite implementation of the ledger stores.
//
// Amounts are stored as integer cents. Every failure is returned as a
// *core.StoreError naming the operation.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"tesouraria/internal/core"
	"tesouraria/internal/ledger"
	"tesouraria/internal/log"

	_ "modernc.org/sqlite"
)

var _ ledger.Store = (*SQLiteRepository)(nil)

// busyTimeout is how long a connection waits for another writer, possibly in
// another process, before giving up with SQLITE_BUSY.
const busyTimeout = 10 * time.Second

// querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type SQLiteRepository struct {
	db *sql.DB // nil inside a cascade transaction
	q  querier
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", dbPath, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// concurrent writers on separate connections fail with SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, q: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Owners implements ledger.Store
func (r *SQLiteRepository) Owners(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT owner_id FROM configurations
		UNION SELECT owner_id FROM entries
		UNION SELECT owner_id FROM monthly_balances
		ORDER BY owner_id`)
	if err != nil {
		return nil, storeErr("list owners", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan owner", err)
		}
		owners = append(owners, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list owners", err)
	}
	return owners, nil
}

// InCascadeTx implements ledger.Transactor. BEGIN IMMEDIATE takes the write
// lock before the first read, so a cascade on another connection or in
// another process waits for this one to commit instead of interleaving.
func (r *SQLiteRepository) InCascadeTx(ctx context.Context, ownerID string, fn func(tx ledger.Stores) error) error {
	if r.db == nil {
		return fn(r)
	}
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return storeErr("begin cascade", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return storeErr("begin cascade", err)
	}
	rollback := func() {
		if _, err := conn.ExecContext(context.Background(), "ROLLBACK"); err != nil {
			slog.WarnContext(ctx, "Cascade rollback failed",
				log.FieldOwnerID, ownerID,
				log.FieldError, err)
		}
	}

	if err := fn(&SQLiteRepository{q: conn}); err != nil {
		rollback()
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		rollback()
		return storeErr("commit cascade", err)
	}
	return nil
}

// cents converts an amount for a cents column.
func cents(op, field string, d decimal.Decimal) (int64, error) {
	c, err := core.ToCents(d)
	if err != nil {
		return 0, storeErr(op, fmt.Errorf("%s %s: %w", field, d, err))
	}
	return c, nil
}

func storeErr(op string, err error) error {
	return &core.StoreError{Op: op, Err: err}
}
