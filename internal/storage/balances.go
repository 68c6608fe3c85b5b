package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tesouraria/internal/core"
	"tesouraria/internal/log"
)

// GetBalance implements ledger.BalanceStore
func (r *SQLiteRepository) GetBalance(ctx context.Context, ownerID string, year, month int) (core.MonthlyBalance, bool, error) {
	var cents int64
	err := r.q.QueryRowContext(ctx,
		`SELECT closing_cents FROM monthly_balances WHERE owner_id = ? AND year = ? AND month = ?`,
		ownerID, year, month).Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthlyBalance{}, false, nil
	}
	if err != nil {
		return core.MonthlyBalance{}, false, storeErr("get balance", err)
	}
	return core.MonthlyBalance{OwnerID: ownerID, Year: year, Month: month, Closing: core.FromCents(cents)}, true, nil
}

const upsertBalanceSQL = `
	INSERT INTO monthly_balances (owner_id, year, month, closing_cents, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (owner_id, year, month) DO UPDATE SET
		closing_cents = excluded.closing_cents,
		updated_at = excluded.updated_at`

// UpsertBalance implements ledger.BalanceStore
func (r *SQLiteRepository) UpsertBalance(ctx context.Context, b core.MonthlyBalance) error {
	closing, err := cents("upsert balance", "closing", b.Closing)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, upsertBalanceSQL,
		b.OwnerID, b.Year, b.Month, closing, time.Now().UTC())
	if err != nil {
		return storeErr("upsert balance", err)
	}
	return nil
}

// DistinctPeriods implements ledger.BalanceStore
func (r *SQLiteRepository) DistinctPeriods(ctx context.Context, ownerID string) ([]core.Period, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT DISTINCT year, month FROM monthly_balances WHERE owner_id = ? ORDER BY year, month`, ownerID)
	if err != nil {
		return nil, storeErr("distinct periods", err)
	}
	defer rows.Close()

	var out []core.Period
	for rows.Next() {
		var p core.Period
		if err := rows.Scan(&p.Year, &p.Month); err != nil {
			return nil, storeErr("scan period", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("distinct periods", err)
	}
	return out, nil
}

// ListBalances implements ledger.BalanceStore
func (r *SQLiteRepository) ListBalances(ctx context.Context, ownerID string, year int) ([]core.MonthlyBalance, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT month, closing_cents FROM monthly_balances WHERE owner_id = ? AND year = ? ORDER BY month`,
		ownerID, year)
	if err != nil {
		return nil, storeErr("list balances", err)
	}
	defer rows.Close()

	var out []core.MonthlyBalance
	for rows.Next() {
		var (
			month int
			cents int64
		)
		if err := rows.Scan(&month, &cents); err != nil {
			return nil, storeErr("scan balance", err)
		}
		out = append(out, core.MonthlyBalance{OwnerID: ownerID, Year: year, Month: month, Closing: core.FromCents(cents)})
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list balances", err)
	}
	return out, nil
}

// CommitCascade implements ledger.BalanceStore. The delete of stale years
// and the upserts share one transaction; inside InCascadeTx they join the
// cascade transaction.
func (r *SQLiteRepository) CommitCascade(ctx context.Context, ownerID string, fiscalYear int, balances []core.MonthlyBalance) error {
	if r.db == nil {
		return commitCascade(ctx, r.q, ownerID, fiscalYear, balances)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("commit cascade", fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	if err := commitCascade(ctx, tx, ownerID, fiscalYear, balances); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit cascade", fmt.Errorf("commit: %w", err))
	}
	return nil
}

func commitCascade(ctx context.Context, q querier, ownerID string, fiscalYear int, balances []core.MonthlyBalance) error {
	closings := make([]int64, len(balances))
	for i, b := range balances {
		c, err := cents("commit cascade", fmt.Sprintf("closing %d-%02d", b.Year, b.Month), b.Closing)
		if err != nil {
			return err
		}
		closings[i] = c
	}

	res, err := q.ExecContext(ctx,
		`DELETE FROM monthly_balances WHERE owner_id = ? AND year <> ?`, ownerID, fiscalYear)
	if err != nil {
		return storeErr("commit cascade", fmt.Errorf("drop stale balances: %w", err))
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.InfoContext(ctx, "Dropped balances outside fiscal year",
			log.FieldOwnerID, ownerID,
			log.FieldFiscalYear, fiscalYear,
			log.FieldRows, n)
	}

	stmt, err := q.PrepareContext(ctx, upsertBalanceSQL)
	if err != nil {
		return storeErr("commit cascade", fmt.Errorf("prepare upsert: %w", err))
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, b := range balances {
		if _, err := stmt.ExecContext(ctx, b.OwnerID, b.Year, b.Month, closings[i], now); err != nil {
			return storeErr("commit cascade", fmt.Errorf("upsert %d-%02d: %w", b.Year, b.Month, err))
		}
	}
	return nil
}
