package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"tesouraria/internal/core"
)

const entryColumns = `owner_id, id, entry_date, category, description, amount_cents, receipt_ref`

func scanEntry(s interface{ Scan(...any) error }) (core.Entry, error) {
	var (
		e        core.Entry
		date     string
		category string
		cents    int64
	)
	if err := s.Scan(&e.OwnerID, &e.ID, &date, &category, &e.Description, &cents, &e.ReceiptRef); err != nil {
		return core.Entry{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Entry{}, err
	}
	e.Date = d
	e.Category = core.Category(category)
	e.Amount = core.FromCents(cents)
	return e, nil
}

// EntriesFor implements ledger.EntryStore
func (r *SQLiteRepository) EntriesFor(ctx context.Context, ownerID string, filter core.EntryFilter) ([]core.Entry, error) {
	var (
		where = []string{"owner_id = ?"}
		args  = []any{ownerID}
	)
	if filter.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, filter.Year)
	}
	if filter.Month != 0 {
		where = append(where, "month = ?")
		args = append(args, filter.Month)
	}
	query := `SELECT ` + entryColumns + ` FROM entries WHERE ` + strings.Join(where, " AND ") + ` ORDER BY entry_date, id`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list entries", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, storeErr("scan entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list entries", err)
	}
	return entries, nil
}

// GetEntry implements ledger.EntryStore
func (r *SQLiteRepository) GetEntry(ctx context.Context, ownerID, entryID string) (core.Entry, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE owner_id = ? AND id = ?`, ownerID, entryID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, core.ErrNotFound
	}
	if err != nil {
		return core.Entry{}, storeErr("get entry", err)
	}
	return e, nil
}

// UpsertEntry implements ledger.EntryStore
func (r *SQLiteRepository) UpsertEntry(ctx context.Context, e core.Entry) error {
	amount, err := cents("upsert entry", "amount", e.Amount)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO entries (owner_id, id, entry_date, year, month, category, description, amount_cents, receipt_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, id) DO UPDATE SET
			entry_date = excluded.entry_date,
			year = excluded.year,
			month = excluded.month,
			category = excluded.category,
			description = excluded.description,
			amount_cents = excluded.amount_cents,
			receipt_ref = excluded.receipt_ref,
			updated_at = ?`,
		e.OwnerID, e.ID, e.Date.String(), e.Date.Year(), e.Date.Month(), string(e.Category),
		e.Description, amount, e.ReceiptRef, time.Now().UTC())
	if err != nil {
		return storeErr("upsert entry", err)
	}
	return nil
}

// DeleteEntry implements ledger.EntryStore
func (r *SQLiteRepository) DeleteEntry(ctx context.Context, ownerID, entryID string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM entries WHERE owner_id = ? AND id = ?`, ownerID, entryID)
	if err != nil {
		return storeErr("delete entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("delete entry", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
