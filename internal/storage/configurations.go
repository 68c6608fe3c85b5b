package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tesouraria/internal/core"
)

const configurationColumns = `owner_id, fiscal_year, opening_balance_cents, organization, federation,
	active_members, cooperating_members, treasurer, email, admin_id`

func scanConfiguration(s interface{ Scan(...any) error }) (core.Configuration, error) {
	var (
		c     core.Configuration
		cents int64
	)
	err := s.Scan(&c.OwnerID, &c.FiscalYear, &cents, &c.Organization, &c.Federation,
		&c.ActiveMembers, &c.CooperatingMembers, &c.Treasurer, &c.Email, &c.AdminID)
	if err != nil {
		return core.Configuration{}, err
	}
	c.OpeningBalance = core.FromCents(cents)
	return c, nil
}

// GetConfiguration implements ledger.ConfigurationStore
func (r *SQLiteRepository) GetConfiguration(ctx context.Context, ownerID string) (core.Configuration, bool, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+configurationColumns+` FROM configurations WHERE owner_id = ?`, ownerID)
	c, err := scanConfiguration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Configuration{}, false, nil
	}
	if err != nil {
		return core.Configuration{}, false, storeErr("get configuration", err)
	}
	return c, true, nil
}

// UpsertConfiguration implements ledger.ConfigurationStore
func (r *SQLiteRepository) UpsertConfiguration(ctx context.Context, c core.Configuration) error {
	opening, err := cents("upsert configuration", "opening balance", c.OpeningBalance)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO configurations (`+configurationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET
			fiscal_year = excluded.fiscal_year,
			opening_balance_cents = excluded.opening_balance_cents,
			organization = excluded.organization,
			federation = excluded.federation,
			active_members = excluded.active_members,
			cooperating_members = excluded.cooperating_members,
			treasurer = excluded.treasurer,
			email = excluded.email,
			admin_id = excluded.admin_id,
			updated_at = ?`,
		c.OwnerID, c.FiscalYear, opening, c.Organization, c.Federation,
		c.ActiveMembers, c.CooperatingMembers, c.Treasurer, c.Email, c.AdminID, time.Now().UTC())
	if err != nil {
		return storeErr("upsert configuration", err)
	}
	return nil
}

// ListConfigurations implements ledger.ConfigurationStore
func (r *SQLiteRepository) ListConfigurations(ctx context.Context) ([]core.Configuration, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+configurationColumns+` FROM configurations ORDER BY owner_id`)
	if err != nil {
		return nil, storeErr("list configurations", err)
	}
	defer rows.Close()

	var out []core.Configuration
	for rows.Next() {
		c, err := scanConfiguration(rows)
		if err != nil {
			return nil, storeErr("scan configuration", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list configurations", err)
	}
	return out, nil
}
