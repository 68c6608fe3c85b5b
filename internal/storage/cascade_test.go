package storage

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"tesouraria/internal/core"
	"tesouraria/internal/ledger"
)

func TestCascadeAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	cfg := core.DefaultConfiguration("u1", "", 2025)
	cfg.OpeningBalance = decimal.NewFromInt(100)
	if err := repo.UpsertConfiguration(ctx, cfg); err != nil {
		t.Fatalf("configure: %v", err)
	}
	for _, e := range []core.Entry{
		entry("u1", "jan-in", 1, core.IncomeOther, "200"),
		entry("u1", "jan-out", 1, core.ExpenseOther, "50"),
		entry("u1", "feb-out", 2, core.ExpenseTransferOut, "100"),
	} {
		if err := repo.UpsertEntry(ctx, e); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	r := ledger.NewRecalculator(repo, nil)
	if _, err := r.RecalculateAll(ctx, "u1"); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	march, err := r.OpeningBalanceFor(ctx, "u1", 3, 2025)
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	if !march.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("march opening = %s, want 150", march)
	}
}
