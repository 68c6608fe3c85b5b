package ledger

import (
	"context"

	"tesouraria/internal/core"
)

// Ports for the persistence adapters. Every method is scoped by owner id.
type (
	EntryStore interface {
		// EntriesFor returns the owner's entries matching the filter.
		EntriesFor(ctx context.Context, ownerID string, filter core.EntryFilter) ([]core.Entry, error)
		// GetEntry returns core.ErrNotFound when the entry does not exist.
		GetEntry(ctx context.Context, ownerID, entryID string) (core.Entry, error)
		UpsertEntry(ctx context.Context, e core.Entry) error
		// DeleteEntry returns core.ErrNotFound when the entry does not exist.
		DeleteEntry(ctx context.Context, ownerID, entryID string) error
	}

	ConfigurationStore interface {
		GetConfiguration(ctx context.Context, ownerID string) (cfg core.Configuration, found bool, err error)
		UpsertConfiguration(ctx context.Context, cfg core.Configuration) error
		ListConfigurations(ctx context.Context) ([]core.Configuration, error)
	}

	BalanceStore interface {
		GetBalance(ctx context.Context, ownerID string, year, month int) (b core.MonthlyBalance, found bool, err error)
		UpsertBalance(ctx context.Context, b core.MonthlyBalance) error
		// DistinctPeriods returns every (year, month) holding a stored balance.
		DistinctPeriods(ctx context.Context, ownerID string) ([]core.Period, error)
		// ListBalances returns the stored balances of a year ordered by month.
		ListBalances(ctx context.Context, ownerID string, year int) ([]core.MonthlyBalance, error)
		// CommitCascade atomically drops the owner's balances outside
		// fiscalYear and upserts the given set.
		CommitCascade(ctx context.Context, ownerID string, fiscalYear int, balances []core.MonthlyBalance) error
	}

	// Transactor runs fn with exclusive write access to the backend. Reads
	// and the commit made through tx see one state, and no other cascade
	// or write can interleave, including one from another process sharing
	// the backend. An error from fn discards everything done through tx.
	Transactor interface {
		InCascadeTx(ctx context.Context, ownerID string, fn func(tx Stores) error) error
	}

	// Store bundles the three stores behind one backend.
	Store interface {
		EntryStore
		ConfigurationStore
		BalanceStore
		Transactor
		// Owners lists every owner id known to any store.
		Owners(ctx context.Context) ([]string, error)
		Close() error
	}
)
