// Package ledger implements the monthly balance cascade of an owner's ledger.
//
// Every month's closing balance is its opening plus income minus expense, and
// the opening of month m is the closing of month m-1. Month 1 opens with the
// configured opening balance. The cascade only ever operates on the owner's
// fiscal year: requests for any other year are answered for the fiscal year.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tesouraria/internal/calculator"
	"tesouraria/internal/core"
	"tesouraria/internal/log"
	"tesouraria/internal/metrics"
)

// Stores is what the cascade reads from and writes to.
type Stores interface {
	EntryStore
	ConfigurationStore
	BalanceStore
}

// TxStores are Stores that can run a cascade as one transaction.
type TxStores interface {
	Stores
	Transactor
}

// Recalculator runs the balance cascade. Runs for the same owner are
// serialized, different owners proceed in parallel. Each run happens inside
// the store's cascade transaction, so recalculators in other processes on
// the same backend are serialized as well.
type Recalculator struct {
	store  TxStores
	locks  *ownerLocks
	logger *log.Logger
	now    func() time.Time
}

func NewRecalculator(store TxStores, logger *log.Logger) *Recalculator {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Recalculator{
		store:  store,
		locks:  newOwnerLocks(),
		logger: logger.WithComponent(log.ComponentCascade),
		now:    time.Now,
	}
}

// WithClock replaces the clock used to pick the default fiscal year.
func (r *Recalculator) WithClock(now func() time.Time) *Recalculator {
	r.now = now
	return r
}

// settings is the part of the configuration the cascade depends on.
type settings struct {
	fiscalYear int
	opening    decimal.Decimal
	cfg        core.Configuration
	found      bool
}

// loadSettings reads the owner's configuration. A missing configuration or
// one without a fiscal year falls back to the current year, and a missing
// configuration opens at zero.
func (r *Recalculator) loadSettings(ctx context.Context, ownerID string) (settings, error) {
	return r.loadSettingsFrom(ctx, r.store, ownerID)
}

func (r *Recalculator) loadSettingsFrom(ctx context.Context, cs ConfigurationStore, ownerID string) (settings, error) {
	cfg, found, err := cs.GetConfiguration(ctx, ownerID)
	if err != nil {
		return settings{}, fmt.Errorf("load configuration: %w", err)
	}
	s := settings{fiscalYear: cfg.FiscalYear, opening: decimal.Zero, cfg: cfg, found: found}
	if found {
		s.opening = cfg.OpeningBalance
	}
	if !found || cfg.FiscalYear == 0 {
		s.fiscalYear = r.now().Year()
	}
	return s, nil
}

// RecalculateAll recomputes and persists the closing balance of every month
// of the fiscal year that has entries or already holds a stored balance.
// Stored balances of other years are moved to the fiscal year in the same
// commit. The returned balances are ordered by month.
func (r *Recalculator) RecalculateAll(ctx context.Context, ownerID string) ([]core.MonthlyBalance, error) {
	return r.run(ctx, ownerID, false)
}

// RecalculateFullYear is RecalculateAll over all twelve months, so that every
// month ends up with a stored balance.
func (r *Recalculator) RecalculateFullYear(ctx context.Context, ownerID string) ([]core.MonthlyBalance, error) {
	return r.run(ctx, ownerID, true)
}

func (r *Recalculator) run(ctx context.Context, ownerID string, fullYear bool) ([]core.MonthlyBalance, error) {
	unlock := r.locks.Lock(ownerID)
	defer unlock()

	start := time.Now()
	balances, err := r.cascade(ctx, ownerID, fullYear)
	metrics.CascadeDuration.Observe(time.Since(start).Seconds())
	metrics.ObserveCascade(len(balances), err)
	if err != nil {
		r.logger.ErrorContext(ctx, "Balance cascade failed",
			log.FieldOwnerID, ownerID,
			log.FieldError, err)
		return nil, err
	}

	r.logger.InfoContext(ctx, "Balance cascade completed",
		log.FieldOwnerID, ownerID,
		log.FieldPeriods, len(balances),
		log.FieldDuration, time.Since(start).Milliseconds())
	return balances, nil
}

func (r *Recalculator) cascade(ctx context.Context, ownerID string, fullYear bool) ([]core.MonthlyBalance, error) {
	var balances []core.MonthlyBalance
	err := r.store.InCascadeTx(ctx, ownerID, func(tx Stores) error {
		var err error
		balances, err = r.cascadeTx(ctx, tx, ownerID, fullYear)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

func (r *Recalculator) cascadeTx(ctx context.Context, tx Stores, ownerID string, fullYear bool) ([]core.MonthlyBalance, error) {
	s, err := r.loadSettingsFrom(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}

	entries, err := tx.EntriesFor(ctx, ownerID, core.EntryFilter{Year: s.fiscalYear})
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	byMonth := make(map[int][]core.Entry)
	months := make(map[int]bool)
	for _, e := range entries {
		m := e.Date.Month()
		byMonth[m] = append(byMonth[m], e)
		months[m] = true
	}

	periods, err := tx.DistinctPeriods(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load stored periods: %w", err)
	}
	for _, p := range periods {
		if !core.ValidMonth(p.Month) {
			r.logger.WarnContext(ctx, "Ignoring stored balance with invalid month",
				log.FieldOwnerID, ownerID,
				log.FieldYear, p.Year,
				log.FieldMonth, p.Month)
			continue
		}
		if p.Year != s.fiscalYear {
			r.logger.DebugContext(ctx, "Re-tagging stale balance to fiscal year",
				log.FieldOwnerID, ownerID,
				log.FieldYear, p.Year,
				log.FieldMonth, p.Month,
				log.FieldFiscalYear, s.fiscalYear)
		}
		months[p.Month] = true
	}
	if fullYear {
		for m := 1; m <= 12; m++ {
			months[m] = true
		}
	}

	ordered := make([]int, 0, len(months))
	for m := range months {
		ordered = append(ordered, m)
	}
	sort.Ints(ordered)

	closings := make(map[int]decimal.Decimal, len(ordered))
	balances := make([]core.MonthlyBalance, 0, len(ordered))
	for _, m := range ordered {
		opening := decimal.Zero
		if m == 1 {
			opening = s.opening
		} else if prev, ok := closings[m-1]; ok {
			opening = prev
		}
		t := calculator.Compute(opening, byMonth[m])
		if _, err := core.ToCents(t.Closing); err != nil {
			return nil, fmt.Errorf("month %d: %w", m, &core.ValidationError{Field: "closing", Err: err})
		}
		closings[m] = t.Closing
		balances = append(balances, core.MonthlyBalance{
			OwnerID: ownerID,
			Year:    s.fiscalYear,
			Month:   m,
			Closing: t.Closing,
		})
	}

	if err := tx.CommitCascade(ctx, ownerID, s.fiscalYear, balances); err != nil {
		return nil, fmt.Errorf("commit balances: %w", err)
	}
	return balances, nil
}
