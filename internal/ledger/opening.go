package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tesouraria/internal/calculator"
	"tesouraria/internal/core"
	"tesouraria/internal/log"
)

// FiscalYear returns the year the owner's ledger operates on.
func (r *Recalculator) FiscalYear(ctx context.Context, ownerID string) (int, error) {
	s, err := r.loadSettings(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return s.fiscalYear, nil
}

// OpeningBalanceFor returns the opening balance of a month. Any year other
// than the fiscal year is replaced by the fiscal year. Month 1 opens with the
// configured opening balance, later months with the stored closing balance of
// the previous month, or zero when none is stored.
func (r *Recalculator) OpeningBalanceFor(ctx context.Context, ownerID string, month, year int) (decimal.Decimal, error) {
	if !core.ValidMonth(month) {
		return decimal.Zero, &core.ValidationError{Field: "month", Err: core.ErrInvalidMonth}
	}
	s, err := r.loadSettings(ctx, ownerID)
	if err != nil {
		return decimal.Zero, err
	}
	return r.openingFor(ctx, ownerID, month, year, s)
}

func (r *Recalculator) openingFor(ctx context.Context, ownerID string, month, year int, s settings) (decimal.Decimal, error) {
	if year != s.fiscalYear {
		r.logger.DebugContext(ctx, "Substituting fiscal year",
			log.FieldOwnerID, ownerID,
			log.FieldYear, year,
			log.FieldFiscalYear, s.fiscalYear)
	}
	if month == 1 {
		return s.opening, nil
	}
	prev, found, err := r.store.GetBalance(ctx, ownerID, s.fiscalYear, month-1)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load balance: %w", err)
	}
	if !found {
		return decimal.Zero, nil
	}
	return prev.Closing, nil
}

// ComputePeriodTotals previews a month from its opening balance and current
// entries without persisting anything.
func (r *Recalculator) ComputePeriodTotals(ctx context.Context, ownerID string, month, year int) (core.PeriodTotals, error) {
	if !core.ValidMonth(month) {
		return core.PeriodTotals{}, &core.ValidationError{Field: "month", Err: core.ErrInvalidMonth}
	}
	s, err := r.loadSettings(ctx, ownerID)
	if err != nil {
		return core.PeriodTotals{}, err
	}
	opening, err := r.openingFor(ctx, ownerID, month, year, s)
	if err != nil {
		return core.PeriodTotals{}, err
	}
	entries, err := r.store.EntriesFor(ctx, ownerID, core.EntryFilter{Year: s.fiscalYear, Month: month})
	if err != nil {
		return core.PeriodTotals{}, fmt.Errorf("load entries: %w", err)
	}
	t := calculator.Compute(opening, entries)
	return core.PeriodTotals{
		Year:    s.fiscalYear,
		Month:   month,
		Opening: opening,
		Income:  t.Income,
		Expense: t.Expense,
		Closing: t.Closing,
	}, nil
}
