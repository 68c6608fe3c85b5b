package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tesouraria/internal/calculator"
	"tesouraria/internal/core"
)

// YearReport aggregates the owner's fiscal year. Month rows form a fresh
// chain from month 1 through month 12, independent of stored balances. With
// month set only that row is returned, still opened from the chain.
func (r *Recalculator) YearReport(ctx context.Context, ownerID string, month int) (core.YearReport, error) {
	if month != 0 && !core.ValidMonth(month) {
		return core.YearReport{}, &core.ValidationError{Field: "month", Err: core.ErrInvalidMonth}
	}
	s, err := r.loadSettings(ctx, ownerID)
	if err != nil {
		return core.YearReport{}, err
	}
	entries, err := r.store.EntriesFor(ctx, ownerID, core.EntryFilter{Year: s.fiscalYear})
	if err != nil {
		return core.YearReport{}, fmt.Errorf("load entries: %w", err)
	}
	sortEntries(entries)

	report := core.YearReport{
		OwnerID:       ownerID,
		Configuration: s.cfg,
		FiscalYear:    s.fiscalYear,
		Opening:       s.opening,
	}
	if !s.found {
		report.Configuration = core.Configuration{OwnerID: ownerID, FiscalYear: s.fiscalYear}
	}

	totals := calculator.Compute(s.opening, entries)
	report.TotalIncome = totals.Income
	report.TotalExpense = totals.Expense
	report.Closing = totals.Closing

	sums := calculator.ByCategory(entries)
	for _, c := range core.Categories() {
		report.ByCategory = append(report.ByCategory, core.CategoryAmount{
			Category: c,
			Label:    c.Label(),
			Amount:   sums[c],
		})
	}

	byMonth := make(map[int][]core.Entry)
	for _, e := range entries {
		byMonth[e.Date.Month()] = append(byMonth[e.Date.Month()], e)
	}
	opening := s.opening
	for m := 1; m <= 12; m++ {
		t := calculator.Compute(opening, byMonth[m])
		row := core.MonthRow{
			PeriodTotals: core.PeriodTotals{
				Year:    s.fiscalYear,
				Month:   m,
				Opening: opening,
				Income:  t.Income,
				Expense: t.Expense,
				Closing: t.Closing,
			},
			Entries: byMonth[m],
		}
		if month == 0 || month == m {
			report.Months = append(report.Months, row)
		}
		opening = t.Closing
	}
	return report, nil
}

// ListEntries returns the owner's entries for the filter ordered by date
// then id.
func (r *Recalculator) ListEntries(ctx context.Context, ownerID string, filter core.EntryFilter) ([]core.Entry, error) {
	if filter.Month != 0 && !core.ValidMonth(filter.Month) {
		return nil, &core.ValidationError{Field: "month", Err: core.ErrInvalidMonth}
	}
	entries, err := r.store.EntriesFor(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	sortEntries(entries)
	return entries, nil
}

// ChainTotals expands stored balances into per-month totals, reading the
// entries once. Months without a stored balance are skipped.
func (r *Recalculator) ChainTotals(ctx context.Context, ownerID string) ([]core.PeriodTotals, error) {
	s, err := r.loadSettings(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	balances, err := r.store.ListBalances(ctx, ownerID, s.fiscalYear)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	entries, err := r.store.EntriesFor(ctx, ownerID, core.EntryFilter{Year: s.fiscalYear})
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	byMonth := make(map[int][]core.Entry)
	for _, e := range entries {
		byMonth[e.Date.Month()] = append(byMonth[e.Date.Month()], e)
	}
	stored := make(map[int]decimal.Decimal, len(balances))
	for _, b := range balances {
		stored[b.Month] = b.Closing
	}

	out := make([]core.PeriodTotals, 0, len(balances))
	for _, b := range balances {
		opening := decimal.Zero
		if b.Month == 1 {
			opening = s.opening
		} else if prev, ok := stored[b.Month-1]; ok {
			opening = prev
		}
		t := calculator.Compute(opening, byMonth[b.Month])
		out = append(out, core.PeriodTotals{
			Year:    b.Year,
			Month:   b.Month,
			Opening: opening,
			Income:  t.Income,
			Expense: t.Expense,
			Closing: b.Closing,
		})
	}
	return out, nil
}
