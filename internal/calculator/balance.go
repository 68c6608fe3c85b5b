// Package calculator holds the pure balance arithmetic of the ledger.
package calculator

import (
	"github.com/shopspring/decimal"

	"tesouraria/internal/core"
)

// Totals is the outcome of one month.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Closing decimal.Decimal
}

// Compute sums a month's entries and derives the closing balance.
//
// Algorithm:
// - income = sum of amounts whose category is an income category
// - expense = sum of amounts whose category is an expense category
// - closing = opening + income - expense
//
// Entries with an unknown category contribute nothing.
func Compute(opening decimal.Decimal, entries []core.Entry) Totals {
	income := decimal.Zero
	expense := decimal.Zero
	for _, e := range entries {
		switch {
		case e.Category.IsIncome():
			income = income.Add(e.Amount)
		case e.Category.IsExpense():
			expense = expense.Add(e.Amount)
		}
	}
	return Totals{
		Income:  income,
		Expense: expense,
		Closing: opening.Add(income).Sub(expense),
	}
}

// ByCategory sums entry amounts per category. Every known category is present
// in the result, with zero when it has no entries.
func ByCategory(entries []core.Entry) map[core.Category]decimal.Decimal {
	out := make(map[core.Category]decimal.Decimal, 4)
	for _, c := range core.Categories() {
		out[c] = decimal.Zero
	}
	for _, e := range entries {
		if _, ok := out[e.Category]; !ok {
			continue
		}
		out[e.Category] = out[e.Category].Add(e.Amount)
	}
	return out
}
