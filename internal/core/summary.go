package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Category Category
	Label    string
	Amount   decimal.Decimal
}

// MonthRow is one month of a year report.
type MonthRow struct {
	PeriodTotals
	Entries []Entry
}

// YearReport aggregates a fiscal year for rendering.
type YearReport struct {
	OwnerID       string
	Configuration Configuration
	FiscalYear    int
	ByCategory    []CategoryAmount
	TotalIncome   decimal.Decimal
	TotalExpense  decimal.Decimal
	Opening       decimal.Decimal
	Closing       decimal.Decimal // opening + income - expense over the year
	Months        []MonthRow
}
