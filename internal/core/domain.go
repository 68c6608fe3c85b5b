package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	IncomeOther        Category = "income_other"
	IncomeTransferIn   Category = "income_transfer_in"
	ExpenseOther       Category = "expense_other"
	ExpenseTransferOut Category = "expense_transfer_out"
)

// MaxDescriptionLength bounds Entry.Description in runes.
const MaxDescriptionLength = 200

type (
	Category string

	Date struct {
		time.Time
	}

	// Entry is a single dated income or expense line of an owner.
	Entry struct {
		OwnerID     string
		ID          string
		Date        Date
		Category    Category
		Description string
		Amount      decimal.Decimal // non-negative, sign comes from Category
		ReceiptRef  string          // optional link to a receipt document
	}

	// EntryFilter narrows an entry listing. Zero fields match everything.
	EntryFilter struct {
		Year  int
		Month int
	}

	Period struct {
		Year  int
		Month int // 1-12
	}

	// Configuration is the per-owner ledger setup. FiscalYear and
	// OpeningBalance drive the cascade, the rest is descriptive metadata.
	Configuration struct {
		OwnerID            string
		FiscalYear         int
		OpeningBalance     decimal.Decimal
		Organization       string
		Federation         string
		ActiveMembers      int
		CooperatingMembers int
		Treasurer          string
		Email              string
		AdminID            string
	}

	// MonthlyBalance is the persisted closing balance of one month.
	MonthlyBalance struct {
		OwnerID string
		Year    int
		Month   int
		Closing decimal.Decimal
	}

	// PeriodTotals is the derived view of one month, never persisted.
	PeriodTotals struct {
		Year    int
		Month   int
		Opening decimal.Decimal
		Income  decimal.Decimal
		Expense decimal.Decimal
		Closing decimal.Decimal
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidYear       = errors.New("invalid fiscal year")
	ErrEmptyDescription  = errors.New("empty description")
	ErrDescriptionLength = errors.New("description too long")
	ErrEmptyOwner        = errors.New("empty owner id")
	ErrDuplicateEmail    = errors.New("email already in use")
	ErrNotFound          = errors.New("not found")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StoreError wraps a persistence failure with the operation that produced it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var categoryLabels = map[Category]string{
	IncomeOther:        "Outras Receitas",
	IncomeTransferIn:   "ACI Recebida",
	ExpenseOther:       "Outras Despesas",
	ExpenseTransferOut: "ACI Enviada",
}

// Categories lists every category in report order.
func Categories() []Category {
	return []Category{IncomeOther, IncomeTransferIn, ExpenseOther, ExpenseTransferOut}
}

func (c Category) IsIncome() bool {
	return c == IncomeOther || c == IncomeTransferIn
}

func (c Category) IsExpense() bool {
	return c == ExpenseOther || c == ExpenseTransferOut
}

func (c Category) Validate() error {
	if _, ok := categoryLabels[c]; !ok {
		return ErrInvalidCategory
	}
	return nil
}

// Label returns the display name used on reports.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// ParseCategory accepts either the category name or its display label.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if c := Category(s); c.Validate() == nil {
		return c, nil
	}
	for c, l := range categoryLabels {
		if strings.EqualFold(l, s) {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

func NewDate(year, month, day int) Date {
	return Date{time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate reads an ISO date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// ValidMonth reports whether m is a calendar month number.
func ValidMonth(m int) bool {
	return m >= 1 && m <= 12
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.OwnerID) == "" {
		return &ValidationError{Field: "owner_id", Err: ErrEmptyOwner}
	}
	if err := e.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Err: err}
	}
	if err := e.Category.Validate(); err != nil {
		return &ValidationError{Field: "category", Err: err}
	}
	desc := strings.TrimSpace(e.Description)
	if desc == "" {
		return &ValidationError{Field: "description", Err: ErrEmptyDescription}
	}
	if len([]rune(desc)) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Err: ErrDescriptionLength}
	}
	if err := ValidateAmount(e.Amount); err != nil {
		return &ValidationError{Field: "amount", Err: err}
	}
	return nil
}

// Matches reports whether the entry falls inside the filter.
func (f EntryFilter) Matches(e Entry) bool {
	if f.Year != 0 && e.Date.Year() != f.Year {
		return false
	}
	if f.Month != 0 && e.Date.Month() != f.Month {
		return false
	}
	return true
}

const (
	MinFiscalYear = 2000
	MaxFiscalYear = 2100
)

func (c Configuration) Validate() error {
	if strings.TrimSpace(c.OwnerID) == "" {
		return &ValidationError{Field: "owner_id", Err: ErrEmptyOwner}
	}
	if c.FiscalYear < MinFiscalYear || c.FiscalYear > MaxFiscalYear {
		return &ValidationError{Field: "fiscal_year", Err: ErrInvalidYear}
	}
	if err := ValidateAmount(c.OpeningBalance); err != nil {
		return &ValidationError{Field: "opening_balance", Err: err}
	}
	if c.ActiveMembers < 0 || c.CooperatingMembers < 0 {
		return &ValidationError{Field: "members", Err: errors.New("must not be negative")}
	}
	return nil
}

// DefaultConfiguration is what a freshly provisioned owner starts with.
func DefaultConfiguration(ownerID, adminID string, fiscalYear int) Configuration {
	return Configuration{
		OwnerID:        ownerID,
		FiscalYear:     fiscalYear,
		OpeningBalance: decimal.Zero,
		Organization:   "UMP Federação",
		Federation:     "Nome do Sinodo",
		Treasurer:      "Nome do Tesoureiro",
		AdminID:        adminID,
	}
}
