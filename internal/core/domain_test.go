package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-09")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 2025 || d.Month() != 3 || d.Day() != 9 {
		t.Fatalf("unexpected date %v", d)
	}
	if _, err := ParseDate("09/03/2025"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestCategory(t *testing.T) {
	for _, c := range Categories() {
		if err := c.Validate(); err != nil {
			t.Fatalf("%s should be valid: %v", c, err)
		}
		if c.IsIncome() == c.IsExpense() {
			t.Fatalf("%s must be exactly one of income or expense", c)
		}
	}
	if err := Category("gift").Validate(); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}

	cases := map[string]Category{
		"income_other":    IncomeOther,
		"ACI Recebida":    IncomeTransferIn,
		"outras despesas": ExpenseOther,
		" ACI Enviada ":   ExpenseTransferOut,
	}
	for in, want := range cases {
		got, err := ParseCategory(in)
		if err != nil || got != want {
			t.Fatalf("ParseCategory(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
	if _, err := ParseCategory("Dízimo"); err == nil {
		t.Fatalf("expected error for unknown label")
	}
}

func TestEntryValidate(t *testing.T) {
	good := Entry{
		OwnerID:     "u1",
		Date:        NewDate(2025, 1, 1),
		Category:    IncomeOther,
		Description: "ok",
		Amount:      decimal.RequireFromString("1.00"),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	mutate := func(f func(*Entry)) Entry {
		e := good
		f(&e)
		return e
	}
	cases := []struct {
		name  string
		entry Entry
		field string
		want  error
	}{
		{"zero date", mutate(func(e *Entry) { e.Date = Date{} }), "date", ErrInvalidDate},
		{"bad category", mutate(func(e *Entry) { e.Category = "x" }), "category", ErrInvalidCategory},
		{"blank description", mutate(func(e *Entry) { e.Description = "  " }), "description", ErrEmptyDescription},
		{"long description", mutate(func(e *Entry) { e.Description = strings.Repeat("a", 201) }), "description", ErrDescriptionLength},
		{"negative amount", mutate(func(e *Entry) { e.Amount = decimal.RequireFromString("-1") }), "amount", ErrInvalidAmount},
		{"sub-cent amount", mutate(func(e *Entry) { e.Amount = decimal.RequireFromString("0.001") }), "amount", ErrInvalidAmount},
		{"amount beyond int64 cents", mutate(func(e *Entry) { e.Amount = decimal.RequireFromString("200000000000000000") }), "amount", ErrInvalidAmount},
		{"no owner", mutate(func(e *Entry) { e.OwnerID = "" }), "owner_id", ErrEmptyOwner},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.entry.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field || !errors.Is(err, tc.want) {
				t.Fatalf("got field %q err %v, want %q %v", ve.Field, ve.Err, tc.field, tc.want)
			}
		})
	}
}

func TestEntryFilterMatches(t *testing.T) {
	e := Entry{Date: NewDate(2025, 2, 10)}
	cases := []struct {
		f    EntryFilter
		want bool
	}{
		{EntryFilter{}, true},
		{EntryFilter{Year: 2025}, true},
		{EntryFilter{Year: 2025, Month: 2}, true},
		{EntryFilter{Month: 2}, true},
		{EntryFilter{Year: 2024}, false},
		{EntryFilter{Year: 2025, Month: 3}, false},
	}
	for i, tc := range cases {
		if got := tc.f.Matches(e); got != tc.want {
			t.Fatalf("case %d: got %v want %v", i, got, tc.want)
		}
	}
}

func TestConfigurationValidate(t *testing.T) {
	cfg := DefaultConfiguration("u1", "admin", 2025)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration should be valid: %v", err)
	}
	bad := cfg
	bad.FiscalYear = 1999
	if err := bad.Validate(); !errors.Is(err, ErrInvalidYear) {
		t.Fatalf("expected ErrInvalidYear, got %v", err)
	}
	bad = cfg
	bad.OpeningBalance = decimal.NewFromInt(-1)
	if err := bad.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	bad = cfg
	bad.OpeningBalance = decimal.RequireFromString("100000000000000000")
	if err := bad.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for oversized opening, got %v", err)
	}
}

func TestStoreErrorUnwrap(t *testing.T) {
	base := errors.New("disk full")
	err := &StoreError{Op: "upsert balance", Err: base}
	if !errors.Is(err, base) {
		t.Fatalf("StoreError should unwrap to the cause")
	}
	if IsValidation(err) {
		t.Fatalf("StoreError is not a validation error")
	}
}
