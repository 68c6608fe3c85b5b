package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"1.0", "1.00", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"0", "0.00", true},
		{"1.005", "1.01", true}, // half-up rounding
		{"12,344", "12.34", true},
		{" 2.50 ", "2.50", true},
		{"1.234,56", "1234.56", true},
		{"1.234.567,89", "1234567.89", true},
		{"1.234.567", "1234567.00", true},
		{"R$ 10,00", "10.00", true},
		{",5", "0.50", true},
		{"-1", "", false},
		{"+1", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"12.34,5", "", false},
		{"1,2,3", "", false},
		{"1,23.4", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.StringFixed(2) != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got.StringFixed(2), err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
	}
}

func TestValidateAmount(t *testing.T) {
	if err := ValidateAmount(decimal.RequireFromString("10.25")); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := ValidateAmount(decimal.Zero); err != nil {
		t.Fatalf("zero should be valid, got %v", err)
	}
	if err := ValidateAmount(decimal.RequireFromString("-0.01")); err == nil {
		t.Fatalf("expected error for negative")
	}
	if err := ValidateAmount(decimal.RequireFromString("1.001")); err == nil {
		t.Fatalf("expected error for three decimals")
	}
}

func TestCentsRoundTrip(t *testing.T) {
	d := decimal.RequireFromString("1234.56")
	c, err := ToCents(d)
	if err != nil || c != 123456 {
		t.Fatalf("expected 123456 cents, got %d (%v)", c, err)
	}
	if got := FromCents(123456); !got.Equal(d) {
		t.Fatalf("expected %s, got %s", d, got)
	}
	if c, _ := ToCents(decimal.RequireFromString("-50")); c != -5000 {
		t.Fatalf("expected -5000 cents, got %d", c)
	}
}

func TestToCentsOutOfRange(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"92233720368547758.07", false},
		{"-92233720368547758.07", false},
		{"92233720368547758.08", true},
		{"200000000000000000", true},
		{"-200000000000000000", true},
	}
	for _, tc := range cases {
		c, err := ToCents(decimal.RequireFromString(tc.in))
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("ToCents(%s) = %d, %v; want ErrInvalidAmount", tc.in, c, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ToCents(%s) unexpected error: %v", tc.in, err)
		}
	}
}

func TestValidateAmountUpperBound(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"10000000000000", false},
		{"10000000000000.01", true},
		{"100000000000000000", true},
		{"200000000000000000", true},
	}
	for _, tc := range cases {
		err := ValidateAmount(decimal.RequireFromString(tc.in))
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidateAmount(%s) = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
	}
}

func TestFormatBRL(t *testing.T) {
	cases := map[string]string{
		"0":         "R$ 0,00",
		"5.5":       "R$ 5,50",
		"999.99":    "R$ 999,99",
		"1234.56":   "R$ 1.234,56",
		"1234567.8": "R$ 1.234.567,80",
		"-250":      "-R$ 250,00",
	}
	for in, want := range cases {
		if got := FormatBRL(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatBRL(%s) = %q, want %q", in, got, want)
		}
	}
}
