package memory

import (
	"context"
	"errors"
	"testing"

	"tesouraria/internal/core"
)

func TestRecorderKeepsExportsInOrder(t *testing.T) {
	r := New()
	ctx := context.Background()
	if err := r.ExportBalances(ctx, "u1", 2025, []core.PeriodTotals{{Year: 2025, Month: 1}}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := r.ExportBalances(ctx, "u2", 2025, nil); err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := r.ExportBalances(ctx, "u1", 2025, []core.PeriodTotals{{Year: 2025, Month: 1}, {Year: 2025, Month: 2}}); err != nil {
		t.Fatalf("export: %v", err)
	}

	if got := len(r.Exports()); got != 3 {
		t.Fatalf("expected 3 exports, got %d", got)
	}
	last, ok := r.Last("u1")
	if !ok || len(last.Rows) != 2 {
		t.Fatalf("unexpected last export for u1: %+v ok=%v", last, ok)
	}
	if _, ok := r.Last("missing"); ok {
		t.Fatal("expected no export for unknown owner")
	}
}

func TestRecorderFailWith(t *testing.T) {
	r := New()
	boom := errors.New("boom")
	r.FailWith(boom)
	if err := r.ExportBalances(context.Background(), "u1", 2025, nil); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	r.FailWith(nil)
	if err := r.ExportBalances(context.Background(), "u1", 2025, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Exports()) != 1 {
		t.Fatalf("failed export must not be recorded")
	}
}
