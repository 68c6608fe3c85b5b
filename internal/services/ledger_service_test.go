package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tesouraria/internal/amqp"
	"tesouraria/internal/core"
	"tesouraria/internal/ledger"
	"tesouraria/internal/storage/memory"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages []amqp.RecalculateMessage
	err      error
}

func (p *fakePublisher) PublishRecalculate(_ context.Context, ownerID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, amqp.RecalculateMessage{OwnerID: ownerID, Reason: reason})
	return nil
}

func clock() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

func newService(t *testing.T, mode string, pub RecalcPublisher) (*LedgerService, *memory.Store) {
	t.Helper()
	store := memory.New()
	recalc := ledger.NewRecalculator(store, nil).WithClock(clock)
	svc := NewLedgerService(store, recalc, pub, mode, nil)
	svc.now = clock
	return svc, store
}

func newEntry(month int, c core.Category, amount string) core.Entry {
	return core.Entry{
		OwnerID:     "u1",
		Date:        core.NewDate(2025, month, 3),
		Category:    c,
		Description: "  dues  ",
		Amount:      decimal.RequireFromString(amount),
	}
}

func closing(t *testing.T, store *memory.Store, month int) decimal.Decimal {
	t.Helper()
	b, found, err := store.GetBalance(context.Background(), "u1", 2025, month)
	if err != nil || !found {
		t.Fatalf("balance %d: found=%v err=%v", month, found, err)
	}
	return b.Closing
}

func TestSyncModeRecalculatesInline(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, ModeSync, nil)
	if _, _, err := svc.ProvisionOwner(ctx, "u1", "admin", 2025); err != nil {
		t.Fatalf("provision: %v", err)
	}

	created, err := svc.CreateEntry(ctx, newEntry(1, core.IncomeOther, "200"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.Description != "dues" {
		t.Fatalf("unexpected created entry %+v", created)
	}
	if got := closing(t, store, 12); !got.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("december = %s, want 200", got)
	}

	created.Amount = decimal.NewFromInt(50)
	created.ReceiptRef = ""
	if _, err := svc.UpdateEntry(ctx, created); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := closing(t, store, 6); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("june = %s, want 50", got)
	}

	if err := svc.DeleteEntry(ctx, "u1", created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := closing(t, store, 1); !got.IsZero() {
		t.Fatalf("january = %s, want 0", got)
	}
}

func TestAsyncModePublishes(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc, store := newService(t, ModeAsync, pub)

	if _, err := svc.CreateEntry(ctx, newEntry(2, core.ExpenseOther, "10")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(pub.messages) != 1 || pub.messages[0].Reason != amqp.ReasonEntryCreated {
		t.Fatalf("expected one entry_created message, got %+v", pub.messages)
	}
	if periods, _ := store.DistinctPeriods(ctx, "u1"); len(periods) != 0 {
		t.Fatalf("async mode must leave balances to the worker")
	}
}

func TestAsyncModeFallsBackWhenPublishFails(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{err: amqp.ErrCircuitOpen}
	svc, store := newService(t, ModeAsync, pub)

	if _, err := svc.CreateEntry(ctx, newEntry(2, core.IncomeOther, "10")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := closing(t, store, 2); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("february = %s, want 10", got)
	}
}

func TestCreateEntryValidation(t *testing.T) {
	svc, store := newService(t, ModeSync, nil)
	e := newEntry(1, "donation", "10")
	if _, err := svc.CreateEntry(context.Background(), e); !errors.Is(err, core.ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
	if entries, _ := store.EntriesFor(context.Background(), "u1", core.EntryFilter{}); len(entries) != 0 {
		t.Fatalf("invalid entry must not be stored")
	}
}

func TestUpdateAndDeleteMissingEntry(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, ModeSync, nil)
	e := newEntry(1, core.IncomeOther, "1")
	e.ID = "missing"
	if _, err := svc.UpdateEntry(ctx, e); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("update: expected ErrNotFound, got %v", err)
	}
	if err := svc.DeleteEntry(ctx, "u1", "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("delete: expected ErrNotFound, got %v", err)
	}
}

func TestUpdateKeepsReceipt(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, ModeSync, nil)
	e := newEntry(1, core.IncomeOther, "1")
	e.ReceiptRef = "r-1"
	created, err := svc.CreateEntry(ctx, e)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	created.ReceiptRef = ""
	if _, err := svc.UpdateEntry(ctx, created); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := store.GetEntry(ctx, "u1", created.ID)
	if got.ReceiptRef != "r-1" {
		t.Fatalf("receipt = %q, want r-1", got.ReceiptRef)
	}
}

func TestProvisionOwnerIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, ModeSync, nil)

	cfg, created, err := svc.ProvisionOwner(ctx, "u1", "admin", 0)
	if err != nil || !created {
		t.Fatalf("provision: created=%v err=%v", created, err)
	}
	if cfg.FiscalYear != 2025 || cfg.AdminID != "admin" {
		t.Fatalf("unexpected configuration %+v", cfg)
	}
	balances, _ := store.ListBalances(ctx, "u1", 2025)
	if len(balances) != 12 {
		t.Fatalf("expected 12 seeded balances, got %d", len(balances))
	}
	for _, b := range balances {
		if !b.Closing.IsZero() {
			t.Fatalf("seeded balance %+v should be zero", b)
		}
	}

	cfg.OpeningBalance = decimal.NewFromInt(10)
	if _, err := svc.SaveConfiguration(ctx, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	again, created, err := svc.ProvisionOwner(ctx, "u1", "other-admin", 2030)
	if err != nil || created {
		t.Fatalf("second provision: created=%v err=%v", created, err)
	}
	if again.FiscalYear != 2025 || !again.OpeningBalance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("existing configuration must be kept, got %+v", again)
	}
}

func TestSaveConfigurationRetagsYear(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, ModeSync, nil)
	if _, _, err := svc.ProvisionOwner(ctx, "u1", "admin", 2024); err != nil {
		t.Fatalf("provision: %v", err)
	}
	cfg, _ := svc.GetConfiguration(ctx, "u1")
	cfg.FiscalYear = 2025
	cfg.OpeningBalance = decimal.RequireFromString("75.50")
	cfg.AdminID = ""
	saved, err := svc.SaveConfiguration(ctx, cfg)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.AdminID != "admin" {
		t.Fatalf("admin should be preserved, got %q", saved.AdminID)
	}
	periods, _ := store.DistinctPeriods(ctx, "u1")
	if len(periods) != 12 {
		t.Fatalf("expected 12 periods, got %d", len(periods))
	}
	for _, p := range periods {
		if p.Year != 2025 {
			t.Fatalf("stale period %+v", p)
		}
	}
	if got := closing(t, store, 12); !got.Equal(decimal.RequireFromString("75.50")) {
		t.Fatalf("december = %s, want 75.50", got)
	}
}

func TestSaveConfigurationValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, ModeSync, nil)

	a := core.DefaultConfiguration("a", "", 2025)
	a.Email = "treasurer@example.org"
	if _, err := svc.SaveConfiguration(ctx, a); err != nil {
		t.Fatalf("save a: %v", err)
	}

	b := core.DefaultConfiguration("b", "", 2025)
	b.Email = "Treasurer@Example.org"
	if _, err := svc.SaveConfiguration(ctx, b); !errors.Is(err, core.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	// re-saving the same owner keeps its own address
	if _, err := svc.SaveConfiguration(ctx, a); err != nil {
		t.Fatalf("resave a: %v", err)
	}

	bad := core.DefaultConfiguration("c", "", 2101)
	if _, err := svc.SaveConfiguration(ctx, bad); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetConfigurationNotFound(t *testing.T) {
	svc, _ := newService(t, ModeSync, nil)
	if _, err := svc.GetConfiguration(context.Background(), "nobody"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestManagedOwners(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, ModeSync, nil)
	for _, owner := range []string{"u1", "u2"} {
		if _, _, err := svc.ProvisionOwner(ctx, owner, "admin-1", 2025); err != nil {
			t.Fatalf("provision: %v", err)
		}
	}
	if _, _, err := svc.ProvisionOwner(ctx, "u3", "admin-2", 2025); err != nil {
		t.Fatalf("provision: %v", err)
	}

	managed, err := svc.ManagedOwners(ctx, "admin-1")
	if err != nil {
		t.Fatalf("managed: %v", err)
	}
	if len(managed) != 2 || managed[0].OwnerID != "u1" || managed[1].OwnerID != "u2" {
		t.Fatalf("unexpected managed owners %+v", managed)
	}
	none, _ := svc.ManagedOwners(ctx, "")
	if len(none) != 0 {
		t.Fatalf("empty admin id must not match unmanaged owners")
	}
}

func TestStoreErrorSurfacesFromCascade(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, ModeSync, nil)
	boom := errors.New("write failed")
	store.FailOn(memory.OpCommitCascade, boom)

	_, err := svc.CreateEntry(ctx, newEntry(1, core.IncomeOther, "1"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected cascade error, got %v", err)
	}
}

func TestLedgerService_Close(t *testing.T) {
	svc, _ := newService(t, ModeSync, nil)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close should not return error: %v", err)
	}
}
