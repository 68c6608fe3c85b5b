package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tesouraria/internal/core"
	"tesouraria/internal/ledger"
	"tesouraria/internal/storage/memory"
)

const owner = "owner-1"

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fixedClock() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }

func newLedger(t *testing.T) (*memory.Store, *ledger.Recalculator) {
	t.Helper()
	store := memory.New()
	return store, ledger.NewRecalculator(store, nil).WithClock(fixedClock)
}

func configure(t *testing.T, store *memory.Store, year int, opening string) {
	t.Helper()
	cfg := core.DefaultConfiguration(owner, "", year)
	cfg.OpeningBalance = amt(opening)
	if err := store.UpsertConfiguration(context.Background(), cfg); err != nil {
		t.Fatalf("upsert configuration: %v", err)
	}
}

func addEntry(t *testing.T, store *memory.Store, id string, month int, c core.Category, amount string) {
	t.Helper()
	e := core.Entry{
		OwnerID:     owner,
		ID:          id,
		Date:        core.NewDate(2025, month, 10),
		Category:    c,
		Description: id,
		Amount:      amt(amount),
	}
	if err := store.UpsertEntry(context.Background(), e); err != nil {
		t.Fatalf("upsert entry: %v", err)
	}
}

func storedClosing(t *testing.T, store *memory.Store, year, month int) decimal.Decimal {
	t.Helper()
	b, found, err := store.GetBalance(context.Background(), owner, year, month)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !found {
		t.Fatalf("no stored balance for %d-%02d", year, month)
	}
	return b.Closing
}

func assertClosing(t *testing.T, store *memory.Store, month int, want string) {
	t.Helper()
	if got := storedClosing(t, store, 2025, month); !got.Equal(amt(want)) {
		t.Fatalf("month %d closing = %s, want %s", month, got, want)
	}
}

func recalc(t *testing.T, r *ledger.Recalculator) []core.MonthlyBalance {
	t.Helper()
	balances, err := r.RecalculateAll(context.Background(), owner)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	return balances
}

func TestCascadeScenarios(t *testing.T) {
	ctx := context.Background()
	store, r := newLedger(t)
	configure(t, store, 2025, "100")

	// 1. January income and expense
	addEntry(t, store, "jan-in", 1, core.IncomeOther, "200")
	addEntry(t, store, "jan-out", 1, core.ExpenseOther, "50")
	recalc(t, r)
	assertClosing(t, store, 1, "250")

	// 2. February expense chains from January
	addEntry(t, store, "feb-out", 2, core.ExpenseTransferOut, "100")
	recalc(t, r)
	assertClosing(t, store, 1, "250")
	assertClosing(t, store, 2, "150")

	// 3. Editing January propagates forward
	addEntry(t, store, "jan-out", 1, core.ExpenseOther, "150")
	recalc(t, r)
	assertClosing(t, store, 1, "150")
	assertClosing(t, store, 2, "50")

	// 4. Deleting the February expense
	if err := store.DeleteEntry(ctx, owner, "feb-out"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	recalc(t, r)
	assertClosing(t, store, 2, "150")

	// 5. A new owner opens at zero
	got, err := r.OpeningBalanceFor(ctx, "unknown-owner", 1, 2025)
	if err != nil {
		t.Fatalf("opening for new owner: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("new owner opening = %s, want 0", got)
	}
}

func TestRecalculateAllIdempotent(t *testing.T) {
	store, r := newLedger(t)
	configure(t, store, 2025, "10.50")
	addEntry(t, store, "a", 1, core.IncomeOther, "0.10")
	addEntry(t, store, "b", 3, core.IncomeTransferIn, "0.20")
	addEntry(t, store, "c", 4, core.ExpenseOther, "7.33")

	first := recalc(t, r)
	second := recalc(t, r)
	if len(first) != len(second) {
		t.Fatalf("run lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Month != second[i].Month || first[i].Closing.String() != second[i].Closing.String() {
			t.Fatalf("run differs at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestChainAndSeedInvariants(t *testing.T) {
	ctx := context.Background()
	store, r := newLedger(t)
	configure(t, store, 2025, "1000")
	for m := 1; m <= 12; m++ {
		addEntry(t, store, fmt.Sprintf("in-%02d", m), m, core.IncomeOther, fmt.Sprintf("%d.25", m*10))
		addEntry(t, store, fmt.Sprintf("out-%02d", m), m, core.ExpenseOther, fmt.Sprintf("%d", m*7))
	}
	recalc(t, r)

	jan, err := r.OpeningBalanceFor(ctx, owner, 1, 2025)
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	if !jan.Equal(amt("1000")) {
		t.Fatalf("seed invariant: January opening = %s, want 1000", jan)
	}
	for m := 2; m <= 12; m++ {
		opening, err := r.OpeningBalanceFor(ctx, owner, m, 2025)
		if err != nil {
			t.Fatalf("opening %d: %v", m, err)
		}
		if prev := storedClosing(t, store, 2025, m-1); !opening.Equal(prev) {
			t.Fatalf("chain invariant: month %d opening %s != month %d closing %s", m, opening, m-1, prev)
		}
		totals, err := r.ComputePeriodTotals(ctx, owner, m, 2025)
		if err != nil {
			t.Fatalf("totals %d: %v", m, err)
		}
		if !totals.Closing.Equal(storedClosing(t, store, 2025, m)) {
			t.Fatalf("month %d preview %s != stored %s", m, totals.Closing, storedClosing(t, store, 2025, m))
		}
	}
}

func TestMonotonicPropagation(t *testing.T) {
	store, r := newLedger(t)
	configure(t, store, 2025, "0")
	for m := 1; m <= 6; m++ {
		addEntry(t, store, fmt.Sprintf("e-%d", m), m, core.IncomeOther, "10")
	}
	recalc(t, r)
	before := make(map[int]decimal.Decimal)
	for m := 1; m <= 6; m++ {
		before[m] = storedClosing(t, store, 2025, m)
	}

	addEntry(t, store, "extra-march", 3, core.IncomeTransferIn, "5")
	recalc(t, r)
	for m := 1; m <= 6; m++ {
		delta := storedClosing(t, store, 2025, m).Sub(before[m])
		want := decimal.Zero
		if m >= 3 {
			want = amt("5")
		}
		if !delta.Equal(want) {
			t.Fatalf("month %d shifted by %s, want %s", m, delta, want)
		}
	}
}

func TestZeroDefaultWithoutConfiguration(t *testing.T) {
	ctx := context.Background()
	store, r := newLedger(t)
	for _, m := range []int{1, 2, 7, 12} {
		got, err := r.OpeningBalanceFor(ctx, owner, m, 2030)
		if err != nil {
			t.Fatalf("opening %d: %v", m, err)
		}
		if !got.IsZero() {
			t.Fatalf("month %d opening = %s, want 0", m, got)
		}
	}

	// entries in the current year are still cascaded from zero
	addEntry(t, store, "a", 1, core.IncomeOther, "40")
	balances := recalc(t, r)
	if len(balances) != 1 || balances[0].Year != 2025 || !balances[0].Closing.Equal(amt("40")) {
		t.Fatalf("unexpected balances %+v", balances)
	}
}

func TestEmptyLedgerCommitsNothing(t *testing.T) {
	store, r := newLedger(t)
	configure(t, store, 2025, "300")
	if balances := recalc(t, r); len(balances) != 0 {
		t.Fatalf("expected no balances, got %+v", balances)
	}
	periods, _ := store.DistinctPeriods(context.Background(), owner)
	if len(periods) != 0 {
		t.Fatalf("expected no stored periods, got %v", periods)
	}
}

func TestGapOpensAtZero(t *testing.T) {
	store, r := newLedger(t)
	configure(t, store, 2025, "100")
	addEntry(t, store, "jan", 1, core.IncomeOther, "10")
	addEntry(t, store, "mar", 3, core.IncomeOther, "5")

	balances := recalc(t, r)
	if len(balances) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(balances))
	}
	assertClosing(t, store, 1, "110")
	// February was never computed, so March opens at zero
	assertClosing(t, store, 3, "5")
}

func TestStoredPeriodsStayInCascade(t *testing.T) {
	ctx := context.Background()
	store, r := newLedger(t)
	configure(t, store, 2025, "100")
	addEntry(t, store, "feb", 2, core.IncomeOther, "10")
	if _, err := r.RecalculateFullYear(ctx, owner); err != nil {
		t.Fatalf("full year: %v", err)
	}
	if err := store.DeleteEntry(ctx, owner, "feb"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	balances := recalc(t, r)
	if len(balances) != 12 {
		t.Fatalf("expected all 12 stored periods to be recomputed, got %d", len(balances))
	}
	for m := 1; m <= 12; m++ {
		assertClosing(t, store, m, "100")
	}
}

func TestStaleYearBalancesAreRetagged(t *testing.T) {
	ctx := context.Background()
	store, r := newLedger(t)
	configure(t, store, 2024, "0")
	for m := 1; m <= 3; m++ {
		if err := store.UpsertBalance(ctx, core.MonthlyBalance{OwnerID: owner, Year: 2024, Month: m, Closing: amt("999")}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	configure(t, store, 2025, "50")
	addEntry(t, store, "feb", 2, core.IncomeOther, "10")

	balances := recalc(t, r)
	if len(balances) != 3 {
		t.Fatalf("expected 3 periods, got %+v", balances)
	}
	periods, err := store.DistinctPeriods(ctx, owner)
	if err != nil {
		t.Fatalf("periods: %v", err)
	}
	for _, p := range periods {
		if p.Year != 2025 {
			t.Fatalf("stale period left behind: %+v", p)
		}
	}
	assertClosing(t, store, 1, "50")
	assertClosing(t, store, 2, "60")
	assertClosing(t, store, 3, "60")
}

func TestInvalidStoredMonthIgnored(t *testing.T) {
	ctx := context.Background()
	store, r := newLedger(t)
	configure(t, store, 2025, "0")
	if err := store.UpsertBalance(ctx, core.MonthlyBalance{OwnerID: owner, Year: 2025, Month: 13, Closing: amt("1")}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	addEntry(t, store, "jan", 1, core.IncomeOther, "1")
	balances := recalc(t, r)
	for _, b := range balances {
		if b.Month == 13 {
			t.Fatalf("month 13 must not be cascaded")
		}
	}
}

func TestFiscalYearSubstitution(t *testing.T) {
	ctx := context.Background()
	store, r := newLedger(t)
	configure(t, store, 2025, "100")
	addEntry(t, store, "jan", 1, core.IncomeOther, "20")
	recalc(t, r)

	for _, year := range []int{1999, 2024, 2025, 2026} {
		got, err := r.OpeningBalanceFor(ctx, owner, 2, year)
		if err != nil {
			t.Fatalf("opening %d: %v", year, err)
		}
		if !got.Equal(amt("120")) {
			t.Fatalf("year %d: opening = %s, want 120 from fiscal year", year, got)
		}
		totals, err := r.ComputePeriodTotals(ctx, owner, 1, year)
		if err != nil {
			t.Fatalf("totals %d: %v", year, err)
		}
		if totals.Year != 2025 || !totals.Closing.Equal(amt("120")) {
			t.Fatalf("year %d: totals %+v", year, totals)
		}
	}
}

func TestInvalidMonthRejected(t *testing.T) {
	ctx := context.Background()
	_, r := newLedger(t)
	for _, m := range []int{0, 13, -1} {
		_, err := r.OpeningBalanceFor(ctx, owner, m, 2025)
		if !errors.Is(err, core.ErrInvalidMonth) || !core.IsValidation(err) {
			t.Fatalf("month %d: expected validation error, got %v", m, err)
		}
		if _, err := r.ComputePeriodTotals(ctx, owner, m, 2025); !errors.Is(err, core.ErrInvalidMonth) {
			t.Fatalf("totals month %d: expected ErrInvalidMonth, got %v", m, err)
		}
	}
}

func TestStoreErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk unavailable")
	ops := []string{
		memory.OpGetConfiguration,
		memory.OpEntriesFor,
		memory.OpDistinctPeriods,
		memory.OpCommitCascade,
	}
	for _, op := range ops {
		t.Run(op, func(t *testing.T) {
			store, r := newLedger(t)
			configure(t, store, 2025, "0")
			addEntry(t, store, "a", 1, core.IncomeOther, "1")
			store.FailOn(op, boom)

			_, err := r.RecalculateAll(ctx, owner)
			if !errors.Is(err, boom) {
				t.Fatalf("expected wrapped store error, got %v", err)
			}
			var se *core.StoreError
			if !errors.As(err, &se) {
				t.Fatalf("expected *core.StoreError in chain, got %T", err)
			}
			store.FailOn(op, nil)
			if _, found, _ := store.GetBalance(ctx, owner, 2025, 1); found {
				t.Fatalf("failed run must not commit balances")
			}
		})
	}

	store, r := newLedger(t)
	store.FailOn(memory.OpGetBalance, boom)
	if _, err := r.OpeningBalanceFor(ctx, owner, 5, 2025); !errors.Is(err, boom) {
		t.Fatalf("expected store error from opening resolver, got %v", err)
	}
}

func TestConcurrentRunsAreSerialized(t *testing.T) {
	ctx := context.Background()
	store, r := newLedger(t)
	configure(t, store, 2025, "0")
	for m := 1; m <= 12; m++ {
		addEntry(t, store, fmt.Sprintf("e-%d", m), m, core.IncomeOther, "1")
	}

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := r.RecalculateAll(ctx, owner)
			errs <- err
		}()
		go func(i int) {
			defer wg.Done()
			_, err := r.RecalculateAll(ctx, fmt.Sprintf("other-%d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent run: %v", err)
		}
	}
	for m := 1; m <= 12; m++ {
		assertClosing(t, store, m, fmt.Sprintf("%d", m))
	}
	if store.Commits() != 40 {
		t.Fatalf("expected 40 commits, got %d", store.Commits())
	}
}

// pausingStore blocks the first cascade after it has read the entries.
type pausingStore struct {
	*memory.Store
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *pausingStore) InCascadeTx(ctx context.Context, ownerID string, fn func(tx ledger.Stores) error) error {
	return p.Store.InCascadeTx(ctx, ownerID, func(tx ledger.Stores) error {
		return fn(pausingTx{Stores: tx, p: p})
	})
}

type pausingTx struct {
	ledger.Stores
	p *pausingStore
}

func (t pausingTx) EntriesFor(ctx context.Context, ownerID string, filter core.EntryFilter) ([]core.Entry, error) {
	entries, err := t.Stores.EntriesFor(ctx, ownerID, filter)
	t.p.once.Do(func() {
		close(t.p.read)
		<-t.p.release
	})
	return entries, err
}

func TestRecalculatorsSharingStoreNeverCommitStaleChain(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	configure(t, store, 2025, "100")
	addEntry(t, store, "jan", 1, core.IncomeOther, "10")

	slow := &pausingStore{Store: store, read: make(chan struct{}), release: make(chan struct{})}
	a := ledger.NewRecalculator(slow, nil).WithClock(fixedClock)
	b := ledger.NewRecalculator(store, nil).WithClock(fixedClock)

	aDone := make(chan error, 1)
	go func() {
		_, err := a.RecalculateAll(ctx, owner)
		aDone <- err
	}()
	<-slow.read

	addEntry(t, store, "jan", 1, core.IncomeOther, "50")
	bDone := make(chan error, 1)
	go func() {
		_, err := b.RecalculateAll(ctx, owner)
		bDone <- err
	}()

	select {
	case err := <-bDone:
		t.Fatalf("second recalculator finished while the first was mid-run: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(slow.release)
	if err := <-aDone; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := <-bDone; err != nil {
		t.Fatalf("second run: %v", err)
	}
	assertClosing(t, store, 1, "150")
}

func TestClosingOverflowIsRejected(t *testing.T) {
	store, r := newLedger(t)
	configure(t, store, 2025, "0")
	// written straight to the store, past entry validation
	addEntry(t, store, "huge", 1, core.IncomeOther, "200000000000000000")

	_, err := r.RecalculateAll(context.Background(), owner)
	if !core.IsValidation(err) || !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected closing validation error, got %v", err)
	}
	if store.Commits() != 0 {
		t.Fatalf("overflowing chain must not be committed")
	}
}
