// Package memory is an in-process ledger store for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"tesouraria/internal/core"
	"tesouraria/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

// Operation names accepted by FailOn.
const (
	OpEntriesFor          = "entries for"
	OpGetEntry            = "get entry"
	OpUpsertEntry         = "upsert entry"
	OpDeleteEntry         = "delete entry"
	OpGetConfiguration    = "get configuration"
	OpUpsertConfiguration = "upsert configuration"
	OpListConfigurations  = "list configurations"
	OpGetBalance          = "get balance"
	OpUpsertBalance       = "upsert balance"
	OpDistinctPeriods     = "distinct periods"
	OpListBalances        = "list balances"
	OpCommitCascade       = "commit cascade"
	OpOwners              = "owners"
)

type balanceKey struct {
	owner string
	year  int
	month int
}

type Store struct {
	// txMu is held for a whole cascade transaction, mu for single calls.
	txMu     sync.Mutex
	mu       sync.Mutex
	entries  map[string]map[string]core.Entry // owner -> id -> entry
	configs  map[string]core.Configuration
	balances map[balanceKey]core.MonthlyBalance
	failures map[string]error
	commits  int
}

func New() *Store {
	return &Store{
		entries:  make(map[string]map[string]core.Entry),
		configs:  make(map[string]core.Configuration),
		balances: make(map[balanceKey]core.MonthlyBalance),
		failures: make(map[string]error),
	}
}

// FailOn makes every later call of op return err wrapped in a
// core.StoreError. A nil err clears the failure.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Commits reports how many cascade commits succeeded.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *Store) fail(op string) error {
	if err, ok := s.failures[op]; ok {
		return &core.StoreError{Op: op, Err: err}
	}
	return nil
}

func (s *Store) EntriesFor(_ context.Context, ownerID string, filter core.EntryFilter) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpEntriesFor); err != nil {
		return nil, err
	}
	var out []core.Entry
	for _, e := range s.entries[ownerID] {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetEntry(_ context.Context, ownerID, entryID string) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpGetEntry); err != nil {
		return core.Entry{}, err
	}
	e, ok := s.entries[ownerID][entryID]
	if !ok {
		return core.Entry{}, core.ErrNotFound
	}
	return e, nil
}

func (s *Store) UpsertEntry(_ context.Context, e core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpUpsertEntry); err != nil {
		return err
	}
	if s.entries[e.OwnerID] == nil {
		s.entries[e.OwnerID] = make(map[string]core.Entry)
	}
	s.entries[e.OwnerID][e.ID] = e
	return nil
}

func (s *Store) DeleteEntry(_ context.Context, ownerID, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpDeleteEntry); err != nil {
		return err
	}
	if _, ok := s.entries[ownerID][entryID]; !ok {
		return core.ErrNotFound
	}
	delete(s.entries[ownerID], entryID)
	return nil
}

func (s *Store) GetConfiguration(_ context.Context, ownerID string) (core.Configuration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpGetConfiguration); err != nil {
		return core.Configuration{}, false, err
	}
	cfg, ok := s.configs[ownerID]
	return cfg, ok, nil
}

func (s *Store) UpsertConfiguration(_ context.Context, cfg core.Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpUpsertConfiguration); err != nil {
		return err
	}
	s.configs[cfg.OwnerID] = cfg
	return nil
}

func (s *Store) ListConfigurations(_ context.Context) ([]core.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpListConfigurations); err != nil {
		return nil, err
	}
	out := make([]core.Configuration, 0, len(s.configs))
	for _, cfg := range s.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
	return out, nil
}

func (s *Store) GetBalance(_ context.Context, ownerID string, year, month int) (core.MonthlyBalance, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpGetBalance); err != nil {
		return core.MonthlyBalance{}, false, err
	}
	b, ok := s.balances[balanceKey{ownerID, year, month}]
	return b, ok, nil
}

func (s *Store) UpsertBalance(_ context.Context, b core.MonthlyBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpUpsertBalance); err != nil {
		return err
	}
	s.balances[balanceKey{b.OwnerID, b.Year, b.Month}] = b
	return nil
}

func (s *Store) DistinctPeriods(_ context.Context, ownerID string) ([]core.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpDistinctPeriods); err != nil {
		return nil, err
	}
	var out []core.Period
	for k := range s.balances {
		if k.owner == ownerID {
			out = append(out, core.Period{Year: k.year, Month: k.month})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

func (s *Store) ListBalances(_ context.Context, ownerID string, year int) ([]core.MonthlyBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpListBalances); err != nil {
		return nil, err
	}
	var out []core.MonthlyBalance
	for k, b := range s.balances {
		if k.owner == ownerID && k.year == year {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// CommitCascade applies the whole set under one lock, so readers never see
// a partial run.
func (s *Store) CommitCascade(_ context.Context, ownerID string, fiscalYear int, balances []core.MonthlyBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpCommitCascade); err != nil {
		return err
	}
	for k := range s.balances {
		if k.owner == ownerID && k.year != fiscalYear {
			delete(s.balances, k)
		}
	}
	for _, b := range balances {
		s.balances[balanceKey{b.OwnerID, b.Year, b.Month}] = b
	}
	s.commits++
	return nil
}

// InCascadeTx implements ledger.Transactor. Cascades run one at a time. The
// commit is the only write a cascade makes, so there is nothing to undo
// when fn fails.
func (s *Store) InCascadeTx(_ context.Context, _ string, fn func(tx ledger.Stores) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s)
}

func (s *Store) Owners(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(OpOwners); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for id := range s.configs {
		seen[id] = struct{}{}
	}
	for id, es := range s.entries {
		if len(es) > 0 {
			seen[id] = struct{}{}
		}
	}
	for k := range s.balances {
		seen[k.owner] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Close() error { return nil }
