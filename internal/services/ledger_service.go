package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tesouraria/internal/amqp"
	"tesouraria/internal/core"
	"tesouraria/internal/ledger"
	"tesouraria/internal/log"
)

// RecalcPublisher hands a recalculation request to the worker.
type RecalcPublisher interface {
	PublishRecalculate(ctx context.Context, ownerID, reason string) error
}

// Recalculation modes
const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

// LedgerService orchestrates entry and configuration changes with the
// balance cascade. In sync mode the cascade runs inside the request, in
// async mode it is published to the worker and only run inline when
// publishing fails.
type LedgerService struct {
	store     ledger.Store
	recalc    *ledger.Recalculator
	publisher RecalcPublisher
	mode      string
	events    *log.StructuredLogger
	now       func() time.Time
}

func NewLedgerService(store ledger.Store, recalc *ledger.Recalculator, publisher RecalcPublisher, mode string, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if mode != ModeAsync {
		mode = ModeSync
	}
	return &LedgerService{
		store:     store,
		recalc:    recalc,
		publisher: publisher,
		mode:      mode,
		events:    log.NewStructuredLogger(logger.WithComponent(log.ComponentLedger)),
		now:       time.Now,
	}
}

// Mode reports how recalculations are dispatched.
func (s *LedgerService) Mode() string { return s.mode }

// CreateEntry validates and stores a new entry, assigning its id.
func (s *LedgerService) CreateEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Description = strings.TrimSpace(e.Description)
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	if err := s.store.UpsertEntry(ctx, e); err != nil {
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}
	s.events.LogEntryChanged(ctx, log.OpCreate, e)

	if err := s.afterChange(ctx, e.OwnerID, amqp.ReasonEntryCreated); err != nil {
		return e, err
	}
	return e, nil
}

// UpdateEntry replaces an existing entry. An empty receipt reference keeps
// the stored one.
func (s *LedgerService) UpdateEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	existing, err := s.store.GetEntry(ctx, e.OwnerID, e.ID)
	if err != nil {
		return core.Entry{}, fmt.Errorf("load entry: %w", err)
	}
	if e.ReceiptRef == "" {
		e.ReceiptRef = existing.ReceiptRef
	}
	e.Description = strings.TrimSpace(e.Description)
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	if err := s.store.UpsertEntry(ctx, e); err != nil {
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}
	s.events.LogEntryChanged(ctx, log.OpUpdate, e)

	if err := s.afterChange(ctx, e.OwnerID, amqp.ReasonEntryUpdated); err != nil {
		return e, err
	}
	return e, nil
}

func (s *LedgerService) DeleteEntry(ctx context.Context, ownerID, entryID string) error {
	existing, err := s.store.GetEntry(ctx, ownerID, entryID)
	if err != nil {
		return fmt.Errorf("load entry: %w", err)
	}
	if err := s.store.DeleteEntry(ctx, ownerID, entryID); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	s.events.LogEntryChanged(ctx, log.OpDelete, existing)

	return s.afterChange(ctx, ownerID, amqp.ReasonEntryDeleted)
}

func (s *LedgerService) GetEntry(ctx context.Context, ownerID, entryID string) (core.Entry, error) {
	return s.store.GetEntry(ctx, ownerID, entryID)
}

func (s *LedgerService) ListEntries(ctx context.Context, ownerID string, filter core.EntryFilter) ([]core.Entry, error) {
	return s.recalc.ListEntries(ctx, ownerID, filter)
}

// GetConfiguration returns core.ErrNotFound for an owner never configured.
func (s *LedgerService) GetConfiguration(ctx context.Context, ownerID string) (core.Configuration, error) {
	cfg, found, err := s.store.GetConfiguration(ctx, ownerID)
	if err != nil {
		return core.Configuration{}, fmt.Errorf("load configuration: %w", err)
	}
	if !found {
		return core.Configuration{}, core.ErrNotFound
	}
	return cfg, nil
}

// SaveConfiguration validates and stores the configuration, then reruns the
// cascade so that a fiscal year change moves the stored balances.
func (s *LedgerService) SaveConfiguration(ctx context.Context, cfg core.Configuration) (core.Configuration, error) {
	cfg.Email = strings.TrimSpace(cfg.Email)
	if err := cfg.Validate(); err != nil {
		return core.Configuration{}, err
	}

	existing, found, err := s.store.GetConfiguration(ctx, cfg.OwnerID)
	if err != nil {
		return core.Configuration{}, fmt.Errorf("load configuration: %w", err)
	}
	if found && cfg.AdminID == "" {
		cfg.AdminID = existing.AdminID
	}
	if err := s.checkEmailUnique(ctx, cfg); err != nil {
		return core.Configuration{}, err
	}

	if err := s.store.UpsertConfiguration(ctx, cfg); err != nil {
		return core.Configuration{}, fmt.Errorf("save configuration: %w", err)
	}
	slog.InfoContext(ctx, "Configuration saved",
		log.FieldOwnerID, cfg.OwnerID,
		log.FieldFiscalYear, cfg.FiscalYear,
		log.FieldOpening, cfg.OpeningBalance.StringFixed(2))

	if err := s.afterChange(ctx, cfg.OwnerID, amqp.ReasonConfigurationSave); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (s *LedgerService) checkEmailUnique(ctx context.Context, cfg core.Configuration) error {
	if cfg.Email == "" {
		return nil
	}
	all, err := s.store.ListConfigurations(ctx)
	if err != nil {
		return fmt.Errorf("list configurations: %w", err)
	}
	for _, other := range all {
		if other.OwnerID != cfg.OwnerID && strings.EqualFold(other.Email, cfg.Email) {
			return &core.ValidationError{Field: "email", Err: core.ErrDuplicateEmail}
		}
	}
	return nil
}

// ProvisionOwner gives a new owner a default configuration and a stored
// zero balance for each month of the fiscal year. An owner that already has
// a configuration is returned unchanged with created false.
func (s *LedgerService) ProvisionOwner(ctx context.Context, ownerID, adminID string, fiscalYear int) (cfg core.Configuration, created bool, err error) {
	if strings.TrimSpace(ownerID) == "" {
		return core.Configuration{}, false, &core.ValidationError{Field: "owner_id", Err: core.ErrEmptyOwner}
	}
	existing, found, err := s.store.GetConfiguration(ctx, ownerID)
	if err != nil {
		return core.Configuration{}, false, fmt.Errorf("load configuration: %w", err)
	}
	if found {
		return existing, false, nil
	}

	if fiscalYear == 0 {
		fiscalYear = s.now().Year()
	}
	cfg = core.DefaultConfiguration(ownerID, adminID, fiscalYear)
	if err := cfg.Validate(); err != nil {
		return core.Configuration{}, false, err
	}
	if err := s.store.UpsertConfiguration(ctx, cfg); err != nil {
		return core.Configuration{}, false, fmt.Errorf("save configuration: %w", err)
	}
	slog.InfoContext(ctx, "Owner provisioned",
		log.FieldOwnerID, ownerID,
		log.FieldAdminID, adminID,
		log.FieldFiscalYear, fiscalYear)

	if err := s.afterChange(ctx, ownerID, amqp.ReasonProvision); err != nil {
		return cfg, true, err
	}
	return cfg, true, nil
}

// RecalculateOwner runs the cascade inline regardless of mode.
func (s *LedgerService) RecalculateOwner(ctx context.Context, ownerID string) ([]core.MonthlyBalance, error) {
	return s.recalc.RecalculateAll(ctx, ownerID)
}

// FiscalYear is the year every cascade of the owner runs in.
func (s *LedgerService) FiscalYear(ctx context.Context, ownerID string) (int, error) {
	return s.recalc.FiscalYear(ctx, ownerID)
}

func (s *LedgerService) OpeningBalanceFor(ctx context.Context, ownerID string, month, year int) (decimal.Decimal, error) {
	return s.recalc.OpeningBalanceFor(ctx, ownerID, month, year)
}

func (s *LedgerService) ComputePeriodTotals(ctx context.Context, ownerID string, month, year int) (core.PeriodTotals, error) {
	return s.recalc.ComputePeriodTotals(ctx, ownerID, month, year)
}

func (s *LedgerService) Balances(ctx context.Context, ownerID string) ([]core.PeriodTotals, error) {
	return s.recalc.ChainTotals(ctx, ownerID)
}

func (s *LedgerService) YearReport(ctx context.Context, ownerID string, month int) (core.YearReport, error) {
	return s.recalc.YearReport(ctx, ownerID, month)
}

// ManagedOwners lists the configurations administered by adminID.
func (s *LedgerService) ManagedOwners(ctx context.Context, adminID string) ([]core.Configuration, error) {
	all, err := s.store.ListConfigurations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	managed := []core.Configuration{}
	for _, cfg := range all {
		if cfg.AdminID != "" && cfg.AdminID == adminID {
			managed = append(managed, cfg)
		}
	}
	return managed, nil
}

// afterChange brings the stored balances in line with a mutation.
func (s *LedgerService) afterChange(ctx context.Context, ownerID, reason string) error {
	if s.mode == ModeAsync && s.publisher != nil {
		err := s.publisher.PublishRecalculate(ctx, ownerID, reason)
		if err == nil {
			return nil
		}
		slog.WarnContext(ctx, "Failed to publish recalculate message, recalculating inline",
			log.FieldOwnerID, ownerID,
			log.FieldReason, reason,
			log.FieldError, err)
	}

	var err error
	if reason == amqp.ReasonProvision {
		_, err = s.recalc.RecalculateFullYear(ctx, ownerID)
	} else {
		_, err = s.recalc.RecalculateAll(ctx, ownerID)
	}
	if err != nil {
		return fmt.Errorf("recalculate balances: %w", err)
	}
	return nil
}

// Close closes storage and publisher connections
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}

	return nil
}
