package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"tesouraria/internal/amqp"
	"tesouraria/internal/ledger"
	"tesouraria/internal/log"
	"tesouraria/internal/sheets"
)

// OwnerLister enumerates the owners a sweep covers.
type OwnerLister interface {
	Owners(ctx context.Context) ([]string, error)
}

// RecalcWorker consumes recalculation requests, runs the cascade and
// mirrors the resulting chain to a spreadsheet when an exporter is set.
type RecalcWorker struct {
	owners   OwnerLister
	recalc   *ledger.Recalculator
	exporter sheets.BalanceExporter
	logger   *log.Logger
}

// NewRecalcWorker creates a worker. exporter may be nil, in which case
// nothing is exported.
func NewRecalcWorker(owners OwnerLister, recalc *ledger.Recalculator, exporter sheets.BalanceExporter, logger *log.Logger) *RecalcWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &RecalcWorker{
		owners:   owners,
		recalc:   recalc,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleRecalculate processes a single recalculation message from AMQP.
// Provisioning requests cover the whole fiscal year.
func (w *RecalcWorker) HandleRecalculate(ctx context.Context, msg *amqp.RecalculateMessage) error {
	w.logger.InfoContext(ctx, "Processing recalculation message",
		log.FieldOwnerID, msg.OwnerID,
		log.FieldReason, msg.Reason)

	var err error
	if msg.Reason == amqp.ReasonProvision {
		_, err = w.recalc.RecalculateFullYear(ctx, msg.OwnerID)
	} else {
		_, err = w.recalc.RecalculateAll(ctx, msg.OwnerID)
	}
	if err != nil {
		return fmt.Errorf("recalculate owner %s: %w", msg.OwnerID, err)
	}

	// export failures must not requeue a cascade that already committed
	if err := w.Export(ctx, msg.OwnerID); err != nil {
		w.logger.WarnContext(ctx, "Balance export failed",
			log.FieldOwnerID, msg.OwnerID,
			log.FieldError, err)
	}
	return nil
}

// Export mirrors the owner's stored chain to the spreadsheet.
func (w *RecalcWorker) Export(ctx context.Context, ownerID string) error {
	if w.exporter == nil {
		return nil
	}
	year, err := w.recalc.FiscalYear(ctx, ownerID)
	if err != nil {
		return err
	}
	rows, err := w.recalc.ChainTotals(ctx, ownerID)
	if err != nil {
		return err
	}
	if err := w.exporter.ExportBalances(ctx, ownerID, year, rows); err != nil {
		return fmt.Errorf("export balances: %w", err)
	}
	return nil
}

// Sweep recalculates every known owner with at most concurrency owners in
// flight. Per-owner failures are logged and do not stop the sweep; the
// number of failed owners is returned with the first error.
func (w *RecalcWorker) Sweep(ctx context.Context, concurrency int) (failed int, err error) {
	owners, err := w.owners.Owners(ctx)
	if err != nil {
		return 0, fmt.Errorf("list owners: %w", err)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	start := time.Now()
	results := make([]error, len(owners))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, owner := range owners {
		g.Go(func() error {
			if _, err := w.recalc.RecalculateAll(gctx, owner); err != nil {
				results[i] = err
				w.logger.ErrorContext(gctx, "Sweep recalculation failed",
					log.FieldOwnerID, owner,
					log.FieldError, err)
				return nil
			}
			if err := w.Export(gctx, owner); err != nil {
				w.logger.WarnContext(gctx, "Balance export failed",
					log.FieldOwnerID, owner,
					log.FieldError, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	var first error
	for _, e := range results {
		if e != nil {
			failed++
			if first == nil {
				first = e
			}
		}
	}
	w.logger.InfoContext(ctx, "Startup sweep completed",
		log.FieldOwners, len(owners),
		log.FieldFailed, failed,
		log.FieldDuration, time.Since(start).Milliseconds())
	if first != nil {
		return failed, fmt.Errorf("sweep: %d of %d owners failed: %w", failed, len(owners), first)
	}
	return 0, ctx.Err()
}

// ExportAll mirrors every owner's chain once.
func (w *RecalcWorker) ExportAll(ctx context.Context) error {
	if w.exporter == nil {
		return nil
	}
	owners, err := w.owners.Owners(ctx)
	if err != nil {
		return fmt.Errorf("list owners: %w", err)
	}
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.Export(ctx, owner); err != nil {
			w.logger.WarnContext(ctx, "Balance export failed",
				log.FieldOwnerID, owner,
				log.FieldError, err)
		}
	}
	return nil
}

// RunPeriodicExport calls ExportAll every interval until ctx is done.
func (w *RecalcWorker) RunPeriodicExport(ctx context.Context, interval time.Duration) {
	if w.exporter == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ExportAll(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "Periodic export failed", log.FieldError, err)
			}
		}
	}
}
