package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"tesouraria/internal/cli"
	"tesouraria/internal/config"
	"tesouraria/internal/ledger"
	"tesouraria/internal/log"
	"tesouraria/internal/sheets"
	gsheet "tesouraria/internal/sheets/google"
	"tesouraria/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)
	if err := run(cfg, logger); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

// run returns once the worker is told to stop, or with an error when it can
// no longer do its job. Deferred cleanup always runs before main exits.
func run(cfg *config.Config, logger *log.Logger) error {
	logger.Info("Starting ledger-worker", "backend", cfg.DataBackend)
	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend is not shared with the API, the worker only sees its own process")
	}

	res := cli.OpenStore(context.Background(), logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close store", log.FieldError, err)
		}
	}()

	// Initialize Google Sheets export (optional)
	var exporter sheets.BalanceExporter
	if cfg.ExportEnabled() {
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleBalancesSheetName)
		if err != nil {
			return fmt.Errorf("initialize Google Sheets client: %w", err)
		}
		exporter = client
		logger.Info("Google Sheets export enabled",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			log.FieldSheet, cfg.GoogleBalancesSheetName)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	recalc := ledger.NewRecalculator(res.Store, logger)
	w := worker.NewRecalcWorker(res.Store, recalc, exporter, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Bring every owner in line before taking messages
	if failed, err := w.Sweep(ctx, cfg.SweepConcurrency); err != nil {
		logger.Error("Startup sweep finished with errors", log.FieldError, err, log.FieldFailed, failed)
	}

	go w.RunPeriodicExport(ctx, cfg.ExportInterval)

	if cfg.AMQPURL == "" {
		logger.Info("No AMQP_URL configured, running sweep and export only")
		<-ctx.Done()
		<-done
		return nil
	}
	if cfg.RecalcMode != config.RecalcAsync {
		logger.Warn("RECALC_MODE is sync, the API will rarely publish recalculation requests")
	}

	client, err := cli.ConnectAMQP(logger, cfg)
	if err != nil {
		return fmt.Errorf("initialize AMQP client: %w", err)
	}
	defer client.Close()

	err = client.ConsumeRecalculate(ctx, w.HandleRecalculate)
	if err != nil && !errors.Is(err, context.Canceled) {
		// the consumer gave up, a supervisor restarts the process
		return fmt.Errorf("consume recalculation requests: %w", err)
	}

	<-done
	return nil
}
