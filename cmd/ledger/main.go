package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"tesouraria/internal/cli"
	"tesouraria/internal/config"
	apphttp "tesouraria/internal/http"
	"tesouraria/internal/ledger"
	"tesouraria/internal/log"
	"tesouraria/internal/services"
)

var _ apphttp.LedgerAPI = (*services.LedgerService)(nil)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)
	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	logger.Info("Starting ledger server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"recalc_mode", cfg.RecalcMode)

	res := cli.OpenStore(context.Background(), logger, cfg)

	recalc := ledger.NewRecalculator(res.Store, logger)

	// A nil client must stay a nil interface so the service runs inline.
	var publisher services.RecalcPublisher
	if cfg.RecalcMode == config.RecalcAsync {
		client, err := cli.ConnectAMQP(logger, cfg)
		if err != nil {
			if cerr := res.Cleanup(); cerr != nil {
				logger.Error("Failed to close store", log.FieldError, cerr)
			}
			return fmt.Errorf("initialize AMQP client: %w", err)
		}
		if client != nil {
			publisher = client
		}
	}

	// svc.Close releases the store and the publisher
	svc := services.NewLedgerService(res.Store, recalc, publisher, cfg.RecalcMode, logger)
	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:         logger,
		MetricsEnabled: cfg.MetricsEnabled,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close resources", log.FieldError, err)
		}
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if cerr := svc.Close(); cerr != nil {
			logger.Error("Failed to close resources", log.FieldError, cerr)
		}
		return fmt.Errorf("listen: %w", err)
	}

	<-ctx.Done()
	<-done
	return nil
}
