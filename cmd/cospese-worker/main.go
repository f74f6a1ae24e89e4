package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"cospese/internal/amqp"
	"cospese/internal/cli"
	"cospese/internal/config"
	applog "cospese/internal/log"
	"cospese/internal/services"
	gsheet "cospese/internal/sheets/google"
	"cospese/internal/storage"
	"cospese/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)
	logger.Info("Starting cospese-worker", applog.FieldOperation, applog.OpStartup)

	// The worker reads what the web process wrote, which only a shared
	// database allows.
	if cfg.DataBackend != config.BackendSQLite {
		logger.Error("The export worker requires DATA_BACKEND=sqlite", "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if !cfg.LedgerConfigured() {
		logger.Error("The export worker requires GOOGLE_SPREADSHEET_ID and service account credentials")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	ledger, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets ledger initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	exporter := worker.NewExportWorker(repo, ledger, cfg.ExportBatchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return exporter.RunPoller(gctx, cfg.ExportInterval)
	})

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, services.EventExpenseApproved)
		if err != nil {
			// Approved expenses still reach the ledger through the poller.
			logger.Warn("Failed to initialize AMQP client, polling only", applog.FieldError, err)
		} else {
			defer client.Close()
			g.Go(func() error {
				return client.RunConsumer(gctx, exporter.HandleEvent)
			})
			logger.Info("Consuming expense events", "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled, polling only", "interval", cfg.ExportInterval)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", applog.FieldError, err)
	}
	<-done
	logger.Info("Worker shutdown complete")
}
