package main

import (
	"context"
	"errors"
	"os"
	"time"

	"spendhelm/internal/aggregates"
	"spendhelm/internal/amqp"
	"spendhelm/internal/cli"
	"spendhelm/internal/log"
	"spendhelm/internal/sheets"
	gsheet "spendhelm/internal/sheets/google"
	"spendhelm/internal/worker"
)

func main() {
	cfg, envErr := cli.LoadConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	if envErr != nil {
		logger.Warn("Ignoring .env file", log.FieldError, envErr)
	}

	logger.Info("Starting spendhelm-worker")
	cli.MustValidate(logger, cfg.ValidateWorker)

	repo := cli.MustOpenSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Google Sheets mirror is optional.
	var mirror sheets.ExpenseMirror
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets mirror disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	w := worker.NewAggregateWorker(aggregates.NewManager(repo, logger), repo, mirror, cfg.SyncBatchSize, logger)

	// Catch up on anything missed while the worker was down.
	logger.Info("Performing startup check...")
	if err := w.StartupCheck(ctx); err != nil {
		logger.Error("Startup check failed", log.FieldError, err)
	}

	scheduler, err := worker.NewScheduler(w, cfg.AggregateRebuildCron, cfg.SyncInterval, logger)
	if err != nil {
		logger.Error("Failed to create scheduler", log.FieldError, err)
		os.Exit(1)
	}
	scheduler.Start()

	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		go func() {
			if err := amqpClient.Run(ctx, w.HandleExpenseChanged); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
				cancel()
			}
		}()
	} else {
		logger.Info("AMQP disabled - only scheduled jobs will run")
	}

	cli.WaitForShutdown(ctx, logger)
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := scheduler.Stop(stopCtx); err != nil {
		logger.Warn("Scheduled jobs did not finish in time", log.FieldError, err)
	}
	if amqpClient != nil {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close failed", log.FieldError, err)
		}
	}
	logger.Info("Worker stopped")
}
