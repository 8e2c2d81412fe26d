package main

import (
	"context"
	"os"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/cli"
	"finboard/internal/log"
	"finboard/internal/services"
	"finboard/internal/sheets"
	gsheet "finboard/internal/sheets/google"
	memsheet "finboard/internal/sheets/memory"
	"finboard/internal/store"
	"finboard/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker", "error_type", log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	// The worker only reads records; change events come from the broker, not from here.
	readOnly := *cfg
	readOnly.AMQPURL = ""
	be := cli.InitBackend(context.Background(), logger, &readOnly)

	var writer sheets.TransactionWriter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleCredentialsFile,
			Logger:          logger,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		writer = memsheet.New()
		logger.Info("Google Sheets disabled, mirroring transactions in memory")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, store.ResourceTransactions+".#", logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(be.Store, writer, logger)
	processor := services.NewSyncProcessor(amqpClient, syncWorker, services.DefaultSyncProcessorConfig(), logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Sync processor stop error", log.FieldError, err)
		}
		if err := amqpClient.Close(); err != nil {
			logger.Error("AMQP close error", log.FieldError, err)
		}
		if err := be.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err)
		}
		stats := processor.Stats()
		logger.Info("Sync totals", "processed", stats.Processed, "failed", stats.Failed)
	})

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Starting finboard-worker", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue, log.FieldOperation, log.OpStartup)

	select {
	case <-processor.Done():
		if err := processor.Err(); err != nil {
			logger.Error("Sync processor exited", log.FieldError, err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}
	cli.WaitForShutdown(ctx, done)
}
