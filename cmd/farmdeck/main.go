package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"farmdeck/internal/amqp"
	"farmdeck/internal/cli"
	apphttp "farmdeck/internal/http"
	"farmdeck/internal/services"
	"farmdeck/internal/share"
	gsheet "farmdeck/internal/sheets/google"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("app")

	logger.Info("Starting farmdeck")

	cfg := cli.LoadAndValidateConfig(logger)

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	// AMQP is optional: without it, record backups rely on the poll loop.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, backup notifications disabled", "error", err)
			amqpClient = nil
		}
	}

	service := services.NewProjectService(sqliteRepo, amqpClient)
	importer := share.NewImporter(sqliteRepo)

	srv := apphttp.NewServer(":"+cfg.Port, service, importer, cfg.QRSize)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// In-process backup processor, enabled when a spreadsheet is configured.
	var processor *services.BackupProcessor
	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		processorCfg := services.DefaultBackupProcessorConfig()
		processorCfg.PollInterval = cfg.BackupInterval
		processorCfg.BatchSize = cfg.BackupBatchSize
		processor = services.NewBackupProcessor(sqliteRepo, sheetsClient, processorCfg)
	} else {
		logger.Info("Sheets backup disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if processor != nil {
		g.Go(func() error {
			return processor.Start(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if processor != nil {
			if err := processor.Stop(shutdownCtx); err != nil {
				logger.Error("Backup processor shutdown error", "error", err)
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("farmdeck exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
