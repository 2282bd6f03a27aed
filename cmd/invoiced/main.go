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

	"github.com/joho/godotenv"

	"github.com/factura-ai/invoice-extractor/internal/auth"
	"github.com/factura-ai/invoice-extractor/internal/common"
	"github.com/factura-ai/invoice-extractor/internal/export"
	"github.com/factura-ai/invoice-extractor/internal/extract"
	"github.com/factura-ai/invoice-extractor/internal/invoice"
	"github.com/factura-ai/invoice-extractor/internal/llm/openai"
	"github.com/factura-ai/invoice-extractor/internal/repository"
	"github.com/factura-ai/invoice-extractor/internal/server"
	"github.com/factura-ai/invoice-extractor/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(cfg.Database, logger)
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.DialTimeout)
	defer cancel()
	if err := repository.HealthCheck(pingCtx, db); err != nil {
		return err
	}

	model := openai.NewClient(openai.Config{
		APIKey:          cfg.OpenAI.APIKey,
		BaseURL:         cfg.OpenAI.BaseURL,
		Model:           cfg.OpenAI.Model,
		Timeout:         cfg.OpenAI.Timeout,
		MaxRetries:      cfg.OpenAI.MaxRetries,
		MaxOutputTokens: cfg.OpenAI.MaxOutputTokens,
		PollInterval:    cfg.OpenAI.PollInterval,
		PollTimeout:     cfg.OpenAI.PollTimeout,
	}, logger)

	extractor := extract.NewExtractor(model, logger)

	var archive storage.Archiver
	if cfg.Archive.Bucket != "" {
		archive, err = storage.NewGCSArchive(ctx, cfg.Archive.Bucket, cfg.Archive.Prefix, logger)
		if err != nil {
			// Archiving is best effort end to end; run without it.
			logger.Warn("archive storage unavailable, continuing without archiving", "error", err)
			archive = nil
		}
	}

	repo := repository.NewInvoiceRepository(db, logger)
	invoices := invoice.NewService(repo, archive, logger)
	exporter := export.NewService(repo, logger)
	users := auth.NewUserStore(db)

	srv := server.New(extractor, invoices, exporter, users, logger)
	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr, "model", model.ModelID())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
