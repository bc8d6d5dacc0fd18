package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ricorrenze/internal/cli"
	apphttp "ricorrenze/internal/http"
	"ricorrenze/internal/log"
	"ricorrenze/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger, levelErr := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	if levelErr != nil {
		logger.Warn("Falling back to info logging", log.FieldError, levelErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, logger)
	stop()
	if err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, logger *log.Logger) error {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}

	result, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		return fmt.Errorf("initialize %s backend: %w", cfg.DataBackend, err)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", log.FieldError, err)
			}
		}()
	}

	store := services.NewExpenseStore(result.KV, cfg.StorageKey, result.Notifier)
	if err := store.Load(ctx); err != nil {
		logger.Warn("Failed to load persisted expenses, starting empty", log.FieldError, err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, store, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	logger.Info("Starting ricorrenze server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"change_events", result.Notifier != nil)

	return cli.Serve(ctx, logger, srv, cfg.ShutdownTimeout)
}
