package main

import (
	"context"
	"errors"
	"os"

	"expensetracker/internal/amqp"
	"expensetracker/internal/backend"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	applog "expensetracker/internal/log"
	"expensetracker/internal/storage"
	"expensetracker/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentWorker, os.Stdout)
	cli.MustValidate(logger, cfg.Validate, cfg.ValidateWorker)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	logger.Info("Starting expense-worker",
		"mirror_backend", cfg.MirrorBackend,
		"queue", cfg.AMQPQueue)

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	mirrorCfg, err := backend.MirrorFromAppConfig(cfg)
	if err != nil {
		return err
	}
	mirror, err := cli.OpenStore(ctx, logger, mirrorCfg)
	if err != nil {
		return err
	}
	defer mirror.Close()

	// The primary store seeds the mirror on startup so events published
	// while the worker was down are not lost. A memory primary lives in
	// another process and cannot be read from here.
	var source storage.Store
	if hasReadableSource(cfg) {
		sourceCfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			return err
		}
		primary, err := cli.OpenStore(ctx, logger, sourceCfg)
		if err != nil {
			logger.Error("Failed to open primary store, skipping startup sync", applog.FieldError, err)
		} else {
			defer primary.Close()
			source = primary.Store
		}
	}

	w := worker.NewMirrorWorker(mirror.Store, source, logger.WithComponent(applog.ComponentWorker).Slog())
	logger.Info("Performing startup sync...")
	if err := w.StartupSync(ctx); err != nil {
		// keep consuming; the next events still apply
		logger.Error("Startup sync failed", applog.FieldError, err)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
		logger.WithComponent(applog.ComponentAMQP).Slog())
	if err != nil {
		return err
	}
	defer client.Close()

	return client.Consume(ctx, w.HandleEvent)
}

// hasReadableSource reports whether the primary store is reachable from
// this process and distinct from the mirror.
func hasReadableSource(cfg *config.Config) bool {
	switch {
	case cfg.DataBackend == string(backend.MemoryBackend):
		return false
	case cfg.DataBackend != cfg.MirrorBackend:
		return true
	case cfg.DataBackend == string(backend.SQLiteBackend):
		return cfg.SQLiteDBPath != cfg.MirrorSQLiteDBPath
	default:
		// same file, database or sheet
		return false
	}
}
