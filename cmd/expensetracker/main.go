package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/amqp"
	"expensetracker/internal/backend"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	apphttp "expensetracker/internal/http"
	applog "expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/services"
)

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentApp, os.Stdout)
	cli.MustValidate(logger, cfg.Validate)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	m := metrics.New()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	result, err := cli.OpenStore(ctx, logger, backendCfg)
	if err != nil {
		return err
	}

	opts := []services.Option{services.WithMetrics(m), services.WithLogger(logger)}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			logger.WithComponent(applog.ComponentAMQP).Slog())
		if err != nil {
			// events are optional; the tracker works without a broker
			logger.Error("Failed to initialize AMQP client, expense events disabled", applog.FieldError, err)
		} else {
			opts = append(opts, services.WithPublisher(client))
			logger.Info("Expense events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	ledger := services.NewExpenseService(result.Store, opts...)
	defer func() {
		if err := ledger.Close(); err != nil {
			logger.Error("Failed to close expense service", applog.FieldError, err)
		}
	}()

	serverOpts := apphttp.Options{
		Addr:                 cfg.Addr(),
		Ledger:               ledger,
		Metrics:              m,
		Logger:               logger,
		ShowValidationErrors: cfg.ShowValidationErrors,
		RateLimitPerMinute:   cfg.RateLimitPerMinute,
		TrustedProxies:       cfg.TrustedProxies,
		ReadTimeout:          cfg.ReadTimeout,
		WriteTimeout:         cfg.WriteTimeout,
		IdleTimeout:          cfg.IdleTimeout,
	}
	if cfg.StaticDir != "" {
		serverOpts.StaticFS = os.DirFS(cfg.StaticDir)
	}
	srv, err := apphttp.NewServer(serverOpts)
	if err != nil {
		return err
	}
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting expense tracker",
			"addr", srv.Addr,
			applog.FieldBackend, cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server", "timeout", cfg.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.ShutdownTimeout <= 0 {
		return 30 * time.Second
	}
	return cfg.ShutdownTimeout
}
