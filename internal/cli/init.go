// Package cli provides common initialization for the expensetracker,
// expense-worker and expensectl commands.
package cli

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"expensetracker/internal/backend"
	"expensetracker/internal/config"
	applog "expensetracker/internal/log"
)

// LoadEnvFile loads .env files for local development. Missing files are
// ignored; variables already set in the environment win.
func LoadEnvFile(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// SetupLogger builds the logger from LOG_LEVEL and LOG_FORMAT and installs
// it as the slog default.
func SetupLogger(cfg *config.Config, component string, w io.Writer) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
		Output:    w,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadConfig reads .env and the environment and returns the configuration
// together with a logger built from it. Logs go to w.
func LoadConfig(component string, w io.Writer) (*config.Config, *applog.Logger) {
	envErr := LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg, component, w)
	if envErr != nil {
		logger.Warn("Failed to load .env file", applog.FieldError, envErr)
	}
	return cfg, logger
}

// MustValidate runs every check and exits the process on the first
// failure.
func MustValidate(logger *applog.Logger, checks ...func() error) {
	for _, check := range checks {
		if err := check(); err != nil {
			logger.Error("Configuration validation failed", applog.FieldError, err)
			os.Exit(1)
		}
	}
}

// OpenStore creates the store described by cfg.
func OpenStore(ctx context.Context, logger *applog.Logger, cfg backend.Config) (*backend.BackendResult, error) {
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog()).CreateBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
