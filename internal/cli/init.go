// Package cli holds the start-up steps shared by the spendhelm binaries.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"spendhelm/internal/config"
	"spendhelm/internal/log"
	"spendhelm/internal/storage"
)

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (*config.Config, error) {
	err := config.LoadDotEnv()
	return config.Load(), err
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
	})
	log.SetDefault(logger)
	return logger
}

// MustValidate exits the process when validate reports a problem.
func MustValidate(logger *log.Logger, validate func() error) {
	if err := validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
}

// MustOpenSQLite opens the repository at dbPath, running migrations, or
// exits the process.
func MustOpenSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// WaitForShutdown blocks until SIGINT/SIGTERM arrives or ctx ends.
func WaitForShutdown(ctx context.Context, logger *log.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}
}
