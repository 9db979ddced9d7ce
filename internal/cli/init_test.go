package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"spendhelm/internal/config"
	"spendhelm/internal/log"
)

func TestSetupLogger(t *testing.T) {
	cfg := &config.Config{LogLevel: "debug", LogFormat: "json"}
	logger := SetupLogger(cfg, log.ComponentWorker)
	if logger.Component() != log.ComponentWorker {
		t.Fatalf("component = %q", logger.Component())
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug level not enabled")
	}
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("port = %q", cfg.Port)
	}
}

func TestMustOpenSQLite(t *testing.T) {
	repo := MustOpenSQLite(log.Discard(), filepath.Join(t.TempDir(), "cli.db"))
	defer repo.Close()
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestWaitForShutdownReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		WaitForShutdown(ctx, log.Discard())
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForShutdown did not return after cancel")
	}
}
