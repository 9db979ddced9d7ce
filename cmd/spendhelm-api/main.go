package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spendhelm/internal/aggregates"
	"spendhelm/internal/amqp"
	"spendhelm/internal/auth"
	"spendhelm/internal/cache"
	"spendhelm/internal/cli"
	"spendhelm/internal/core"
	apphttp "spendhelm/internal/http"
	"spendhelm/internal/log"
	"spendhelm/internal/services"
)

func main() {
	cfg, envErr := cli.LoadConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)
	if envErr != nil {
		logger.Warn("Ignoring .env file", log.FieldError, envErr)
	}
	cli.MustValidate(logger, cfg.Validate)

	repo := cli.MustOpenSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Without a broker the expense service recomputes aggregates inline.
	var publisher services.EventPublisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		publisher = client
		logger.Info("Publishing expense events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled, aggregates are recomputed inline")
	}

	caches := cache.NewManager(logger)
	snapshots := cache.NewLRUCache[[]core.Expense](500, cfg.CacheTTL)
	caches.Register(snapshots)
	caches.StartCleanup(10 * time.Minute)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL, cfg.JWTIssuer)
	prefs := services.NewPreferenceService(repo)
	expenses := services.NewExpenseService(repo, publisher, aggregates.NewManager(repo, logger), snapshots, logger)
	defer expenses.Close()

	srv := apphttp.NewServer(apphttp.Services{
		Auth:        services.NewAuthService(repo, tokens, logger),
		Expenses:    expenses,
		Categories:  services.NewCategoryService(repo, logger),
		Preferences: prefs,
		Analytics:   services.NewAnalyticsService(expenses, repo, prefs, logger),
		Aggregates:  aggregates.NewService(repo),
		Tokens:      tokens,
		Ready:       repo,
	}, apphttp.Options{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Caches:             caches,
		Logger:             logger,
	})
	srv.MaxHeaderBytes = 1 << 16

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		cli.WaitForShutdown(ctx, logger)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting spendhelm API", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
