package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/clearbook/clearbook/internal/config"
	"github.com/clearbook/clearbook/internal/events"
	"github.com/clearbook/clearbook/internal/infra"
	"github.com/clearbook/clearbook/internal/logging"
	"github.com/clearbook/clearbook/internal/routes"
	"github.com/clearbook/clearbook/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	deps := routes.Deps{Cfg: cfg, Logger: logger}

	if cfg.DatabaseURL != "" {
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		deps.DB = db
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
	}

	if cfg.RedisURL != "" {
		cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
		deps.Cache = cache
	} else {
		logger.Warn("REDIS_URL not set, idempotency cache disabled")
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("close kafka publisher", "error", err)
			}
		}()
		deps.Publisher = publisher
	}

	srv, err := server.New(deps)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
