package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jamolstroy/jamolstroy-service/config"
	"github.com/jamolstroy/jamolstroy-service/internal/infra/postgres"
	"github.com/jamolstroy/jamolstroy-service/internal/infra/redisdb"
	"github.com/jamolstroy/jamolstroy-service/internal/infra/server"
	"github.com/jamolstroy/jamolstroy-service/pkg/logger"
)

func main() {
	mainContext := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	observableLogger, loggerProvider, err := logger.NewObservableLogger(&cfg)
	if err != nil {
		// Fall back to local-only logging when the OTLP collector is absent.
		observableLogger = logger.NewLogger(&cfg)
		slog.SetDefault(observableLogger)
		slog.Warn("OTLP logging unavailable, using local logger", slog.String("error", err.Error()))
	} else {
		slog.SetDefault(observableLogger)
	}

	conn, err := postgres.Init(cfg)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	redisClient, err := redisdb.Init(cfg)
	if err != nil {
		slog.Error("failed to connect to redis", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := server.New(mainContext, &cfg, conn, redisClient)
	if srv == nil {
		slog.Error("failed to initialize server")
		os.Exit(1)
	}
	if loggerProvider != nil {
		srv.SetLoggerProvider(loggerProvider)
	}

	srv.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("Received shutdown signal", slog.String("signal", sig.String()))

	srv.Shutdown()
}
