package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/WilliamAziza/Sign-In-App/internal/broker"
	"github.com/WilliamAziza/Sign-In-App/internal/collector"
	"github.com/WilliamAziza/Sign-In-App/internal/config"
	"github.com/WilliamAziza/Sign-In-App/pkg/infra"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Configuration & Logger Initialization
	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("🔧 Initializing attendance collector...",
		"db_driver", cfg.CollectorDBDriver,
		"max_batch_size", cfg.MaxBatchSize,
	)

	// Canceled on SIGINT (Ctrl+C) or SIGTERM (docker stop)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := run(ctx, cfg, logger)
	stop()
	infra.CloseLogger()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) int {
	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("FATAL: Failed to connect to attendance database", "driver", cfg.CollectorDBDriver, "error", err)
		return 1
	}
	defer closeRepo()

	var publisher collector.Publisher = broker.Discard{}
	brokerDone := make(chan struct{})
	if cfg.RabbitMQURL != "" {
		sup := broker.NewRabbitMQSupervisor(cfg.RabbitMQURL, logger)
		go func() {
			defer close(brokerDone)
			sup.Run(ctx)
		}()
		publisher = sup
	} else {
		logger.Warn("RABBITMQ_URL not set, sign-in events will not be published")
		close(brokerDone)
	}

	svc := collector.NewService(repo, publisher, cfg.MaxBatchSize, logger,
		collector.WithPublishBudget(cfg.PublishTimeout),
	)

	r := infra.NewRouter(cfg.CORSOrigins)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	collector.RegisterRoutes(r.Group("/api"), svc)

	logger.Info("🚀 Collector is running", "addr", cfg.CollectorAddr)
	err = infra.Serve(ctx, cfg.CollectorAddr, r, logger)
	<-brokerDone
	if err != nil {
		logger.Error("HTTP server failed", "error", err)
		return 1
	}

	logger.Info("✅ Collector service shut down successfully.")
	return 0
}

func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (collector.Repository, func(), error) {
	if cfg.CollectorDBDriver == config.DriverFirebird {
		fb, err := collector.NewFirebirdRepository(cfg.FirebirdURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return fb, func() { fb.Close() }, nil
	}

	pg, err := collector.NewPostgresRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}
