package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/WilliamAziza/Sign-In-App/internal/config"
	"github.com/WilliamAziza/Sign-In-App/internal/ussd"
	"github.com/WilliamAziza/Sign-In-App/pkg/infra"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)
	defer infra.CloseLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := ussd.OpenFileStore(cfg.USSDDataFile)
	if err != nil {
		logger.Error("FATAL: Failed to load USSD data file", "path", cfg.USSDDataFile, "error", err)
		os.Exit(1)
	}

	session := ussd.NewSession(store, logger, ussd.WithLocation(cfg.Location))

	r := infra.NewRouter(cfg.CORSOrigins)
	ussd.RegisterRoutes(r, session)

	logger.Info("📞 USSD backend service running", "addr", cfg.USSDAddr, "data_file", cfg.USSDDataFile)
	if err := infra.Serve(ctx, cfg.USSDAddr, r, logger); err != nil {
		logger.Error("USSD server failed", "error", err)
		return
	}
	logger.Info("✅ USSD service shut down successfully.")
}
