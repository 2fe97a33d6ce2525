package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WilliamAziza/Sign-In-App/internal/attendance"
	"github.com/WilliamAziza/Sign-In-App/internal/config"
	"github.com/WilliamAziza/Sign-In-App/internal/connectivity"
	"github.com/WilliamAziza/Sign-In-App/internal/kiosk"
	"github.com/WilliamAziza/Sign-In-App/internal/queue"
	"github.com/WilliamAziza/Sign-In-App/internal/syncer"
	"github.com/WilliamAziza/Sign-In-App/pkg/infra"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const usage = `usage: kiosk <command> [flags]

commands:
  signin  -name NAME -id EMPLOYEE_ID [-offline]   record a sign-in and sync if online
  history                                         list queued sign-ins
  sync                                            push the queue to the collector now
  watch                                           sync every time the network comes back
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// os.Exit skips defers
	code := run(ctx, cfg, logger, os.Args[1], os.Args[2:])
	stop()
	infra.CloseLogger()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, cmd string, args []string) int {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	name := fs.String("name", "", "employee full name")
	employeeID := fs.String("id", "", "employee id")
	offline := fs.Bool("offline", false, "skip the connectivity probe and queue only")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Error("FATAL: Failed to open local queue", "backend", cfg.QueueBackend, "error", err)
		return 1
	}
	defer closeBackend()

	store := queue.New(backend, logger)

	var probe connectivity.Probe = connectivity.NewDialProbe(cfg.ProbeAddr, cfg.ProbeTimeout, logger)
	if *offline {
		probe = connectivity.Offline
	}

	// SYNC_TIMEOUT_SEC=0 leaves only the transport's own limits
	client := syncer.NewClient(store, &http.Client{Timeout: cfg.SyncTimeout}, cfg.CollectorURL, logger)
	svc := kiosk.NewService(store, probe, client, logger,
		kiosk.WithClock(func() time.Time { return time.Now().In(cfg.Location) }),
	)

	switch cmd {
	case "signin":
		return signIn(ctx, svc, *name, *employeeID)
	case "history":
		if err := kiosk.RenderHistory(os.Stdout, svc.History(ctx)); err != nil {
			logger.Error("Failed to render history", "error", err)
			return 1
		}
		return 0
	case "sync":
		out := svc.SyncNow(ctx)
		fmt.Println(out.Message())
		if out.Kind == syncer.Synced || out.Kind == syncer.NothingToSync {
			return 0
		}
		return 1
	case "watch":
		if cfg.MetricsAddr != "" {
			go startObservabilityServer(ctx, cfg.MetricsAddr, logger)
		}
		svc.Watch(ctx, cfg.WatchInterval)
		return 0
	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
}

func signIn(ctx context.Context, svc *kiosk.Service, name, employeeID string) int {
	res, err := svc.SignIn(ctx, name, employeeID)
	var verr *attendance.ValidationError
	var perr *queue.PersistenceError
	switch {
	case errors.As(err, &verr):
		fmt.Fprintln(os.Stderr, "Error:", verr.Error())
		return 2
	case errors.As(err, &perr):
		fmt.Fprintln(os.Stderr, "Failed to save sign-in data.")
		return 1
	case err != nil:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}

	fmt.Printf("%s, %s\n", res.Record.Name, attendance.Status(res.Record))
	fmt.Println(res.Message())
	return 0
}

func openBackend(ctx context.Context, cfg *config.Config) (queue.Backend, func(), error) {
	if cfg.QueueBackend == config.QueueBackendPostgres {
		pg, err := queue.NewPostgresBackend(ctx, cfg.DatabaseURL, cfg.QueueKey)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}
	return queue.NewFileBackend(cfg.QueueFile), func() {}, nil
}

func startObservabilityServer(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("📊 Observability server online", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Observability server failed", "error", err)
	}
}
