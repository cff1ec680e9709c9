package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"serverwatch/internal/blob"
	"serverwatch/internal/blob/file"
	"serverwatch/internal/blob/postgres"
	"serverwatch/internal/config"
	"serverwatch/internal/httpapi"
	"serverwatch/internal/httpapi/middleware"
	"serverwatch/internal/logging"
	"serverwatch/internal/netgate"
	"serverwatch/internal/probe"
	"serverwatch/internal/registry"
	"serverwatch/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_open_error", zap.Error(err))
	}
	defer closeStore()

	reg := registry.New(logger, store)
	reg.Load(ctx)

	gate := netgate.New(logger, cfg.Netgate.Target, cfg.Netgate.Interval, cfg.Netgate.Timeout)
	gate.Start()
	defer gate.Stop()

	checker := probe.NewHTTPChecker(gate, cfg.ProbeTimeout)
	sched := scheduler.New(logger, reg, checker, store)
	defer sched.Stop()

	keys := middleware.Keys{Public: cfg.Auth.PublicKeys, Admin: cfg.Auth.AdminKeys}
	api := httpapi.NewServer(logger, reg, sched, keys, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	sched.Notify = api.BroadcastResult

	ac := sched.LoadSettings(ctx)

	// hold the first sweep until the gate has made at least one observation,
	// so a cold monitor cannot misclassify everything as offline
	go func() {
		select {
		case <-gate.Ready():
		case <-ctx.Done():
			return
		}
		if ac.Enabled {
			sched.Reconfigure(ctx, true, ac.IntervalMinutes)
		} else {
			sched.CheckAll(ctx)
		}
	}()

	srv := &http.Server{Addr: cfg.Addr, Handler: api.Router()}
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_serve_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_shutdown_error", zap.Error(err))
	}
}

// openStore picks the blob backend: postgres when DATABASE_URL is set, a
// file-per-key data directory otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (blob.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("store_postgres")
		return pg, pg.Close, nil
	}
	fs, err := file.New(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("store_file", zap.String("dir", cfg.DataDir))
	return fs, func() {}, nil
}
