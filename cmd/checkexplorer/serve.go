package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"checkexplorer/internal/config"
	"checkexplorer/internal/explorer"
	"checkexplorer/internal/logging"
	"checkexplorer/internal/lokiclient"
	"checkexplorer/internal/metrics"
	"checkexplorer/internal/monitor"
	"checkexplorer/internal/server"
	"checkexplorer/internal/storage"
)

func newServeCommand(configPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the explorer HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "address for the web server (overrides listen_addr)")
	return cmd
}

func serve(parent context.Context, cfg config.Config) error {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("initialise storage: %w", err)
	}
	defer db.Close()
	store := storage.NewCheckStore(db)

	loki, err := lokiclient.New(lokiclient.Options{
		BaseURL:    cfg.Loki.URL,
		TenantID:   cfg.Loki.TenantID,
		CheckLabel: cfg.Loki.CheckLabel,
		Timeout:    cfg.Loki.Timeout(),
		Logger:     logger.Named("loki"),
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	clk := clock.New()
	sessions, err := explorer.NewRegistry(explorer.Deps{
		Config: store,
		Logs:   loki,
		Probes: store,
		Clock:  clk,
		Logger: logger.Named("explorer"),
	}, explorer.Options{
		PageSize:         cfg.Explorer.PageSize,
		PageLimit:        cfg.Loki.PageLimit,
		FetchConcurrency: cfg.Explorer.FetchConcurrency,
		FetchRetries:     cfg.Explorer.FetchRetries,
		Markers:          cfg.Markers,
	})
	if err != nil {
		return err
	}

	refresher := monitor.New(cfg.RefreshInterval(), sessions, clk, logger.Named("refresh"))
	refresher.Start()
	defer refresher.Stop()

	srv := server.New(server.Options{
		Addr:         cfg.ListenAddr,
		Registry:     sessions,
		Gatherer:     reg,
		Logger:       logger.Named("http"),
		PushInterval: cfg.RefreshInterval(),
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("checkexplorer listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("loki", cfg.Loki.URL),
		zap.Duration("refresh", cfg.RefreshInterval()))
	if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
