package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/swatto/wabulk/internal/config"
	"github.com/swatto/wabulk/internal/handler"
	"github.com/swatto/wabulk/internal/store"
	"github.com/swatto/wabulk/internal/whatsapp"
)

// shutdownTimeout gives outstanding requests and the active run time to stop.
const shutdownTimeout = 10 * time.Second

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local web UI and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, a.cfg, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.String("port", "9090", "HTTP port")
	f.String("log-format", "simple", "access log format: simple or nginx")
	f.Int("rate-limit", 0, "run starts per minute, 0 disables")
	f.String("access-token", "", "bearer token required on /api/*")
	f.Bool("dry-run", false, "log messages instead of opening WhatsApp Web")
	f.Bool("headless", false, "run Chrome without a window")
	bindFlag(cmd, "port", "port")
	bindFlag(cmd, "log-format", "log_format")
	bindFlag(cmd, "rate-limit", "rate_limit")
	bindFlag(cmd, "access-token", "access_token")
	bindFlag(cmd, "dry-run", "dry_run")
	bindFlag(cmd, "headless", "browser.headless")
	return cmd
}

// runServer serves the UI until ctx is cancelled, then shuts the server down
// and cancels any active run.
func runServer(ctx context.Context, cfg *config.Config, out io.Writer) error {
	st, err := store.Open(ctx, cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer func() { _ = st.Close() }()

	hcfg := &handler.Config{
		RateLimit:    cfg.RateLimit,
		LogFormat:    cfg.LogFormat,
		AccessToken:  cfg.AccessToken,
		DryRun:       cfg.DryRun,
		DefaultDelay: cfg.Delay,
		CountryCode:  cfg.CountryCode,
	}
	if err := hcfg.Validate(); err != nil {
		return fmt.Errorf("startup: invalid configuration: %w", err)
	}

	opts := browserOptions(cfg)
	h := handler.New(hcfg, func() whatsapp.Sender {
		return whatsapp.NewBrowserSender(opts)
	}, st, Version)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.LogRequests(cfg.LogFormat, mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server: started", "app", AppName, "version", Version, "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("startup: failed to start HTTP server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("server: shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: server forced to terminate: %w", err)
		}
		if err := h.Close(sctx); err != nil {
			return fmt.Errorf("shutdown: active run did not stop: %w", err)
		}
		return nil
	})

	printBanner(out, cfg)

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server: stopped gracefully")
	return nil
}
