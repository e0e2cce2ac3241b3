package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tabload/internal/web"
)

var (
	servePort      int
	serveNoPreload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve record sets and cache statistics over HTTP",
	Long: `Serve preloads every registered record set and exposes them over HTTP:

  GET    /healthz
  GET    /api/stats
  GET    /api/sets
  GET    /api/sets/{key}?resolve=false
  DELETE /api/sets/{key}
  DELETE /api/cache`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (default: $SERVER_PORT or 8080)")
	serveCmd.Flags().BoolVar(&serveNoPreload, "no-preload", false, "skip preloading sets at startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	l, err := newLoader(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !serveNoPreload {
		if err := l.Preload(ctx); err != nil {
			return fmt.Errorf("preload: %w", err)
		}
		slog.Info("sets preloaded", "count", l.Schemas().Len())
	}

	server := web.NewServer(l, web.Options{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Logger:       slog.Default(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server on %s: %w", cfg.Server.Addr(), err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}
