package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/ssr3bridge/internal/adapters/http/api"
	"github.com/okian/ssr3bridge/internal/adapters/http/feed"
	"github.com/okian/ssr3bridge/internal/adapters/http/swagger"
	service "github.com/okian/ssr3bridge/internal/app"
	"github.com/okian/ssr3bridge/internal/config"
	"github.com/okian/ssr3bridge/pkg/logger"
	"github.com/okian/ssr3bridge/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and websocket feed",
	Long: `Connects to the producer and serves:

  /state, /values/{key}, /derived   read API
  /commands, /reset                 write API
  /healthz, /stats                  metrics and service stats
  /api-docs, /openapi.yaml          API reference
  /ws                               websocket feed (ws_path)`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	log := logger.Get()

	opts, err := serviceOptions(cfg)
	if err != nil {
		return err
	}
	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return err
	}
	defer svc.Stop()

	go startServiceMetricsUpdater(ctx, svc)

	hub := feed.New(svc, feed.WithWriteTimeout(cfg.WSWriteTimeout()))
	defer hub.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc, hub),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error(ctx, "HTTP server failed", logger.Error(err))
		return err
	}
	log.Info(ctx, "shutting down server...")

	// Close the feed first; its connections are hijacked and Shutdown does
	// not wait for them.
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newMux registers every route. WriteTimeout is left unset on the server
// because the websocket feed is long lived; handlers bound their own writes.
func newMux(ctx context.Context, cfg *config.Config, svc *service.Service, hub *feed.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)
	mux.Handle(cfg.WSPath, hub)
	return mux
}

// startServiceMetricsUpdater refreshes gauges derived from service stats.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueDepth(queueLen)
	}
	if keys, ok := stats["keys"].(int); ok {
		metrics.UpdateStoreKeys(keys)
	}
	if connected, ok := stats["connected"].(bool); ok {
		metrics.UpdateConnectionState(connected)
	}
}
