package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/godetect/internal/config"
	"github.com/MeKo-Tech/godetect/internal/server"
	"github.com/MeKo-Tech/godetect/internal/version"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for the detection API",
		Long: `Start an HTTP server that provides REST and WebSocket endpoints for object detection.

The server provides the following endpoints:
  POST /detect/image - Detect objects in an uploaded image (multipart field "image")
  POST /detect/pdf   - Detect objects in images of an uploaded PDF (multipart field "pdf")
  GET  /ws/detect    - WebSocket streaming detection (JSON messages, base64 image)
  GET  /health       - Health check endpoint
  GET  /models       - List models and pipeline settings
  GET  /metrics      - Prometheus metrics

Examples:
  godetect serve
  godetect serve --port 8080
  godetect serve --host 0.0.0.0 --port 3000 --cache memory`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd)
		},
	}

	d := config.DefaultConfig().Server
	f := cmd.Flags()
	f.String("host", d.Host, "server host")
	f.IntP("port", "p", d.Port, "server port")
	f.String("cors-origin", d.CORSOrigin, "CORS allowed origin")
	f.Int("max-upload-size", d.MaxUploadMB, "maximum upload size in MB")
	f.Int("timeout", d.TimeoutSec, "request timeout in seconds")
	f.Int("shutdown-timeout", d.ShutdownTimeout, "graceful shutdown timeout in seconds")
	f.Bool("rate-limit-enabled", d.RateLimit.Enabled, "enable per-client rate limiting")
	f.Int("requests-per-minute", d.RateLimit.RequestsPerMinute, "maximum requests per minute per client")
	f.Int("requests-per-hour", d.RateLimit.RequestsPerHour, "maximum requests per hour per client")
	f.Int("max-requests-per-day", d.RateLimit.MaxRequestsPerDay, "maximum requests per day per client (0 = unlimited)")
	f.Int64("max-data-per-day", d.RateLimit.MaxDataPerDayMB, "maximum upload MB per day per client (0 = unlimited)")
	f.String("cache", config.DefaultConfig().Cache.Backend, "result cache backend (none, memory, redis)")
	f.String("redis-address", config.DefaultConfig().Cache.Redis.Address, "redis address for the redis cache")

	a.bind(f, map[string]string{
		"host":                 "server.host",
		"port":                 "server.port",
		"cors-origin":          "server.cors_origin",
		"max-upload-size":      "server.max_upload_mb",
		"timeout":              "server.timeout_sec",
		"shutdown-timeout":     "server.shutdown_timeout",
		"rate-limit-enabled":   "server.rate_limit.enabled",
		"requests-per-minute":  "server.rate_limit.requests_per_minute",
		"requests-per-hour":    "server.rate_limit.requests_per_hour",
		"max-requests-per-day": "server.rate_limit.max_requests_per_day",
		"max-data-per-day":     "server.rate_limit.max_data_per_day_mb",
		"cache":                "cache.backend",
		"redis-address":        "cache.redis.address",
	})
	return cmd
}

// serverConfig converts the loaded configuration into server settings.
func (a *app) serverConfig() server.Config {
	sc := a.cfg.Server
	cfg := server.Config{
		Host:        sc.Host,
		Port:        sc.Port,
		CORSOrigin:  sc.CORSOrigin,
		MaxUploadMB: int64(sc.MaxUploadMB),
		TimeoutSec:  sc.TimeoutSec,
		ModelsDir:   a.cfg.ModelsDir,
		Version:     version.Version,
		Format:      a.formatOptions(),
		Cache:       a.cfg.ToCacheOptions(),
	}
	if rl := sc.RateLimit; rl.Enabled {
		cfg.RateLimit = &server.RateLimitConfig{
			RequestsPerMinute: rl.RequestsPerMinute,
			RequestsPerHour:   rl.RequestsPerHour,
			MaxRequestsPerDay: rl.MaxRequestsPerDay,
			MaxDataPerDay:     rl.MaxDataPerDayMB * 1024 * 1024,
		}
	}
	return cfg
}

func (a *app) runServe(cmd *cobra.Command) error {
	sc := a.cfg.Server
	if sc.Port < 1 || sc.Port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", sc.Port)
	}

	pl, err := a.buildPipeline(nil)
	if err != nil {
		return err
	}
	srv, err := server.NewServer(a.serverConfig(), pl)
	if err != nil {
		_ = pl.Close()
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	timeout := time.Duration(sc.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", sc.Host, sc.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}
	return serveUntilDone(cmd.Context(), httpServer, time.Duration(sc.ShutdownTimeout)*time.Second)
}

// serveUntilDone runs httpServer until ctx is cancelled, then shuts it down gracefully.
func serveUntilDone(ctx context.Context, httpServer *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting detection server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
