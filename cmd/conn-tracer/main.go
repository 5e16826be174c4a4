// The conn-tracer agent: runs the workload cache behind the conn-tracer
// grant and serves lookups over HTTP. Optionally watches the deployed
// manifest for drift.
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

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/WhizardTelemetry/eBPFConductor/internal/api"
	"github.com/WhizardTelemetry/eBPFConductor/internal/cache"
	"github.com/WhizardTelemetry/eBPFConductor/internal/config"
	"github.com/WhizardTelemetry/eBPFConductor/internal/drift"
	"github.com/WhizardTelemetry/eBPFConductor/internal/k8s"
)

var version = "dev" // set at build time via -ldflags

func main() {
	showVersion := flag.Bool("version", false, "show version and exit")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("conn-tracer %s\n", version)
		os.Exit(0)
	}

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := config.LoadEnv(); err != nil {
		logger.Warn("loading .env failed", "error", err)
	}
	cfg := config.New()

	logger.Info("starting conn-tracer agent",
		"version", version,
		"port", cfg.AppPort,
		"manifest_path", cfg.ManifestPath,
	)

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("agent error", "error", err)
		os.Exit(1)
	}

	logger.Info("agent stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	client, err := k8s.Client()
	if err != nil {
		return fmt.Errorf("build cluster client: %w", err)
	}

	wc := cache.New(client, cfg.ResyncPeriod, logger.With("component", "cache"))

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.RegisterRoutes(router, cfg, wc)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: router,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return wc.Run(ctx)
	})

	g.Go(func() error {
		logger.Info("serving HTTP", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.ManifestPath != "" {
		w := drift.New(cfg.ManifestPath, logger.With("component", "drift"))
		g.Go(func() error {
			ch, err := w.Watch(ctx)
			if err != nil {
				return fmt.Errorf("start drift watch: %w", err)
			}
			for ev := range ch {
				logger.Warn("manifest drift",
					"id", ev.ID,
					"type", string(ev.Type),
					"path", ev.Path,
					"detail", ev.Detail,
				)
			}
			return nil
		})
	}

	return g.Wait()
}
