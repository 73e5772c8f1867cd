// Command gatewayd is the main entry point for the WAAV voice gateway: it
// loads a pipeline configuration, builds the plugin registry, compiles the
// configured DAG pipelines, and serves inbound WebSocket streams alongside
// the HTTP discovery, health, and metrics surfaces.
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

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/budecosystem/waav-gateway/internal/api"
	"github.com/budecosystem/waav-gateway/internal/config"
	"github.com/budecosystem/waav-gateway/internal/health"
	"github.com/budecosystem/waav-gateway/internal/observe"
	"github.com/budecosystem/waav-gateway/pkg/healthstore"
	"github.com/budecosystem/waav-gateway/pkg/registry"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "gatewayd: config file %q not found — pass -config with the path to a YAML configuration file\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "gatewayd: %v\n", err)
		}
		return 1
	}

	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("gatewayd starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"pipelines", len(cfg.Pipelines),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "waav-gateway",
		ServiceVersion: registry.GatewayVersion,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown error", "err", err)
		}
	}()

	reg := registry.New()
	registerBuiltins(reg)
	logConfiguredProviders(cfg)

	if len(cfg.Plugins.Dirs) > 0 {
		if err := reg.LoadDynamicPlugins(cfg.Plugins.Dirs); err != nil {
			slog.Error("failed to load dynamic plugins", "err", err)
			return 1
		}
	}

	initialPipelines, err := compilePipelines(cfg, reg)
	if err != nil {
		slog.Error("failed to compile pipelines", "err", err)
		return 1
	}
	slog.Info("pipelines compiled", "count", len(initialPipelines))
	pipelines := newPipelineSet(initialPipelines)

	watcher, err := config.NewWatcher(*configPath, func(old, newCfg *config.Config) {
		diff := config.Diff(old, newCfg)

		if diff.LogLevelChanged {
			logLevel.Set(logLevelToSlog(diff.NewLogLevel))
			slog.Info("config watcher: log level updated", "level", diff.NewLogLevel)
		}

		if diff.PipelinesChanged {
			if err := pipelines.reload(newCfg, reg, diff); err != nil {
				slog.Error("config watcher: pipeline reload failed", "err", err)
				return
			}
			slog.Info("config watcher: pipelines reloaded", "changes", len(diff.PipelineChanges))
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	var store *healthstore.Store
	if cfg.HealthStore.DSN != "" {
		store, err = healthstore.Open(ctx, cfg.HealthStore.DSN)
		if err != nil {
			slog.Error("failed to open health store", "err", err)
			return 1
		}
		defer store.Close()

		interval := cfg.HealthStore.SnapshotInterval
		if interval <= 0 {
			interval = time.Minute
		}
		go healthstore.RunPeriodicSnapshots(ctx, store, reg, interval)
	}

	metrics := observe.DefaultMetrics()
	go runMetricsBridge(ctx, pipelines, metrics)

	srv := newHTTPServer(cfg, reg, pipelines, metrics, store)

	serveErrCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
			return
		}
		serveErrCh <- nil
	}()

	slog.Info("gatewayd ready — press Ctrl+C to shut down")

	select {
	case <-ctx.Done():
	case err := <-serveErrCh:
		if err != nil {
			slog.Error("http server error", "err", err)
			return 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// newHTTPServer assembles the gateway's single HTTP server: plugin
// discovery (internal/api), liveness/readiness (internal/health), a
// Prometheus scrape endpoint, and the WebSocket ingress for every
// configured pipeline.
func newHTTPServer(cfg *config.Config, reg *registry.Registry, pipelines *pipelineSet, metrics *observe.Metrics, store *healthstore.Store) *http.Server {
	r := mux.NewRouter()
	r.Use(observe.Middleware(metrics))

	api.New(reg).Register(r)
	newIngress(pipelines).register(r)

	checkers := []health.Checker{
		{Name: "registry", Check: func(ctx context.Context) error {
			if len(reg.Snapshot()) == 0 {
				return fmt.Errorf("no providers registered")
			}
			return nil
		}},
	}
	if store != nil {
		checkers = append(checkers, health.Checker{Name: "health_store", Check: func(ctx context.Context) error {
			_, _, err := store.LastSnapshot(ctx, "__healthcheck__", "__healthcheck__")
			return err
		}})
	}
	healthHandler := health.New(checkers...)
	r.HandleFunc("/healthz", healthHandler.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", healthHandler.Readyz).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming WebSocket connections have no fixed write deadline
	}
}

// newLogger builds the gateway's logger around a [slog.LevelVar] rather than
// a fixed level, so the config watcher can raise or lower verbosity at
// runtime without rebuilding the handler.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(logLevelToSlog(level))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	return logger, lvl
}

func logLevelToSlog(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
