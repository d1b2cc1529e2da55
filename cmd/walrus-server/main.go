// Package main provides the entry point for walrus-server.
//
// walrus-server is a single-process in-memory key/value store speaking a
// Redis-compatible wire protocol.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/walrusdb/walrus/internal/infra/confloader"
	"github.com/walrusdb/walrus/internal/infra/shutdown"
	"github.com/walrusdb/walrus/internal/server"
	"github.com/walrusdb/walrus/internal/server/config"
	"github.com/walrusdb/walrus/internal/store"
	"github.com/walrusdb/walrus/internal/telemetry/logger"
	"github.com/walrusdb/walrus/internal/telemetry/metric"
)

// Build information, set via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("walrus-server %s (commit: %s, built: %s)\n", version, commit, buildTime)
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	slog.SetDefault(log)

	log.Info("starting walrus-server",
		"version", version,
		"commit", commit,
		"config", *configFile)

	metrics := metric.New()

	db := store.New(
		store.WithLogger(log),
		store.WithMetrics(metrics),
	)

	srv := server.New(db,
		server.WithLogger(log),
		server.WithMetrics(metrics),
		server.WithMaxConnections(cfg.Limits.MaxConnections),
		server.WithRateLimit(cfg.Limits.RateLimit),
		server.WithReadBufferSize(cfg.Server.ReadBufferKiB*1024),
	)

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}

	shutdownHandler := shutdown.NewHandler(30 * time.Second)
	registerLifecycleHooks(shutdownHandler, log, db, srv)

	if cfg.Metrics.Enabled {
		metricsServer := &http.Server{
			Addr:    cfg.Metrics.Addr,
			Handler: metricsMux(metrics),
		}
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down metrics server")
			return metricsServer.Shutdown(ctx)
		})
		go func() {
			log.Info("metrics server listening", "addr", cfg.Metrics.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	if *configFile != "" {
		watcher, err := watchConfig(*configFile, log)
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		shutdownHandler.OnShutdown(func(context.Context) error {
			return watcher.Stop()
		})
	}

	go func() {
		log.Info("server listening", "addr", ln.Addr().String())
		if err := srv.Serve(context.Background(), ln); err != nil {
			log.Error("server error", "error", err)
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// registerLifecycleHooks wires teardown for the core components. Hooks run
// in reverse registration order, so the store is registered first: the
// listener drains its in-flight connections before the store goes away.
func registerLifecycleHooks(h *shutdown.Handler, log *slog.Logger, db *store.Store, srv *server.Server) {
	h.OnShutdown(func(context.Context) error {
		log.Info("shutting down store")
		db.Close()
		return nil
	})

	h.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down server")
		return srv.Shutdown(ctx)
	})
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// watchConfig reloads the log level when the configuration file changes.
// Other settings require a restart.
func watchConfig(configFile string, log *slog.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(configFile); err != nil {
		return nil, err
	}

	watcher.OnChange(func(string) {
		cfg, err := loadConfig(configFile)
		if err != nil {
			log.Warn("configuration reload failed", "error", err)
			return
		}
		if cfg.Log.Level != logger.Level() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})

	watcher.StartAsync()
	return watcher, nil
}

func metricsMux(metrics *metric.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
