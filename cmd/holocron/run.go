package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/dnscache"

	"github.com/eugener/holocron/internal/app"
	"github.com/eugener/holocron/internal/cache"
	"github.com/eugener/holocron/internal/config"
	"github.com/eugener/holocron/internal/ratelimit"
	"github.com/eugener/holocron/internal/remote"
	"github.com/eugener/holocron/internal/server"
	"github.com/eugener/holocron/internal/storage"
	"github.com/eugener/holocron/internal/telemetry"
	"github.com/eugener/holocron/internal/worker"
)

const (
	limiterJanitorInterval = time.Minute
	limiterIdleAfter       = 10 * time.Minute
)

func run(configPath string) error {
	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.Info("starting holocron", "version", version, "addr", cfg.Server.Addr,
		"storage", cfg.Storage.Type, "cache_enabled", cfg.Cache.Enabled, "ttl", cfg.Cache.TTL)

	ctx := context.Background()

	// Tracing
	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.SampleRate, version)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				slog.Warn("tracing shutdown", "error", err)
			}
		}()
	}

	// Metrics
	var (
		metrics        *telemetry.Metrics
		metricsHandler http.Handler
		observe        remote.Observer
		opts           []cache.Option
	)
	if cfg.Telemetry.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = telemetry.NewMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		observe = metrics.ObserveUpstream
		opts = append(opts, cache.WithHooks(metrics.CacheHooks()))
	}

	// Upstream and cache
	resolver := &dnscache.Resolver{}
	guarded := app.NewRemote(cfg.Remote, resolver, observe)
	client, backend, err := app.NewFromConfig(ctx, guarded, cfg, opts...)
	if err != nil {
		return err
	}
	defer backend.Close()

	limiter := ratelimit.New(cfg.Server.RateLimitRPM)

	readyCheck := func(context.Context) error { return nil }
	if p, ok := backend.(storage.Pinger); ok {
		readyCheck = p.Ping
	}

	// Create HTTP server
	handler := server.New(server.Deps{
		Catalog:        client,
		Cache:          client,
		Breakers:       guarded.Breakers(),
		ReadyCheck:     readyCheck,
		RateLimiter:    limiter,
		AdminToken:     cfg.Server.AdminToken,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Background workers
	workers := []worker.Worker{
		worker.NewLimiterJanitor(limiter, limiterJanitorInterval, limiterIdleAfter),
	}
	if cfg.Cache.Enabled && cfg.Cache.SweepInterval > 0 {
		workers = append(workers, worker.NewExpirySweeper(client, cfg.Cache.SweepInterval, func(n int) {
			if metrics != nil {
				metrics.SweepRemoved.Add(float64(n))
			}
		}))
	}
	if cfg.Remote.DNSTTL > 0 {
		workers = append(workers, worker.NewDNSRefresher(resolver, cfg.Remote.DNSTTL))
	}
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	workerDone := make(chan error, 1)
	go func() { workerDone <- worker.NewRunner(workers...).Run(workerCtx) }()

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("holocron ready", "addr", cfg.Server.Addr, "upstream", cfg.Remote.BaseURL)

	// Wait for signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		return err
	case err := <-workerDone:
		if err != nil {
			return err
		}
	}

	// Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	stopWorkers()

	slog.Info("holocron stopped")
	return nil
}
