package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/djlord-it/linkswap/internal/api"
	"github.com/djlord-it/linkswap/internal/circuitbreaker"
	"github.com/djlord-it/linkswap/internal/config"
	"github.com/djlord-it/linkswap/internal/engine"
	"github.com/djlord-it/linkswap/internal/metrics"
	"github.com/djlord-it/linkswap/internal/stats"
	"github.com/djlord-it/linkswap/internal/tracing"
)

func runServe(ctx context.Context, cfg config.Config) error {
	logConfigWarnings(&cfg)

	// Parsed before anything is started so a bad expression leaves nothing
	// running.
	var schedule stats.Schedule
	if cfg.StatsEnabled() {
		var err error
		schedule, err = stats.ParseSchedule(cfg.StatsSchedule)
		if err != nil {
			return runtimeError("stats schedule: %v", err)
		}
	}

	shutdownTracing, err := tracing.Setup(ctx, "linkswap", version, cfg.OTelEndpoint)
	if err != nil {
		return runtimeError("failed to set up tracing: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Printf("linkswap: tracing shutdown error: %v", err)
		}
	}()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return runtimeError("failed to open store: %v", err)
	}
	defer b.close()

	if err := b.ensureSchema(ctx); err != nil {
		return runtimeError("%v", err)
	}

	// Initialize metrics sink (optional)
	var metricsSink metrics.Sink = metrics.NewNoopSink()
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("linkswap: metrics enabled (port=%s, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

		// Start metrics HTTP server on separate port
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Printf("linkswap: metrics server listening on :%s", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("linkswap: metrics server error: %v", err)
			}
		}()
	} else {
		log.Println("linkswap: METRICS_ENABLED not set; metrics disabled")
	}

	eng := engine.New(b.store).
		WithThresholds(engine.Thresholds{
			Ratio:   cfg.InterstitialRatio,
			Minimum: cfg.InterstitialMinimum,
		}).
		WithMetrics(metricsSink)

	apiHandler := api.NewHandler(eng, b.store).WithHealthChecker(b.health)

	if cfg.CircuitBreakerThreshold > 0 {
		breaker := circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown).
			WithStateSink(metricsSink)
		eng.WithBreaker(breaker, b.name)
		apiHandler.WithBreakerState(breaker, b.name)
		log.Printf("linkswap: circuit breaker enabled (threshold=%d, cooldown=%s)",
			cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
	} else {
		log.Println("linkswap: CIRCUIT_BREAKER_THRESHOLD=0; circuit breaker disabled")
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apiHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("linkswap: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("linkswap: http server error: %v", err)
		}
	}()

	// Start stats collector if enabled
	var statsWg sync.WaitGroup
	var cancelStats context.CancelFunc
	if schedule != nil {
		var statsCtx context.Context
		statsCtx, cancelStats = context.WithCancel(context.Background())
		collector := stats.New(b.store, schedule, metricsSink)
		statsWg.Add(1)
		go func() {
			defer statsWg.Done()
			collector.Run(statsCtx)
		}()
	} else {
		log.Println("linkswap: STATS_SCHEDULE=off; stats collector disabled")
	}

	log.Printf("linkswap: started (store=%s, http=%s, ratio=%g, minimum=%d)",
		b.name, cfg.HTTPAddr, cfg.InterstitialRatio, cfg.InterstitialMinimum)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case received := <-sig:
		log.Printf("linkswap: received signal %v, shutting down", received)
	case <-ctx.Done():
		log.Printf("linkswap: context cancelled, shutting down")
	}

	// Phase 1: Stop accepting requests; in-flight decisions finish.
	log.Println("linkswap: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("linkswap: http server shutdown error: %v", err)
	}
	log.Println("linkswap: http server stopped")

	// Phase 2: Stop stats collector
	if cancelStats != nil {
		log.Println("linkswap: stopping stats collector...")
		cancelStats()
		statsWg.Wait()
		log.Println("linkswap: stats collector stopped")
	}

	// Phase 3: Stop metrics server if running (with same timeout)
	if metricsServer != nil {
		log.Println("linkswap: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("linkswap: metrics server shutdown error: %v", err)
		}
		log.Println("linkswap: metrics server stopped")
	}

	log.Println("linkswap: stopped")
	return nil
}
