package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/crewscore/internal/adapters/repository"
	app "github.com/okian/crewscore/internal/app"
	"github.com/okian/crewscore/internal/config"
	"github.com/okian/crewscore/pkg/logger"
	"github.com/okian/crewscore/pkg/metrics"
)

// HTTP server timeout constants for the metrics listener.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal(ctx, "failed to load configuration", logger.Error(err))
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log level, keeping info", logger.String("level", cfg.LogLevel))
	}

	opts := []app.Option{app.FromConfig(cfg)}
	if cfg.WeightStore == "badger" {
		ws, err := repository.OpenBadgerWeightStore(cfg.BadgerPath)
		if err != nil {
			log.Fatal(ctx, "failed to open weight store", logger.Error(err))
		}
		opts = append(opts, app.WithWeightStore(ws))
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		log.Fatal(ctx, "failed to start service", logger.Error(err))
	}

	// Prometheus exposition endpoint.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		log.Info(ctx, "metrics listener started", logger.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "metrics listener failed", logger.Error(err))
		}
	}()

	// Background learning scheduler. Scoring never blocks on it; a failed
	// cycle only logs and waits for the next tick.
	if cfg.LearningIntervalMinutes > 0 {
		interval := time.Duration(cfg.LearningIntervalMinutes) * time.Minute
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					report, err := svc.RunLearningCycle(ctx, cfg.LearningLookbackDays, "", false)
					if err != nil {
						log.Error(ctx, "learning cycle failed", logger.Error(err))
						continue
					}
					log.Info(ctx, "scheduled learning cycle done",
						logger.String("runID", report.RunID),
						logger.String("status", report.Status),
						logger.Int64("newVersion", report.NewWeightVersion),
					)
				}
			}
		}()
	}

	<-ctx.Done()
	log.Info(context.Background(), "shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	svc.Stop(shutdownCtx)
}
