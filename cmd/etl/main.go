// Command etl runs the tidal journal pipeline: backfill the daily ledger up
// to yesterday, then export the merged history + forecast window snapshot.
//
// By default it performs a single run and exits; cron or any external
// scheduler serializes invocations. With -serve it runs on a fixed interval
// and exposes /healthz, /readyz, /metrics, and /data.json.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/lapan-fishing/tide-journal-etl/internal/adapter/http"
	kafkaadapter "github.com/lapan-fishing/tide-journal-etl/internal/adapter/kafka"
	"github.com/lapan-fishing/tide-journal-etl/internal/adapter/stormglass"
	"github.com/lapan-fishing/tide-journal-etl/internal/config"
	"github.com/lapan-fishing/tide-journal-etl/internal/export"
	"github.com/lapan-fishing/tide-journal-etl/internal/ledger"
	"github.com/lapan-fishing/tide-journal-etl/internal/observability"
	"github.com/lapan-fishing/tide-journal-etl/internal/pipeline"
)

func main() {
	serve := flag.Bool("serve", false, "run on an interval with an HTTP endpoint instead of once")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	fetcher := stormglass.NewClient(stormglass.Config{
		BaseURL:   cfg.StormglassBaseURL,
		Keys:      cfg.StormglassKeys,
		Lat:       cfg.Latitude,
		Lon:       cfg.Longitude,
		Source:    cfg.StormglassSource,
		Location:  cfg.Location,
		BlockDays: cfg.BlockDays,
		Timeout:   cfg.RequestTimeout,
	}, logger, metrics)

	store := ledger.NewStore(cfg.HistoryCSV, cfg.Location, cfg.RoundDecimals, logger)
	writer := export.NewWriter(cfg.SiteJSON, logger)

	var publisher pipeline.Publisher
	var closer interface{ Close() error }
	if cfg.KafkaEnabled {
		pub := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		publisher = pub
		closer = pub
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(fetcher, store, writer, publisher, logger, metrics, pipeline.Settings{
		Location:           cfg.Location,
		Source:             cfg.StormglassSource,
		LookbackDays:       cfg.LookbackDays,
		WindowDays:         cfg.WindowDays,
		MinPressureSamples: cfg.MinPressureSamples,
		RoundDecimals:      cfg.RoundDecimals,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exitCode := 0
	if *serve {
		runServe(ctx, cfg, p, logger)
	} else {
		if err := p.Run(ctx); err != nil {
			exitCode = 1
		}
	}

	if closer != nil {
		if err := closer.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	os.Exit(exitCode)
}

// runServe runs the pipeline immediately and then on every tick until the
// context is cancelled, serving health and metrics alongside.
func runServe(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) {
	srv := httpadapter.NewServer(cfg.HTTPAddr, cfg.SiteJSON, p, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		// A failed run keeps the service alive; the error document and the
		// runs_total{outcome="error"} counter make the failure observable.
		if err := p.Run(ctx); err != nil {
			logger.Error("initial run failed", "error", err)
		}
		t := time.NewTicker(cfg.RunInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := p.Run(ctx); err != nil {
					logger.Error("scheduled run failed", "error", err)
				}
			}
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
