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

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/gfs-forecast-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/gfs-forecast-service/internal/adapter/kafka"
	"github.com/couchcryptid/gfs-forecast-service/internal/adapter/nomads"
	"github.com/couchcryptid/gfs-forecast-service/internal/adapter/sqlite"
	"github.com/couchcryptid/gfs-forecast-service/internal/config"
	"github.com/couchcryptid/gfs-forecast-service/internal/domain"
	"github.com/couchcryptid/gfs-forecast-service/internal/forecast"
	"github.com/couchcryptid/gfs-forecast-service/internal/observability"
)

func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before reading the environment")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		slog.Debug("env file not loaded", "path", *envFile, "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	regions, err := domain.NewRegionSet(cfg.Regions...)
	if err != nil {
		logger.Error("invalid regions", "error", err)
		os.Exit(1)
	}

	client := nomads.NewClient(cfg.GFSBaseURL, cfg.FetchTimeout, metrics, logger)
	fetcher := nomads.NewCachedFetcher(client, cfg.CacheSize, metrics)
	logger.Info("nomads client ready", "base_url", cfg.GFSBaseURL, "cache_size", cfg.CacheSize, "timeout", cfg.FetchTimeout)

	var sinks []forecast.Sink
	var history httpadapter.History

	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, writer)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}

	var archive *sqlite.Archive
	if cfg.ArchiveDBPath != "" {
		archive, err = sqlite.NewArchive(cfg.ArchiveDBPath, logger)
		if err != nil {
			logger.Error("failed to open archive", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, archive)
		history = archive
	}

	svc := forecast.NewService(fetcher, forecast.Options{
		Regions:            regions,
		PublicationLatency: cfg.PublicationLatency,
		MaxForecastHour:    cfg.MaxForecastHour,
		Sinks:              sinks,
	}, logger, metrics)

	info := svc.CurrentRun()
	logger.Info("latest run resolved", "run", info.ID, "address", info.Address)

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, history, cfg.MaxForecastHour, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start cache refresher.
	if cfg.RefreshEnabled {
		refresher := forecast.NewRefresher(svc, clockwork.NewRealClock(), cfg.DefaultRegion,
			cfg.RefreshHours, cfg.RefreshInterval, logger, metrics)
		go func() {
			if err := refresher.Run(ctx); err != nil {
				logger.Error("refresher error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if archive != nil {
		if err := archive.Close(); err != nil {
			logger.Error("archive close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
