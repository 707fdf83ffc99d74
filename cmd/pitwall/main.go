package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pitwall/internal/cfg"
	"pitwall/internal/feed"
	"pitwall/internal/metrics"
	"pitwall/internal/service"
	"pitwall/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Optional .env for local development; env vars win either way.
	_ = godotenv.Load()

	setupLogging()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	candidates := append(
		[]service.ArtifactPaths{{Model: c.ModelPath, Preprocessor: c.PreprocessorPath}},
		service.DefaultArtifactPaths()...,
	)
	model, pre, trainedAt, err := service.LoadArtifacts(candidates)
	if err != nil {
		log.Fatal().Err(err).Msg("model artifacts unavailable")
	}

	svc, err := service.New(pre, model, m)
	if err != nil {
		log.Fatal().Err(err).Msg("prediction service initialization failed")
	}
	m.ModelAgeSet(time.Since(trainedAt).Seconds())
	log.Info().
		Int("depth", svc.ModelDepth()).
		Strs("classes", svc.ModelClasses()).
		Msg("model loaded")

	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	startMetricsServer(ctx, c)

	var wg sync.WaitGroup
	startPredictionServer(ctx, &wg, c, svc)
	startFeedSubscriber(ctx, &wg, c, svc, store, m)

	waitForShutdown(ctx, cancel, &wg)
}

func setupLogging() {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if os.Getenv("LOG_PRETTY") == "true" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// initializeStorage opens the audit store if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without persistence")
		return nil
	}
	return store
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(ctx context.Context, c cfg.Settings) {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// startPredictionServer starts the prediction HTTP API
func startPredictionServer(ctx context.Context, wg *sync.WaitGroup, c cfg.Settings, svc *service.Service) {
	server := service.NewServer(svc, c.ServerPort)

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown prediction server")
		}
	}()

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("prediction server failed")
		}
	}()
}

// startFeedSubscriber starts the live telemetry consumer if FEED_URL is
// configured
func startFeedSubscriber(ctx context.Context, wg *sync.WaitGroup, c cfg.Settings, svc *service.Service, store *storage.Store, m *metrics.Metrics) {
	if c.FeedURL == "" {
		log.Info().Msg("no feed URL configured, running API-only")
		return
	}

	var publisher *feed.Client
	if c.PublishURL != "" {
		publisher = feed.NewClient(c.PublishURL, c.RESTTimeout)
	}

	sub, err := feed.NewSubscriber(feed.Config{
		URL:       c.FeedURL,
		Ping:      c.PingInterval,
		DedupSize: c.DedupSize,
		Service:   svc,
		Store:     store,
		Publisher: publisher,
		Metrics:   m,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("feed subscriber initialization failed")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sub.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("telemetry feed ended")
		}
	}()
}

// waitForShutdown waits for shutdown signals and handles graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
