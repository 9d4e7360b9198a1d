// Command neo-risk serves the near-earth object listing, alert and chat APIs,
// and runs the daily hazard scan.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/couchcryptid/neo-risk-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/neo-risk-service/internal/adapter/kafka"
	"github.com/couchcryptid/neo-risk-service/internal/adapter/neows"
	"github.com/couchcryptid/neo-risk-service/internal/adapter/sqlite"
	"github.com/couchcryptid/neo-risk-service/internal/adapter/ws"
	"github.com/couchcryptid/neo-risk-service/internal/broadcast"
	"github.com/couchcryptid/neo-risk-service/internal/chat"
	"github.com/couchcryptid/neo-risk-service/internal/config"
	"github.com/couchcryptid/neo-risk-service/internal/observability"
	"github.com/couchcryptid/neo-risk-service/internal/pipeline"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	store, err := sqlite.Open(cfg.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	bus := broadcast.NewBus(cfg.BroadcastBuffer, metrics, logger)
	chatService := chat.NewService(store, bus, cfg.ChatHistoryLimit, logger)

	feed := neows.NewClient(cfg.FeedURL, cfg.NASAAPIKey, cfg.FeedTimeout, metrics, logger)
	var listingFeed pipeline.FeedClient = feed
	if cfg.FeedCacheTTL > 0 {
		listingFeed = neows.NewCachedFeed(feed, cfg.FeedCacheSize, cfg.FeedCacheTTL, clock)
		logger.Info("feed cache enabled", "ttl", cfg.FeedCacheTTL, "size", cfg.FeedCacheSize)
	}
	lister := pipeline.NewLister(listingFeed, cfg.LookaheadDays, clock, metrics, logger)

	var relay *kafkaadapter.Relay
	if cfg.KafkaEnabled() {
		relay = kafkaadapter.NewRelay(cfg.KafkaBrokers, cfg.KafkaHazardTopic, bus, metrics, logger)
		defer func() {
			if err := relay.Close(); err != nil {
				logger.Error("kafka relay close error", "error", err)
			}
		}()
		logger.Info("kafka relay enabled", "topic", cfg.KafkaHazardTopic)
	}

	var scanner *pipeline.Scanner
	if cfg.ScanEnabled {
		scanner = pipeline.NewScanner(feed, bus, store, pipeline.ScannerConfig{
			Schedule: pipeline.Schedule{
				Hour:     cfg.ScanHour,
				Minute:   cfg.ScanMinute,
				Location: cfg.ScanLocation,
			},
			AlertThreshold: cfg.AlertThreshold,
			RunOnStart:     cfg.ScanOnStart,
		}, clock, metrics, logger)
	} else {
		logger.Info("hazard scan disabled")
	}

	wsHandler := ws.NewHandler(bus, chatService, cfg.CORSOrigins, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Lister:      lister,
		Alerts:      store,
		Messages:    chatService,
		WebSocket:   wsHandler,
		Ready:       store,
		CORSOrigins: cfg.CORSOrigins,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		wsHandler.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	if scanner != nil {
		g.Go(func() error { return scanner.Run(gctx) })
	}
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}

	return g.Wait()
}
