package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quantcoord/config"
	"quantcoord/internal/coordinator"
	"quantcoord/logger"
	"quantcoord/pkg/storage/postgres"
	"quantcoord/pkg/venue"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg := config.Load()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	// Postgres for finalized-candle persistence
	db, err := postgres.InitializeAndMigrate(cfg.Postgres, cfg.Log.Environment, true)
	if err != nil {
		log.Fatal("failed to connect to DB", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	persister := postgres.NewCandlePersister(db, 1024, log)
	go persister.Run(ctx)

	// Venue adapter over the REST API
	adapter := venue.NewRESTClient(cfg.Feed.RESTBaseURL, cfg.Feed.Timeout)

	coord, err := coordinator.New(cfg, log, adapter,
		coordinator.WithCandleSink(persister.Enqueue),
	)
	if err != nil {
		log.Fatal("failed to build coordinator", zap.Error(err))
	}
	defer coord.Close()

	// Backfill recent history before going live
	end := time.Now()
	go coord.Backfill(ctx, db, end.Add(-4*time.Hour), end)

	// Live tick feed
	topics := make([]string, 0, len(cfg.Venue.Symbols))
	for _, symbol := range cfg.Venue.Symbols {
		topics = append(topics, fmt.Sprintf("tick.%s.%s", cfg.Venue.Exchange, symbol))
	}
	feed := venue.NewFeedClient(cfg.Feed.WSURL, topics, log)
	feed.SetMessageHandler(coordinator.MakeTickHandler(log, coord))
	if err := feed.Connect(); err != nil {
		log.Fatal("failed to connect feed", zap.Error(err))
	}
	go feed.Listen()

	// Modification poller
	go coord.Run(ctx)

	log.Info("coordinator started",
		zap.String("exchange", cfg.Venue.Exchange),
		zap.Strings("intervals", cfg.Venue.Intervals),
		zap.Int("symbols", len(cfg.Venue.Symbols)))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received shutdown signal", zap.String("signal", sig.String()))

	coord.Close()
	cancel()
}
