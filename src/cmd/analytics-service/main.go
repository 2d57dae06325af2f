// Package main provides the standalone analytics service binary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"orderflow/src/broker"
	"orderflow/src/config"
	"orderflow/src/ledger"
	"orderflow/src/logger"
	"orderflow/src/metrics"
	"orderflow/src/pipeline"
)

func main() {
	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting analytics service")
	log.Info("Kafka brokers: %v, topic: %s, group: %s, loops: %d",
		cfg.Brokers, cfg.Topic, cfg.Group, cfg.Concurrency)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, err := ledger.Open(ctx, *cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s ledger: %v\n", cfg.LedgerBackend, err)
		os.Exit(1)
	}
	defer l.Close()

	brk, err := broker.NewKafkaBroker(*cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create broker: %v\n", err)
		os.Exit(1)
	}
	defer brk.Close()

	svc := pipeline.NewAnalyticsService(brk, *cfg, l, log, metrics.New())

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutdown signal received, stopping analytics service...")
		cancel()
	}()

	log.Info("Analytics service started, waiting for orders...")
	if err := svc.Run(ctx); err != nil && err != context.Canceled {
		log.Error("Analytics service error: %v", err)
		os.Exit(1)
	}

	log.Info("Analytics service stopped")
}
