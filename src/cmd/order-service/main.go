// Package main provides the standalone order service binary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"orderflow/src/broker"
	"orderflow/src/config"
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

	log.Info("Starting order service")
	log.Info("Kafka brokers: %v, topic: %s", cfg.Brokers, cfg.Topic)

	brk, err := broker.NewKafkaBroker(*cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create broker: %v\n", err)
		os.Exit(1)
	}
	// Close flushes records still in flight
	defer brk.Close()

	svc := pipeline.NewOrderService(brk, *cfg, log, metrics.New())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutdown signal received, stopping order service...")
		cancel()
	}()

	if err := svc.Run(ctx); err != nil && err != context.Canceled {
		log.Error("Order service error: %v", err)
		brk.Close()
		os.Exit(1)
	}

	log.Info("Order service stopped")
}
