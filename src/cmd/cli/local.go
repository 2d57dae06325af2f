package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"orderflow/src/metrics"
	"orderflow/src/pipeline"
)

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Run the order and analytics services in one process",
	Long: `Runs both services against an in-memory broker that keeps Kafka's
ordering, consumer group and idempotence properties. Nothing is
persisted; useful for trying the HTTP API without a cluster.

Example:
  orderflow local &
  curl -XPOST localhost:8080/orders \
    -d '{"order_id":"o-1001","symbol":"AAPL","side":"BUY","qty":10,"price":188.25}'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *appConfig
		if cmd.Flags().Changed("addr") {
			cfg.HTTPAddr, _ = cmd.Flags().GetString("addr")
		}

		lm, err := pipeline.NewLocal(cfg, appLogger, metrics.New())
		if err != nil {
			return err
		}
		defer lm.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		appLogger.Info("Local mode: %d partition(s), %d analytics loop(s)", cfg.Partitions, cfg.Concurrency)
		if err := lm.Orders.Run(ctx); err != nil && err != context.Canceled {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	},
}

func init() {
	localCmd.Flags().String("addr", "", "HTTP listen address (overrides HTTP_ADDR)")
}
