package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"orderflow/src/broker"
	"orderflow/src/logger"
	"orderflow/src/subscriber"
	"orderflow/src/tui"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Watch orders arrive on the topic in a terminal view",
	Long: `Joins a private consumer group and shows the orders on the topic as
they arrive. The private group reads from the earliest offset and never
takes partitions away from the analytics service.

Example:
  orderflow tail`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *appConfig
		cfg.Group = tailGroup()

		// The view owns the terminal; broker logs would corrupt it
		brk, err := broker.NewKafkaBroker(cfg, logger.NewSilentLogger())
		if err != nil {
			return fmt.Errorf("failed to create broker: %w", err)
		}
		defer brk.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		rows := make(chan tui.OrderRow, 64)
		sub := subscriber.New(brk, cfg.Topic, cfg.Group, 1, tui.Feed(rows), logger.NewSilentLogger(), nil)
		go func() {
			defer close(rows)
			if err := sub.Run(ctx); err != nil && err != context.Canceled {
				fmt.Fprintf(os.Stderr, "[Tail] Subscriber error: %v\n", err)
			}
		}()

		return tui.Start(cfg.Topic, rows)
	},
}

// tailGroup returns a consumer group id unique to this tail session.
func tailGroup() string {
	return "orderflow-tail-" + uuid.NewString()[:8]
}
