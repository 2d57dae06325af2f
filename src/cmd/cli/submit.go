package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"orderflow/src/broker"
	"orderflow/src/contracts"
	"orderflow/src/logger"
	"orderflow/src/publisher"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Publish one order and wait for the broker to acknowledge it",
	Long: `Publishes an order event exactly as the order service would and
waits for the acknowledgement, printing the partition and offset.

Example:
  orderflow submit --order-id o-1001 --symbol AAPL --side BUY --qty 10 --price 188.25`,
	RunE: func(cmd *cobra.Command, args []string) error {
		event, err := orderFromFlags(cmd.Flags())
		if err != nil {
			return err
		}

		brk, err := broker.NewKafkaBroker(*appConfig, appLogger)
		if err != nil {
			return fmt.Errorf("failed to create broker: %w", err)
		}
		defer brk.Close()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		d, err := submitOrder(context.Background(), brk, appConfig.Topic, event, timeout, appLogger)
		if err != nil {
			return err
		}
		fmt.Printf("Published order %s to %s partition %d offset %d\n", event.OrderID, d.Topic, d.Partition, d.Offset)
		return nil
	},
}

// orderFromFlags builds the order from the submit flags.
func orderFromFlags(flags *pflag.FlagSet) (contracts.OrderEvent, error) {
	var event contracts.OrderEvent
	var err error

	if event.OrderID, err = flags.GetString("order-id"); err != nil {
		return event, err
	}
	if event.OrderID == "" {
		return event, fmt.Errorf("--order-id is required")
	}
	if event.Symbol, err = flags.GetString("symbol"); err != nil {
		return event, err
	}
	if event.Side, err = flags.GetString("side"); err != nil {
		return event, err
	}
	if event.Qty, err = flags.GetInt("qty"); err != nil {
		return event, err
	}
	if event.Price, err = flags.GetFloat64("price"); err != nil {
		return event, err
	}
	return event, nil
}

// submitOrder publishes event and waits up to timeout for its delivery.
func submitOrder(ctx context.Context, brk broker.Broker, topic string, event contracts.OrderEvent, timeout time.Duration, log logger.Logger) (broker.Delivery, error) {
	pub := publisher.New(brk, topic, log, nil)
	ack, err := pub.Send(ctx, event)
	if err != nil {
		return broker.Delivery{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	d, err := ack.Wait(ctx)
	if err != nil {
		return broker.Delivery{}, fmt.Errorf("order %s not acknowledged: %w", event.OrderID, err)
	}
	return d, nil
}

func init() {
	submitCmd.Flags().String("order-id", "", "Order identifier, used as the partition key")
	submitCmd.Flags().String("symbol", "", "Instrument symbol")
	submitCmd.Flags().String("side", contracts.SideBuy, "BUY or SELL")
	submitCmd.Flags().Int("qty", 0, "Quantity")
	submitCmd.Flags().Float64("price", 0, "Limit price")
	submitCmd.Flags().Duration("timeout", 15*time.Second, "How long to wait for the acknowledgement")
}
