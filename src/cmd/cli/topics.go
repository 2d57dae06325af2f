package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"orderflow/src/broker"
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Manage the orders topic",
}

var topicsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the orders topic if it does not exist",
	Long: `Creates the orders topic with the configured partition count and
replication factor. An existing topic is left untouched, so the command
is safe to run before every deployment.

Example:
  orderflow topics create --partitions 6 --replication 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		spec := broker.TopicSpec{
			Name:              appConfig.Topic,
			Partitions:        appConfig.Partitions,
			ReplicationFactor: appConfig.ReplicationFactor,
		}
		if cmd.Flags().Changed("partitions") {
			spec.Partitions, _ = cmd.Flags().GetInt("partitions")
		}
		if cmd.Flags().Changed("replication") {
			spec.ReplicationFactor, _ = cmd.Flags().GetInt("replication")
		}

		brk, err := broker.NewKafkaBroker(*appConfig, appLogger)
		if err != nil {
			return fmt.Errorf("failed to create broker: %w", err)
		}
		defer brk.Close()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := brk.EnsureTopic(ctx, spec); err != nil {
			return err
		}
		fmt.Printf("Topic %s ready (%d partitions, replication %d)\n",
			spec.Name, spec.Partitions, spec.ReplicationFactor)
		return nil
	},
}

func init() {
	topicsCmd.AddCommand(topicsCreateCmd)
	topicsCreateCmd.Flags().Int("partitions", 0, "Partition count (overrides TOPIC_PARTITIONS)")
	topicsCreateCmd.Flags().Int("replication", 0, "Replication factor (overrides TOPIC_REPLICATION)")
	topicsCreateCmd.Flags().Duration("timeout", 30*time.Second, "How long to wait for the brokers")
}
