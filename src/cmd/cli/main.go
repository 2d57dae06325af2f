// Package main provides the orderflow operator CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"orderflow/src/config"
	"orderflow/src/logger"
)

var (
	// Application configuration, environment first, then flags
	appConfig *config.Config
	// Logger for commands that do not own the terminal
	appLogger *logger.ZapLogger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "orderflow",
	Short: "orderflow - publish and inspect order events on Kafka",
	Long: `orderflow is the operator tool for the order event pipeline.

The order service publishes every accepted order to the orders topic keyed
by order id; the analytics service consumes the topic as a consumer group
and logs every record. This CLI provisions the topic, submits and tails
orders, serves an MCP tool, and runs the whole pipeline in-process.

Configuration comes from the environment (.env is loaded when present);
flags override it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFromEnv()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		if err := applyFlags(cmd, cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		appConfig = cfg

		appLogger, err = logger.New(cfg.LogFormat, cfg.LogLevel)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appLogger != nil {
			appLogger.Sync()
		}
	},
}

// applyFlags copies explicitly set persistent flags over cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("brokers") {
		brokers, err := flags.GetStringSlice("brokers")
		if err != nil {
			return err
		}
		cfg.Brokers = brokers
	}
	if flags.Changed("topic") {
		cfg.Topic, _ = flags.GetString("topic")
	}
	if flags.Changed("group") {
		cfg.Group, _ = flags.GetString("group")
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringSlice("brokers", nil, "Kafka bootstrap brokers (overrides KAFKA_BROKERS)")
	rootCmd.PersistentFlags().String("topic", "", "Orders topic (overrides ORDERS_TOPIC)")
	rootCmd.PersistentFlags().String("group", "", "Consumer group (overrides CONSUMER_GROUP)")

	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(localCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
