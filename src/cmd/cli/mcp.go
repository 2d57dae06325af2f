package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"orderflow/src/broker"
	"orderflow/src/logger"
	"orderflow/src/mcp"
	"orderflow/src/publisher"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the submit_order MCP tool over stdio",
	Long: `Runs a Model Context Protocol server on stdin/stdout exposing the
submit_order and get_delivery tools. Orders are published exactly as
the order service publishes them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol, keep logs off it
		log := logger.NewSilentLogger()

		brk, err := broker.NewKafkaBroker(*appConfig, log)
		if err != nil {
			return fmt.Errorf("failed to create broker: %w", err)
		}
		defer brk.Close()

		pub := publisher.New(brk, appConfig.Topic, log, nil)
		return mcp.NewServer(pub, log).Run()
	},
}
