// Package main provides the MCP server entry point for orderflow.
// It exposes order submission to MCP clients over stdio.
package main

import (
	"fmt"
	"os"

	"orderflow/src/broker"
	"orderflow/src/config"
	"orderflow/src/logger"
	"orderflow/src/mcp"
	"orderflow/src/publisher"
)

func main() {
	cfg := config.MustLoadFromEnv()

	// stdout carries the protocol
	log := logger.NewSilentLogger()

	brk, err := broker.NewKafkaBroker(*cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create broker: %v\n", err)
		os.Exit(1)
	}
	defer brk.Close()

	server := mcp.NewServer(publisher.New(brk, cfg.Topic, log, nil), log)

	// Run server over stdin/stdout (stdio transport)
	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		brk.Close()
		os.Exit(1)
	}
}
