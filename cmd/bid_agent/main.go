// Package main provides the entry point for the bid pilot CLI and server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bid_agent",
	Short: "Freelance marketplace bid pilot",
	Long:  "Bid pilot fetches open postings, scores their fit, generates validated proposals, and places bids behind a safety gate.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
