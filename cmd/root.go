// Package cmd defines the CLI: serve (HTTP API), mcp (stdio MCP server) and
// version.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "uplift",
	Short: "Uplift answers infrastructure upgrade questions",
	Long: `Uplift is a retrieval-augmented assistant for infrastructure upgrades:
version changes, breaking changes, migration steps and known issues.

Run "uplift serve" to start the HTTP API, or "uplift mcp" to expose the
knowledge base to MCP clients over stdio.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
