package main

import (
	"context"

	"github.com/spf13/cobra"

	"testwise/internal/logging"
	"testwise/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server over stdio for agent integration",
	Long: `Starts an MCP server over stdin/stdout exposing the analysis pipeline as
tools: analyze_log, summarize_run, root_cause, generate_report.

The server monitors for parent process death. When the client disconnects,
the server self-terminates to prevent zombie processes.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, _ []string) error {
	srv := mcpserver.NewServer(cfg, newCompleter())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mcpserver.WatchParent(ctx, cancel)

	logging.New("mcp").Info("starting testwise MCP server over stdio (parent watchdog active)")
	return srv.Run(ctx)
}
