package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	cleargatemcp "github.com/bouksibkhalid-create/cleargate/internal/mcp"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed:
  screen_entity       — screen a name against sanctions and offshore-leaks data
  entity_connections  — traverse the offshore-leaks graph around a node

If a source is unavailable at startup the server still starts; individual
tool calls report per-source failures inside the result.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()

			agg, driver, err := newAggregator(logger)
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}
			defer closeDriver(context.Background(), driver, logger)

			srv := cleargatemcp.NewServer(agg, newGraphService(driver, logger), logger)

			// Use a standard log.Logger pointing at stderr for the mcp-go error logger.
			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: cleargate MCP server starting", "transport", "stdio")

			return mcpserver.ServeStdio(
				srv.MCPServer(),
				mcpserver.WithErrorLogger(errLogger),
			)
		},
	}

	return cmd
}
