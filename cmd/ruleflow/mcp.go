package main

import (
	"fmt"

	mcpAdapter "github.com/aretw0/ruleflow/pkg/adapters/mcp"
	"github.com/aretw0/ruleflow/pkg/adapters/memory"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts ruleflow as an MCP Server.
This allows AI agents to list and execute the rules in --dir as tools, and to read
their graphs as resources.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Logs go to stderr so they never corrupt JSON-RPC on stdout.
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		cat, err := newCatalog(cmd, logger)
		if err != nil {
			return err
		}

		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")
		baseURL, _ := cmd.Flags().GetString("base-url")
		watch, _ := cmd.Flags().GetBool("watch")

		srv := mcpAdapter.NewServer(cat, version(),
			mcpAdapter.WithLogger(logger.With("component", "mcp")),
			mcpAdapter.WithStore(memory.NewStore()),
		)

		ctx := cmd.Context()
		if watch {
			reloads, err := cat.Watch(ctx)
			if err != nil {
				return err
			}
			go func() {
				for range reloads {
					srv.Refresh()
					logger.Info("Rules reloaded", "rules", cat.IDs())
				}
			}()
		}

		switch transport {
		case "stdio":
			logger.Info("Starting ruleflow MCP Server (Stdio)", "rules", len(cat.IDs()))
			return srv.ServeStdio()
		case "sse":
			if baseURL == "" {
				baseURL = "http://localhost" + addr
			}
			err := srv.ServeSSE(ctx, addr, baseURL)
			if err == nil {
				logger.Info("MCP Server stopped gracefully")
			}
			return err
		}
		return fmt.Errorf("unknown transport %q (supported: stdio, sse)", transport)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", ":8081", "Address to listen on (only for SSE)")
	mcpCmd.Flags().String("base-url", "", "Public URL announced to SSE clients (default http://localhost<addr>)")
	mcpCmd.Flags().Bool("watch", false, "Reload the rules when files in --dir change")
}
