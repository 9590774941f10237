package cli

import (
	"github.com/spf13/cobra"

	"github.com/sergeylevashov/schedy/internal/mcp"
)

func init() {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the interpretation tools over MCP on stdio",
		Long: "Run a Model Context Protocol server on stdin/stdout exposing the " +
			"schedy_interpret, schedy_create_event, and schedy_upcoming_events tools.",
		Run: runMCP,
	}

	RootCmd.AddCommand(cmd)
}

func runMCP(cmd *cobra.Command, args []string) {
	cfg := resolveConfig()
	pl, err := buildPipeline(cfg)
	if err != nil {
		exitErr("build pipeline", err)
	}

	srv := mcp.NewServer(mcp.ServerConfig{Pipeline: pl, Version: Version})
	if err := mcp.ServeStdio(srv); err != nil {
		exitErr("serve", err)
	}
}
