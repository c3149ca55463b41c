package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/diagrag/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing diagnosis, disease search and graph lookup tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		rt, err := newRuntime(context.Background(), cfg)
		if err != nil {
			return err
		}
		defer rt.close()

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "diagrag MCP server started on stdio (diseases=%d)\n", rt.index.Count())

		srv := mcpserver.NewServer(rt.engine, rt.retriever, rt.graph)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
