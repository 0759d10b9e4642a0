package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/tikzstudio/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing TikZ generation tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, store, err := openHistory(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		resolver := newResolver(cfg)
		warnMissingCredential(cfg, resolver)
		gw := newGateway(cfg, resolver, store)

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "tikzstudio MCP server started on stdio (provider=%s, model=%s)\n", cfg.Provider, gw.Model())

		srv := mcpserver.NewServer(gw)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
