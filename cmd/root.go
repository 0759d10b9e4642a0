package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/tikzstudio/internal/config"
)

var (
	cfgFile string
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tikzstudio",
	Short: "AI-assisted TikZ figure studio",
	Long: `tikzstudio turns natural-language descriptions, sketches and existing
TikZ code into LaTeX figures with a live SVG preview. It runs as a web
studio, as a command-line generator, and as an MCP server for AI agents.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(envFile)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigFile, "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file holding API keys")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

