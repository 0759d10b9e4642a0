package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/tikzstudio/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize tikzstudio configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose a provider and model and writes a .tikzstudio.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
