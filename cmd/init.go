package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/diagrag/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize diagrag configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose models, embeddings and data locations and writes a .diagrag.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
