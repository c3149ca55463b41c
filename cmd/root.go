package cmd

import (
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/diagrag/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "diagrag",
	Short: "Retrieval-augmented diagnostic assistant with expert review",
	Long: `diagrag retrieves candidate diseases for a symptom description from a
vector index and a disease knowledge graph, drafts a diagnosis with an LLM
and has a second expert model review it, retrying with the expert's
feedback until the draft is accepted.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Pipeline warnings go to stderr only with --verbose.
		if !verbose {
			log.SetOutput(io.Discard)
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.FileName, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
