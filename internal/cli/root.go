// Package cli wires the pipeline binary's subcommands: serve runs the
// background consumers and an ask_multi HTTP endpoint, ask builds the
// pipeline in-process, issues a single ask_multi call and prints the result.
package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Retrieval-augmented preference data pipeline",
	Long:  "Generates multiple sampled answers per question, scores them with a judge, and emits SFT and DPO training records.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile == "" {
			return nil
		}
		return godotenv.Load(cfgFile)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to .env file (default: ./.env)")
}
