package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pattabhia/rlvr-pdf-chat/internal/bootstrap"
	"github.com/pattabhia/rlvr-pdf-chat/internal/config"

	"github.com/spf13/cobra"
)

var askN int

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Issue a single ask_multi call in-process and print the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		c, err := bootstrap.NewContainer(cfg)
		if err != nil {
			return err
		}
		if err := c.Pipeline.Start(context.Background()); err != nil {
			return err
		}

		resp, err := c.Orchestrator.AskMulti(context.Background(), args[0], askN)
		if err != nil {
			return fmt.Errorf("ask_multi: %w", err)
		}

		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	askCmd.Flags().IntVarP(&askN, "num-candidates", "n", 3, "number of candidates to sample")
	rootCmd.AddCommand(askCmd)
}
