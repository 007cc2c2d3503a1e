package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pattabhia/rlvr-pdf-chat/internal/bootstrap"
	"github.com/pattabhia/rlvr-pdf-chat/internal/config"
	"github.com/pattabhia/rlvr-pdf-chat/internal/httpapi"
	"github.com/pattabhia/rlvr-pdf-chat/internal/pkg/logger"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline's consumers and ask_multi HTTP endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		c, err := bootstrap.NewContainer(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := c.Pipeline.Start(ctx); err != nil {
			return err
		}

		api := httpapi.New(c.Orchestrator, c.Registry, c.Logger)
		go func() {
			if err := api.Start(ctx, cfg.App.MetricsAddr); err != nil {
				c.Logger.Error("cli", "http server exited", logger.Fields{Details: map[string]interface{}{"error": err.Error()}})
			}
		}()

		color.Green("pipeline serving on %s (bus=%s)", cfg.App.MetricsAddr, cfg.App.BusBackend)
		c.Logger.Info("cli", "pipeline started, awaiting signal", logger.Fields{})
		<-ctx.Done()
		c.Logger.Info("cli", "shutting down", logger.Fields{})

		_ = os.Stdout.Sync()
		return c.Logger.Sync()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
