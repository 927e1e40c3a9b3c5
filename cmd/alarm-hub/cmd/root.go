package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dispatchworks/alarmhub/internal/config"
	"github.com/dispatchworks/alarmhub/internal/engine"
	"github.com/dispatchworks/alarmhub/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// metricsAddress optionally overrides the configured metrics listener.
	metricsAddress string

	// rootCmd represents the base command running the ingestion pipeline.
	rootCmd = &cobra.Command{
		Use:   "alarm-hub",
		Short: "Run the alarm ingestion and distribution pipeline.",
		Long: `Starts the alarm hub: enabled alarm sources feed dispatch operations into
the ingestion engine, which deduplicates them by operation number, runs the
enrichment jobs, persists the operation and fans it out through the
distribution jobs using the address book.

Sources, jobs and the address book filter chain are selected in the
configuration file; the address book is reloaded automatically when its
file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Cobra already printed usage for flag errors; runtime errors
			// should not repeat it.
			cmd.SilenceUsage = true

			options := &engine.Options{
				ConfigPath:     configPath,
				MetricsAddress: metricsAddress,
			}

			return engine.Run(ctx, options)
		},
	}
)

// Execute runs the alarm-hub CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&metricsAddress, "metrics-addr", "m", "", "listen address for the Prometheus endpoint")
}
