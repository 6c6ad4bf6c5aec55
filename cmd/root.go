package cmd

import (
	"log/slog"
	"os"

	"github.com/dt-demo-gcp/authserver/config"
	"github.com/dt-demo-gcp/authserver/internal/observability"
	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "authserver",
	Short:        "DT demo authentication service",
	Version:      Version,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	return observability.NewLogger(cfg.LogLevel, os.Stdout)
}
