package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanwax12/newbotcursor/core/logger"
	"github.com/bryanwax12/newbotcursor/internal/app"
)

const configEnvVar = "CONFIG_PATH"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "shipbot",
		Short:         "Telegram bot that collects shipping orders step by step",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to the YAML config (default $"+configEnvVar+")")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newPurgeCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// path resolves the config file: the flag, then CONFIG_PATH. Empty means
// environment only.
func (o *rootOptions) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	return os.Getenv(configEnvVar)
}

// storageConfig loads settings for commands that never talk to Telegram.
func (o *rootOptions) storageConfig() (*app.Config, error) {
	return app.LoadStorageConfig(o.path())
}

func shutdownLogger() { _ = logger.Shutdown() }
