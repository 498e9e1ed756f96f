package main

import (
	"context"

	"github.com/spf13/cobra"

	corecmd "github.com/bryanwax12/newbotcursor/core/cmd"
	"github.com/bryanwax12/newbotcursor/internal/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		RunE: func(_ *cobra.Command, _ []string) error {
			return corecmd.Run(corecmd.Options{
				ConfigPath:   opts.configPath,
				ConfigEnvVar: configEnvVar,
				LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
					return app.LoadConfig(path)
				},
				Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
					return app.Bootstrap(ctx, cfg.(*app.Config))
				},
			})
		},
	}
}
