package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bryanwax12/newbotcursor/core/logger"
	"github.com/bryanwax12/newbotcursor/internal/app"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := opts.storageConfig()
				if err != nil {
					return err
				}
				if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
					return err
				}
				defer shutdownLogger()
				if err := app.MigrateUp(cfg); err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return err
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := opts.storageConfig()
				if err != nil {
					return err
				}
				v, dirty, err := app.MigrationVersion(cfg)
				if err != nil {
					return err
				}
				out := fmt.Sprintf("version %d", v)
				if dirty {
					out += " (dirty)"
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
				return err
			},
		},
	)
	return cmd
}
