package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bryanwax12/newbotcursor/internal/app"
)

func newPurgeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete order sessions idle past the TTL and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.storageConfig()
			if err != nil {
				return err
			}
			st, err := app.OpenStorage(cmd.Context(), cfg, app.StorageHooks{})
			if err != nil {
				return err
			}
			defer shutdownLogger()
			defer st.Close()

			n, err := st.Sweeper.SweepOnce(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged %d sessions\n", n)
			return err
		},
	}
}
