package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "boardsync",
		Short:         "Realtime board synchronisation server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(migrateCmd())
	return cmd
}
