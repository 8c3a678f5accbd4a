package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/boardsync/internal/config"
	"github.com/gosuda/boardsync/internal/store/postgres"
)

func migrateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	c.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := postgres.MigrateUp(cfg.Database.URL()); err != nil {
				return err
			}
			log.Info().Msg("migrations applied")
			return nil
		},
	})

	c.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := postgres.MigrateDown(cfg.Database.URL()); err != nil {
				return err
			}
			log.Info().Msg("migrations rolled back")
			return nil
		},
	})

	return c
}
