package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/handoff/core/config"
	"github.com/dmitrymomot/handoff/core/logger"
	"github.com/dmitrymomot/handoff/integration/database/pg"
	"github.com/dmitrymomot/handoff/internal/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, log, err := loadAppConfig()
			if err != nil {
				return err
			}

			var pgCfg pg.Config
			if err := config.Load(&pgCfg); err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := pg.Connect(ctx, pgCfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pg.Migrate(ctx, pool, pgCfg, log, db.Migrations); err != nil {
				return err
			}
			log.InfoContext(ctx, "migrations applied", logger.Component("migrate"))
			return nil
		},
	}
}
