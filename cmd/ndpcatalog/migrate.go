package main

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/smallbiznis/ndpcatalog/internal/config"
	"github.com/smallbiznis/ndpcatalog/internal/migration"
	"github.com/smallbiznis/ndpcatalog/pkg/db"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			dbCfg := db.FromAppConfig(cfg)

			if dbCfg.Type == db.TypePostgres {
				sqlDB, err := sql.Open("postgres", dbCfg.PostgresDSN())
				if err != nil {
					return fmt.Errorf("open postgres: %w", err)
				}
				defer sqlDB.Close()
				if err := sqlDB.PingContext(cmd.Context()); err != nil {
					return fmt.Errorf("ping postgres: %w", err)
				}
				if err := migration.RunMigrations(sqlDB); err != nil {
					return err
				}
			} else {
				conn, err := db.Open(dbCfg, cfg.AppName)
				if err != nil {
					return err
				}
				if err := migration.AutoMigrate(conn); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", dbCfg.Type)
			return nil
		},
	}
}
