package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ndpcatalog/internal/config"
	"github.com/smallbiznis/ndpcatalog/internal/migration"
	"github.com/smallbiznis/ndpcatalog/internal/observability"
	"github.com/smallbiznis/ndpcatalog/internal/server"
	"github.com/smallbiznis/ndpcatalog/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCmd() *cobra.Command {
	var nodeID int64
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				config.Module,
				observability.Module,
				fx.Provide(func() (*snowflake.Node, error) { return snowflake.NewNode(nodeID) }),
				db.Module,
				migration.Module,
				server.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
	cmd.Flags().Int64Var(&nodeID, "node-id", 1, "snowflake node id, unique per replica")
	return cmd
}
