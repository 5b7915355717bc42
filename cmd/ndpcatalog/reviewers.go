package main

import (
	"fmt"

	"github.com/smallbiznis/ndpcatalog/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newReviewersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reviewers",
		Short: "Print the effective reviewer roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			roster, err := config.NewReviewerRoster(config.Load(), zap.NewNop())
			if err != nil {
				return err
			}
			for _, name := range roster.Get() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
