package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the build directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				removed, err := a.orchestrator(nil).Clean(ctx, a.dir)
				if err != nil {
					return err
				}
				printSuccess(a.out, "removed %s", removed)
				return nil
			})
		},
	}
}
