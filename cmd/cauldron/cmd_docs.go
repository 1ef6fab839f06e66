package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newDocsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "Generate javadoc for the main sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				result, err := a.orchestrator(nil).GenerateDocs(ctx, a.dir)
				printBuildResult(a.out, result)
				return err
			})
		},
	}
}
