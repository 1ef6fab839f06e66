package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

func newInitCmd() *cobra.Command {
	var (
		name      string
		mainClass string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter cauldron.yml and main class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				path, err := a.projects.InitProject(ctx, a.dir, name, mainClass)
				if err != nil {
					return err
				}
				printSuccess(a.out, "created %s", path)
				printSuccess(a.out, "run %s to build %s", green("cauldron build"),
					filepath.Join(entities.DefaultBuildDir, "libs"))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name (default: directory name)")
	cmd.Flags().StringVar(&mainClass, "main-class", "app.Main", "fully qualified entry point")
	return cmd
}
