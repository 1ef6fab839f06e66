package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	orchestrators "github.com/ochairo/cauldron/internal/domain-orchestrators"
	"github.com/ochairo/cauldron/internal/domain/entities"
)

func newResolveCmd() *cobra.Command {
	var locked bool
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve dependencies and write cauldron.lock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				result, err := a.orchestrator(nil).Build(ctx, orchestrators.BuildOptions{
					Dir:       a.dir,
					Through:   entities.StageResolve,
					Locked:    locked,
					WriteLock: !locked,
					SkipAudit: true,
				})
				printBuildResult(a.out, result)
				if err != nil {
					return err
				}
				if !locked {
					printSuccess(a.out, "wrote %s", entities.LockfileName)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&locked, "check", false, "verify cauldron.lock instead of rewriting it")
	return cmd
}

func newDepsCmd() *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Show the resolved dependency tree per scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter entities.Scope
			if scope != "" {
				parsed, err := entities.ParseScope(scope)
				if err != nil {
					return err
				}
				filter = parsed
			}
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				result, err := a.orchestrator(nil).Build(ctx, orchestrators.BuildOptions{
					Dir:       a.dir,
					Through:   entities.StageResolve,
					SkipAudit: true,
				})
				if err != nil {
					return err
				}
				resolution := result.Resolution
				if filter != "" {
					filtered := &entities.Resolution{Strategy: resolution.Strategy}
					for _, dep := range resolution.Dependencies {
						if dep.Scope == filter {
							filtered.Dependencies = append(filtered.Dependencies, dep)
						}
					}
					resolution = filtered
				}
				printDependencyTable(a.out, resolution)
				fmt.Fprintf(a.out, "\n%d dependencies, strategy %s\n", len(resolution.Dependencies), resolution.Strategy)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "only show one scope: compile, runtime or test")
	return cmd
}
