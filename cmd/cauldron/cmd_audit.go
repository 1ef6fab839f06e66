package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ochairo/cauldron/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/cauldron/internal/domain-orchestrators"
	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/services"
)

func newAuditCmd() *cobra.Command {
	var blockSeverity string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check resolved dependencies against the OSV vulnerability database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				result, err := a.orchestrator(nil).Build(ctx, orchestrators.BuildOptions{
					Dir:       a.dir,
					Through:   entities.StageResolve,
					SkipAudit: true,
				})
				if err != nil {
					return err
				}
				if blockSeverity == "" {
					blockSeverity = result.Project.Audit.BlockSeverity
				}

				security := a.securityOrchestrator()
				audit, err := security.AuditResolution(ctx, result.Resolution, blockSeverity)
				if audit == nil {
					return err
				}
				if err != nil {
					printWarning(a.out, "some dependencies could not be checked: %v", err)
				}

				if len(audit.SecurityReport.Vulnerabilities) > 0 {
					printVulnerabilities(a.out, audit.SecurityReport.Vulnerabilities)
					fmt.Fprintln(a.out)
				}
				fmt.Fprintln(a.out, security.GetSecuritySummary(audit))
				if audit.Blocked {
					a.metricsRecorder().IncBuildOutcome(interfaces.OutcomeBlocked)
					return errors.New(audit.BlockReason)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&blockSeverity, "block-severity", "", "fail at this severity or above (default audit.block_severity)")
	return cmd
}

func newOutdatedCmd() *cobra.Command {
	var (
		includeUnstable bool
		exclude         string
	)
	cmd := &cobra.Command{
		Use:   "outdated",
		Short: "List declared dependencies with newer releases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				project, err := a.loadProject(ctx)
				if err != nil {
					return err
				}
				fetcher, err := gateways.NewVersionFetcher(a.repository(project), exclude, a.logger)
				if err != nil {
					return err
				}

				security := orchestrators.NewSecurityOrchestrator(services.NewSecurityService(a.security), fetcher, a.logger)
				updates, err := security.CheckOutdated(ctx, project, includeUnstable)
				if updates == nil && err != nil {
					return err
				}
				if err != nil {
					printWarning(a.out, "some lookups failed: %v", err)
				}

				if len(updates) == 0 {
					printSuccess(a.out, "all %d dependencies are up to date", len(project.Dependencies))
					return nil
				}
				table := newTable(a.out, "DEPENDENCY", "SCOPE", "CURRENT", "LATEST", "UPDATE")
				for _, u := range updates {
					kind := u.Kind
					if kind == gateways.UpdateMajor {
						kind = red(kind)
					}
					table.Append([]string{u.Module, string(u.Scope), u.Current, green(u.Latest), kind})
				}
				table.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&includeUnstable, "unstable", false, "consider alpha, beta, RC and milestone releases")
	cmd.Flags().StringVar(&exclude, "exclude", "", "regular expression of versions to ignore")
	return cmd
}
