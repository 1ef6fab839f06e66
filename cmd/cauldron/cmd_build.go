package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	orchestrators "github.com/ochairo/cauldron/internal/domain-orchestrators"
	"github.com/ochairo/cauldron/internal/domain/entities"
)

type pipelineFlags struct {
	skipTests bool
	skipDocs  bool
	skipAudit bool
	locked    bool
	writeLock bool
	quiet     bool
}

func (f *pipelineFlags) register(cmd *cobra.Command, withTests bool) {
	if withTests {
		cmd.Flags().BoolVar(&f.skipTests, "skip-tests", false, "do not compile or run tests")
	}
	cmd.Flags().BoolVar(&f.locked, "locked", false, "fail when the resolution differs from cauldron.lock")
	cmd.Flags().BoolVar(&f.writeLock, "write-lock", false, "update cauldron.lock after resolving")
	cmd.Flags().BoolVar(&f.skipAudit, "skip-audit", false, "skip the dependency vulnerability gate")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "do not echo test output")
}

func (f *pipelineFlags) options(dir string, through entities.Stage) orchestrators.BuildOptions {
	return orchestrators.BuildOptions{
		Dir:       dir,
		Through:   through,
		SkipTests: f.skipTests,
		SkipDocs:  f.skipDocs,
		Locked:    f.locked,
		WriteLock: f.writeLock,
		SkipAudit: f.skipAudit,
	}
}

// runPipeline builds through the given stage and prints the stage report
func runPipeline(cmd *cobra.Command, flags *pipelineFlags, through entities.Stage) error {
	return runWithApp(cmd, func(ctx context.Context, a *app) error {
		return buildOnce(ctx, a, flags, through)
	})
}

func buildOnce(ctx context.Context, a *app, flags *pipelineFlags, through entities.Stage) error {
	var echo io.Writer
	if !flags.quiet {
		echo = a.out
	}
	result, err := a.orchestrator(echo).Build(ctx, flags.options(a.dir, through))
	printBuildResult(a.out, result)
	if err != nil {
		return err
	}
	if result.Audit != nil && len(result.Audit.HighSeverity) > 0 {
		printWarning(a.out, "%d high or critical vulnerabilities below the blocking threshold", len(result.Audit.HighSeverity))
	}
	printSuccess(a.out, "build finished in %s", formatDuration(result.TotalDuration))
	return nil
}

func newBuildCmd() *cobra.Command {
	flags := &pipelineFlags{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Resolve, compile, test and assemble the fat JAR, then write release files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, flags, entities.StageRelease)
		},
	}
	flags.register(cmd, true)
	cmd.Flags().BoolVar(&flags.skipDocs, "skip-docs", false, "do not generate javadoc")
	return cmd
}

func newCompileCmd() *cobra.Command {
	flags := &pipelineFlags{}
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Resolve dependencies and compile main sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, flags, entities.StageCompile)
		},
	}
	flags.register(cmd, false)
	return cmd
}

func newTestCmd() *cobra.Command {
	flags := &pipelineFlags{}
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Compile and run the test suite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, flags, entities.StageTest)
		},
	}
	flags.register(cmd, false)
	return cmd
}

func newAssembleCmd() *cobra.Command {
	flags := &pipelineFlags{skipTests: true}
	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Compile and assemble the fat JAR without running tests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, flags, entities.StageAssemble)
		},
	}
	flags.register(cmd, false)
	return cmd
}
