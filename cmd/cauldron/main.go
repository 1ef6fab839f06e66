// Package main provides the cauldron CLI for building executable fat JARs from Java projects.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev" // set by the linker

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		printFailure(cmd.ErrOrStderr(), "%v", err)
		stop()
		os.Exit(1)
	}
}

// newRootCmd creates the command tree. Tests build a fresh tree per case.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cauldron",
		Short: "Build executable fat JARs from Java projects",
		Long: `cauldron resolves Maven dependencies, compiles and tests a Java project,
and assembles the compiled classes and every runtime dependency into one
executable archive. The build is described by cauldron.yml in the project
directory.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringP("dir", "C", ".", "project directory")
	flags.String("config", "", "tool config file (default .cauldron.yaml in the project or user config dir)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("metrics-file", "", "write Prometheus metrics to this textfile")
	flags.String("cache-dir", "", "local repository cache")
	flags.String("java-home", "", "JDK used for javac, java and javadoc")
	flags.Bool("offline", false, "use only the local repository cache")
	flags.Int("parallelism", 0, "concurrent dependency downloads")
	flags.Bool("no-color", false, "disable coloured output")

	cmd.AddCommand(
		newBuildCmd(),
		newResolveCmd(),
		newDepsCmd(),
		newCompileCmd(),
		newTestCmd(),
		newAssembleCmd(),
		newDocsCmd(),
		newInspectCmd(),
		newVerifyCmd(),
		newSignCmd(),
		newAuditCmd(),
		newOutdatedCmd(),
		newWatchCmd(),
		newInitCmd(),
		newCleanCmd(),
	)
	return cmd
}
