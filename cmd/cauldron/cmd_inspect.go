package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ochairo/cauldron/internal/domain-adapters/gateways"
	"github.com/ochairo/cauldron/internal/domain/services"
)

func newInspectCmd() *cobra.Command {
	var showEmbedded bool
	cmd := &cobra.Command{
		Use:   "inspect [jar]",
		Short: "Show the manifest, entry point and layout of an archive",
		Long: `Inspect reads an archive and reports its Main-Class, whether that class
is present, the number of entries and any duplicate entry names.
Without an argument the project's fat JAR is inspected.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				path := ""
				if len(args) == 1 {
					path = args[0]
				} else {
					project, err := a.loadProject(ctx)
					if err != nil {
						return err
					}
					path = project.ArchivePath()
				}

				inspector := gateways.NewJarInspector(services.NewManifestService(a.logger), a.logger)
				inspection, err := inspector.Inspect(ctx, path)
				if err != nil {
					return err
				}

				fmt.Fprintf(a.out, "Archive:     %s (%s)\n", inspection.Path, humanize.Bytes(uint64(inspection.Size)))
				fmt.Fprintf(a.out, "Entries:     %s (%s classes)\n", humanize.Comma(int64(inspection.Entries)), humanize.Comma(int64(inspection.Classes)))
				mainClass := inspection.MainClass
				if mainClass == "" {
					mainClass = "(none)"
				}
				fmt.Fprintf(a.out, "Main-Class:  %s\n", mainClass)
				if inspection.Executable {
					fmt.Fprintf(a.out, "Executable:  %s\n", green("yes"))
				} else {
					fmt.Fprintf(a.out, "Executable:  %s\n", red("no"))
				}
				if len(inspection.DuplicateNames) > 0 {
					printWarning(a.out, "duplicate entries: %s", strings.Join(inspection.DuplicateNames, ", "))
				}

				fmt.Fprintf(a.out, "Embedded:    %d libraries\n", len(inspection.Embedded))
				if showEmbedded && len(inspection.Embedded) > 0 {
					table := newTable(a.out, "GROUP", "ARTIFACT", "VERSION")
					for _, p := range inspection.Embedded {
						table.Append([]string{p.GroupID, p.ArtifactID, p.Version})
					}
					table.Render()
				}

				if !inspection.Executable {
					return fmt.Errorf("%s has no runnable entry point", path)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showEmbedded, "embedded", false, "list the libraries embedded in the archive")
	return cmd
}
