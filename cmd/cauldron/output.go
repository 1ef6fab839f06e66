package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	orchestrators "github.com/ochairo/cauldron/internal/domain-orchestrators"
	"github.com/ochairo/cauldron/internal/domain/entities"
)

var (
	green  = color.New(color.FgGreen, color.Bold).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

func setColor(disabled bool) {
	if disabled {
		color.NoColor = true
	}
}

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", green("✓"), fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", yellow("!"), fmt.Sprintf(format, args...))
}

func printFailure(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", red("✗"), fmt.Sprintf(format, args...))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

// printBuildResult writes one line per completed stage followed by the produced files
func printBuildResult(w io.Writer, result *orchestrators.BuildResult) {
	if result == nil {
		return
	}
	if p := result.Project; p != nil {
		fmt.Fprintf(w, "%s %s\n", p.Name, faint(p.Version))
	}

	for _, stage := range []entities.Stage{
		entities.StageResolve, entities.StageCompile, entities.StageTest,
		entities.StageAssemble, entities.StageDocs, entities.StageRelease,
	} {
		d, ok := result.StageDurations[stage]
		if !ok {
			continue
		}
		var stageErr *entities.StageError
		if errors.As(result.Error, &stageErr) && stageErr.Stage == stage {
			printFailure(w, "%-9s %s", stage, faint(formatDuration(d)))
			continue
		}
		printSuccess(w, "%-9s %s %s", stage, faint(formatDuration(d)), stageDetail(result, stage))
	}

	if result.Assembly != nil && result.Assembly.Artifact != nil {
		a := result.Assembly.Artifact
		fmt.Fprintf(w, "\n  %s (%s)\n", a.Path, humanize.Bytes(uint64(a.Size)))
	}
	if result.Javadoc != nil {
		fmt.Fprintf(w, "  %s\n", result.Javadoc.Path)
	}
	if result.Release != nil {
		for _, p := range result.Release.Paths() {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	if result.SignaturePath != "" {
		fmt.Fprintf(w, "  %s\n", result.SignaturePath)
	}
	if v := result.Validation; v != nil && len(v.UnexpectedFiles) > 0 {
		printWarning(w, "stale archives in output directory: %s", strings.Join(v.UnexpectedFiles, ", "))
	}
	if result.LockDiff != nil && !result.LockDiff.Empty() {
		printLockDiff(w, result.LockDiff)
	}
}

func stageDetail(result *orchestrators.BuildResult, stage entities.Stage) string {
	switch stage {
	case entities.StageResolve:
		if result.Resolution != nil {
			return fmt.Sprintf("%d dependencies", len(result.Resolution.Dependencies))
		}
	case entities.StageCompile:
		if result.Compile != nil {
			return fmt.Sprintf("%d sources, %d resources", result.Compile.SourceFiles, result.Compile.Resources)
		}
	case entities.StageTest:
		if t := result.Tests; t != nil {
			return fmt.Sprintf("%d passed, %d skipped", t.Succeeded, t.Skipped)
		}
		return "no tests"
	case entities.StageAssemble:
		if a := result.Assembly; a != nil {
			return fmt.Sprintf("%s entries, %d duplicates skipped", humanize.Comma(int64(a.Entries)), len(a.Duplicates))
		}
	}
	return ""
}

func printLockDiff(w io.Writer, diff *entities.LockDiff) {
	for _, c := range diff.Added {
		fmt.Fprintf(w, "  %s %s\n", green("+"), c)
	}
	for _, c := range diff.Removed {
		fmt.Fprintf(w, "  %s %s\n", red("-"), c)
	}
	for _, c := range diff.Changed {
		fmt.Fprintf(w, "  %s %s\n", yellow("~"), c)
	}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetColumnSeparator("")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// printDependencyTable lists a resolution grouped by scope
func printDependencyTable(w io.Writer, resolution *entities.Resolution) {
	table := newTable(w, "SCOPE", "DEPENDENCY", "DEPTH", "VIA")
	for _, scope := range []entities.Scope{entities.ScopeCompile, entities.ScopeRuntime, entities.ScopeTest} {
		for _, dep := range resolution.Dependencies {
			if dep.Scope != scope {
				continue
			}
			via := "-"
			if !dep.Direct() {
				via = dep.Via[len(dep.Via)-1]
			}
			table.Append([]string{string(scope), dep.Coordinate.String(), fmt.Sprint(dep.Depth), via})
		}
	}
	table.Render()
}

func printVulnerabilities(w io.Writer, vulns []entities.Vulnerability) {
	sorted := make([]entities.Vulnerability, len(vulns))
	copy(sorted, vulns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	table := newTable(w, "SEVERITY", "ID", "COMPONENT", "FIXED IN")
	for _, v := range sorted {
		severity := v.Severity
		switch severity {
		case "CRITICAL", "HIGH":
			severity = red(severity)
		case "MEDIUM":
			severity = yellow(severity)
		}
		fixed := v.FixedIn
		if fixed == "" {
			fixed = "-"
		}
		table.Append([]string{severity, v.ID, v.Component, fixed})
	}
	table.Render()
}
