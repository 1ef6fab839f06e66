package gateways

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
)

// ConsoleLauncherClass is the entry point of junit-platform-console-standalone
const ConsoleLauncherClass = "org.junit.platform.console.ConsoleLauncher"

// Console launcher exit codes
const (
	launcherExitFailed  = 1
	launcherExitNoTests = 2
)

var testSummaryPattern = regexp.MustCompile(`\[\s*(\d+) tests (successful|failed|skipped|found|aborted)`)

// JUnitRunner runs tests through the JUnit Platform console launcher
type JUnitRunner struct {
	executor *ToolExecutor
	echo     io.Writer
	logger   interfaces.Logger
}

var _ gateways.TestRunner = (*JUnitRunner)(nil)

// NewJUnitRunner creates a test runner. Launcher output is mirrored to echo when it is not nil.
func NewJUnitRunner(executor *ToolExecutor, echo io.Writer, logger interfaces.Logger) *JUnitRunner {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	if executor == nil {
		executor = NewToolExecutor(logger)
	}
	return &JUnitRunner{executor: executor, echo: echo, logger: logger}
}

// Run scans req.ClassesDir for tests. The classpath must contain the console launcher.
func (r *JUnitRunner) Run(ctx context.Context, req gateways.TestRequest) (*entities.TestReport, error) {
	tool, err := LocateJavaTool(req.JavaHome, "java")
	if err != nil {
		return nil, err
	}

	if req.ReportsDir != "" {
		if err := os.MkdirAll(req.ReportsDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", req.ReportsDir, err)
		}
	}

	argFile, err := os.CreateTemp("", "cauldron-java-*.args")
	if err != nil {
		return nil, fmt.Errorf("failed to create argument file: %w", err)
	}
	argPath := argFile.Name()
	//nolint:errcheck,gosec // G104: closed before java reads it
	argFile.Close()
	defer func() {
		//nolint:errcheck,gosec // G104: Best effort cleanup
		os.Remove(argPath)
	}()
	if err := WriteArgFile(argPath, LauncherArgs(req)); err != nil {
		return nil, fmt.Errorf("failed to write argument file: %w", err)
	}

	result := r.executor.Execute(ctx, ExecuteToolConfig{
		Tool:        tool,
		Args:        []string{"@" + argPath},
		Timeout:     req.Timeout,
		Description: "tests",
		Echo:        r.echo,
	})

	report := ParseTestSummary(result.Stdout)
	report.ReportsDir = req.ReportsDir
	report.Duration = result.Duration
	report.Output = result.Output()

	r.logger.Info("tests finished",
		interfaces.F("found", report.Found),
		interfaces.F("succeeded", report.Succeeded),
		interfaces.F("failed", report.Failed),
		interfaces.F("skipped", report.Skipped),
		interfaces.F(interfaces.FieldDuration, report.Duration.Round(time.Millisecond)))

	switch {
	case result.Success:
		return report, nil
	case ctx.Err() != nil:
		return report, ctx.Err()
	case result.ExitCode == launcherExitFailed:
		return report, fmt.Errorf("%w: %d of %d tests failed", entities.ErrTestsFailed, report.Failed+report.Aborted, report.Found)
	case result.ExitCode == launcherExitNoTests:
		return report, fmt.Errorf("%w: no tests found in %s", entities.ErrTestsFailed, req.ClassesDir)
	default:
		return report, fmt.Errorf("test launcher failed (exit %d): %w\n%s", result.ExitCode, result.Error, result.Stderr)
	}
}

// LauncherArgs returns the java arguments for one console launcher run
func LauncherArgs(req gateways.TestRequest) []string {
	args := append([]string{}, req.JVMArgs...)
	args = append(args,
		"-classpath", req.Classpath.String(),
		ConsoleLauncherClass,
		"--disable-banner",
		"--disable-ansi-colors",
		"--details=summary",
		"--scan-class-path="+req.ClassesDir,
	)
	if req.ReportsDir != "" {
		args = append(args, "--reports-dir="+req.ReportsDir)
	}
	for _, tag := range req.IncludeTags {
		args = append(args, "--include-tag="+tag)
	}
	for _, tag := range req.ExcludeTags {
		args = append(args, "--exclude-tag="+tag)
	}
	if req.FailIfNoTests {
		args = append(args, "--fail-if-no-tests")
	}
	return args
}

// ParseTestSummary reads the test counters from the launcher's summary table
func ParseTestSummary(output string) *entities.TestReport {
	report := &entities.TestReport{}
	for _, m := range testSummaryPattern.FindAllStringSubmatch(output, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		switch m[2] {
		case "found":
			report.Found = n
		case "successful":
			report.Succeeded = n
		case "failed":
			report.Failed = n
		case "skipped":
			report.Skipped = n
		case "aborted":
			report.Aborted = n
		}
	}
	return report
}
