package gateways

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
)

const launcherSummary = `
Test run finished after 64 ms
[         3 containers found      ]
[         0 containers skipped    ]
[         3 containers started    ]
[         0 containers aborted    ]
[         3 containers successful ]
[         0 containers failed     ]
[         5 tests found           ]
[         1 tests skipped         ]
[         4 tests started         ]
[         0 tests aborted         ]
[         3 tests successful      ]
[         1 tests failed          ]
`

func TestParseTestSummary(t *testing.T) {
	report := ParseTestSummary(launcherSummary)

	want := entities.TestReport{Found: 5, Succeeded: 3, Failed: 1, Skipped: 1}
	if diff := cmp.Diff(want, *report); diff != "" {
		t.Errorf("ParseTestSummary() mismatch (-want +got):\n%s", diff)
	}
	if report.Passed() {
		t.Error("Passed() = true, want false with one failure")
	}

	if empty := ParseTestSummary("no summary"); empty.Found != 0 {
		t.Errorf("ParseTestSummary() Found = %d, want 0", empty.Found)
	}
}

func TestLauncherArgs(t *testing.T) {
	req := gateways.TestRequest{
		Classpath:     entities.Classpath{"classes", "junit.jar"},
		ClassesDir:    "build/test-classes",
		ReportsDir:    "build/test-results",
		JVMArgs:       []string{"-Xmx512m"},
		IncludeTags:   []string{"fast"},
		ExcludeTags:   []string{"slow"},
		FailIfNoTests: true,
	}

	want := []string{
		"-Xmx512m",
		"-classpath", "classes" + string(os.PathListSeparator) + "junit.jar",
		ConsoleLauncherClass,
		"--disable-banner",
		"--disable-ansi-colors",
		"--details=summary",
		"--scan-class-path=build/test-classes",
		"--reports-dir=build/test-results",
		"--include-tag=fast",
		"--exclude-tag=slow",
		"--fail-if-no-tests",
	}
	if diff := cmp.Diff(want, LauncherArgs(req)); diff != "" {
		t.Errorf("LauncherArgs() mismatch (-want +got):\n%s", diff)
	}
}

// fakeJavaHome installs a shell script named tool under <home>/bin
func fakeJavaHome(t *testing.T, tool, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell scripts")
	}
	home := t.TempDir()
	bin := filepath.Join(home, "bin")
	require.NoError(t, os.MkdirAll(bin, 0o750))
	script := "#!/bin/sh\n" + body + "\n"
	//nolint:gosec // G306: test executable
	require.NoError(t, os.WriteFile(filepath.Join(bin, tool), []byte(script), 0o755))
	return home
}

const fakeLauncher = `cp "${1#@}" "$CAULDRON_ARGS_OUT"
echo "[         2 tests found           ]"
echo "[         2 tests successful      ]"
echo "[         0 tests failed          ]"
exit "${CAULDRON_FAKE_EXIT:-0}"`

func TestJUnitRunner_Run(t *testing.T) {
	home := fakeJavaHome(t, "java", fakeLauncher)
	argsOut := filepath.Join(t.TempDir(), "args")
	t.Setenv("CAULDRON_ARGS_OUT", argsOut)

	reports := filepath.Join(t.TempDir(), "test-results")
	req := gateways.TestRequest{
		Classpath:  entities.Classpath{"classes"},
		ClassesDir: "test-classes",
		ReportsDir: reports,
		JavaHome:   home,
	}

	t.Run("passing", func(t *testing.T) {
		t.Setenv("CAULDRON_FAKE_EXIT", "0")
		var echo bytes.Buffer

		report, err := NewJUnitRunner(nil, &echo, nil).Run(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Found)
		assert.Equal(t, 2, report.Succeeded)
		assert.Equal(t, reports, report.ReportsDir)
		assert.Contains(t, echo.String(), "tests successful")
		assert.DirExists(t, reports)

		//nolint:gosec // G304: test file path
		args, err := os.ReadFile(argsOut)
		require.NoError(t, err)
		assert.Contains(t, string(args), ConsoleLauncherClass)
		assert.Contains(t, string(args), "--scan-class-path=test-classes")
	})

	t.Run("failing tests", func(t *testing.T) {
		t.Setenv("CAULDRON_FAKE_EXIT", "1")

		_, err := NewJUnitRunner(nil, nil, nil).Run(context.Background(), req)
		assert.True(t, errors.Is(err, entities.ErrTestsFailed), "error = %v", err)
	})

	t.Run("no tests", func(t *testing.T) {
		t.Setenv("CAULDRON_FAKE_EXIT", "2")

		_, err := NewJUnitRunner(nil, nil, nil).Run(context.Background(), req)
		require.Error(t, err)
		assert.True(t, errors.Is(err, entities.ErrTestsFailed))
		assert.True(t, strings.Contains(err.Error(), "no tests found"))
	})

	t.Run("launcher crash", func(t *testing.T) {
		t.Setenv("CAULDRON_FAKE_EXIT", "3")

		_, err := NewJUnitRunner(nil, nil, nil).Run(context.Background(), req)
		require.Error(t, err)
		assert.False(t, errors.Is(err, entities.ErrTestsFailed))
	})
}

func TestJUnitRunner_Run_NoJava(t *testing.T) {
	_, err := NewJUnitRunner(nil, nil, nil).Run(context.Background(), gateways.TestRequest{
		JavaHome: t.TempDir(),
	})
	if !errors.Is(err, entities.ErrToolchainNotFound) {
		t.Errorf("Run() error = %v, want ErrToolchainNotFound", err)
	}
}
