package gateways

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
)

// ToolExecutor runs JDK tools such as javac, java and javadoc
type ToolExecutor struct {
	defaultTimeout time.Duration
	logger         interfaces.Logger
}

// NewToolExecutor creates a new tool executor
func NewToolExecutor(logger interfaces.Logger) *ToolExecutor {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &ToolExecutor{
		defaultTimeout: 30 * time.Minute,
		logger:         logger,
	}
}

// ExecuteToolConfig describes one tool invocation
type ExecuteToolConfig struct {
	Tool        string
	Args        []string
	WorkingDir  string
	Env         map[string]string
	Timeout     time.Duration
	Description string
	// Echo receives stdout as it is produced, in addition to the captured copy
	Echo io.Writer
}

// ExecuteResult contains the result of a tool invocation
type ExecuteResult struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Error    error
}

// Output returns stdout followed by stderr
func (r *ExecuteResult) Output() string {
	return strings.TrimSpace(r.Stdout + r.Stderr)
}

// Execute runs a tool without a shell
func (te *ToolExecutor) Execute(ctx context.Context, config ExecuteToolConfig) *ExecuteResult {
	startTime := time.Now()
	result := &ExecuteResult{}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = te.defaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // G204: tool path is located from the configured JDK
	cmd := exec.CommandContext(execCtx, config.Tool, config.Args...)
	if config.WorkingDir != "" {
		cmd.Dir = config.WorkingDir
	}

	env := os.Environ()
	for key, value := range config.Env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if config.Echo != nil {
		cmd.Stdout = io.MultiWriter(&stdout, config.Echo)
	}
	cmd.Stderr = &stderr

	te.logger.Debug("executing tool",
		interfaces.F("tool", filepath.Base(config.Tool)),
		interfaces.F("description", config.Description),
		interfaces.F("args", len(config.Args)))

	err := cmd.Run()
	result.Duration = time.Since(startTime)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		result.Error = err
		var exitErr *exec.ExitError
		//nolint:gocritic // ifElseChain: checking different error types, not suitable for switch
		if errors.As(err, &exitErr) && execCtx.Err() == nil {
			result.ExitCode = exitErr.ExitCode()
		} else if errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			result.Error = fmt.Errorf("%s timed out after %v", filepath.Base(config.Tool), timeout)
			result.ExitCode = -1
		} else {
			if ctx.Err() != nil {
				result.Error = ctx.Err()
			}
			result.ExitCode = -1
		}
		return result
	}

	result.Success = true
	return result
}

// LocateJavaTool finds a JDK executable. javaHome wins, then $JAVA_HOME, then PATH.
func LocateJavaTool(javaHome, tool string) (string, error) {
	name := tool
	if runtime.GOOS == "windows" {
		name += ".exe"
	}

	homes := []string{javaHome, os.Getenv("JAVA_HOME")}
	for _, home := range homes {
		if home == "" {
			continue
		}
		candidate := filepath.Join(home, "bin", name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		if home == javaHome {
			// an explicit home that lacks the tool is a configuration error
			return "", fmt.Errorf("%w: %s not found in %s", entities.ErrToolchainNotFound, tool, home)
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s is not on PATH and JAVA_HOME is not set", entities.ErrToolchainNotFound, tool)
	}
	return path, nil
}

// WriteArgFile writes arguments in the @argfile format understood by javac, java and javadoc
func WriteArgFile(path string, args []string) error {
	var sb strings.Builder
	for _, arg := range args {
		sb.WriteString(quoteArg(arg))
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), 0600)
}

func quoteArg(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\r\n\"'\\#") {
		return arg
	}
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + replacer.Replace(arg) + `"`
}

// JavaMajorVersion runs "<tool> -version" and returns the feature release, e.g. 17 or 21
func (te *ToolExecutor) JavaMajorVersion(ctx context.Context, tool string) (int, error) {
	result := te.Execute(ctx, ExecuteToolConfig{
		Tool:        tool,
		Args:        []string{"-version"},
		Timeout:     time.Minute,
		Description: "version check",
	})
	if !result.Success {
		return 0, fmt.Errorf("%s -version failed: %w", filepath.Base(tool), result.Error)
	}
	return parseJavaVersion(result.Stdout + result.Stderr)
}

// parseJavaVersion reads outputs like "javac 17.0.2" or `openjdk version "1.8.0_292"`
func parseJavaVersion(output string) (int, error) {
	for _, field := range strings.Fields(output) {
		field = strings.Trim(field, `"`)
		if field == "" || field[0] < '0' || field[0] > '9' {
			continue
		}
		parts := strings.FieldsFunc(field, func(r rune) bool { return r == '.' || r == '_' || r == '-' || r == '+' })
		if len(parts) == 0 {
			continue
		}
		major := 0
		if _, err := fmt.Sscanf(parts[0], "%d", &major); err != nil {
			continue
		}
		if major == 1 && len(parts) > 1 {
			if _, err := fmt.Sscanf(parts[1], "%d", &major); err != nil {
				continue
			}
		}
		return major, nil
	}
	return 0, fmt.Errorf("unable to determine Java version from %q", strings.TrimSpace(output))
}
