package gateways

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
)

const javaSourceGlob = "**/*.java"

// JavacCompiler compiles sources with the JDK's javac and copies resources next to the classes
type JavacCompiler struct {
	executor *ToolExecutor
	fs       afero.Fs
	logger   interfaces.Logger
}

var _ gateways.Compiler = (*JavacCompiler)(nil)

// NewJavacCompiler creates a compiler. A nil fs uses the OS filesystem.
func NewJavacCompiler(executor *ToolExecutor, fs afero.Fs, logger interfaces.Logger) *JavacCompiler {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	if executor == nil {
		executor = NewToolExecutor(logger)
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &JavacCompiler{executor: executor, fs: fs, logger: logger}
}

// Compile compiles every .java file under req.SourceDirs into req.OutputDir. The output
// directory is emptied first so classes and resources of deleted sources do not survive.
func (c *JavacCompiler) Compile(ctx context.Context, req gateways.CompileRequest) (*entities.CompileResult, error) {
	start := time.Now()

	if req.OutputDir == "" {
		return nil, errors.New("compile output directory is not set")
	}
	if err := c.fs.RemoveAll(req.OutputDir); err != nil {
		return nil, fmt.Errorf("failed to clear %s: %w", req.OutputDir, err)
	}
	if err := c.fs.MkdirAll(req.OutputDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", req.OutputDir, err)
	}

	sources, err := DiscoverSources(req.SourceDirs)
	if err != nil {
		return nil, err
	}

	result := &entities.CompileResult{OutputDir: req.OutputDir, SourceFiles: len(sources)}

	if len(sources) > 0 {
		output, err := c.javac(ctx, req, sources)
		result.Output = output
		if err != nil {
			return result, err
		}
	} else {
		c.logger.Warn("no Java sources found", interfaces.F("dirs", req.SourceDirs))
	}

	copied, err := c.CopyResources(req.ResourceDirs, req.OutputDir)
	if err != nil {
		return result, err
	}
	result.Resources = copied
	result.Duration = time.Since(start)

	c.logger.Info("compiled",
		interfaces.F("sources", result.SourceFiles),
		interfaces.F("resources", result.Resources),
		interfaces.F(interfaces.FieldPath, req.OutputDir),
		interfaces.F(interfaces.FieldDuration, result.Duration.Round(time.Millisecond)))

	return result, nil
}

func (c *JavacCompiler) javac(ctx context.Context, req gateways.CompileRequest, sources []string) (string, error) {
	tool, err := LocateJavaTool(req.JavaHome, "javac")
	if err != nil {
		return "", err
	}

	if req.Release > 0 {
		major, err := c.executor.JavaMajorVersion(ctx, tool)
		if err != nil {
			return "", err
		}
		if major < req.Release {
			return "", fmt.Errorf("%w: javac %d cannot target release %d", entities.ErrToolchainNotFound, major, req.Release)
		}
	}

	args := CompilerArgs(req)
	args = append(args, sources...)

	argFile, err := os.CreateTemp("", "cauldron-javac-*.args")
	if err != nil {
		return "", fmt.Errorf("failed to create argument file: %w", err)
	}
	argPath := argFile.Name()
	//nolint:errcheck,gosec // G104: closed before javac reads it
	argFile.Close()
	defer func() {
		//nolint:errcheck,gosec // G104: Best effort cleanup
		os.Remove(argPath)
	}()
	if err := WriteArgFile(argPath, args); err != nil {
		return "", fmt.Errorf("failed to write argument file: %w", err)
	}

	result := c.executor.Execute(ctx, ExecuteToolConfig{
		Tool:        tool,
		Args:        []string{"@" + argPath},
		Description: "javac",
	})
	if !result.Success {
		if ctx.Err() != nil {
			return result.Output(), ctx.Err()
		}
		return result.Output(), fmt.Errorf("javac failed (exit %d): %w\n%s", result.ExitCode, result.Error, result.Output())
	}
	return result.Output(), nil
}

// CompilerArgs returns the javac options for req, without source files
func CompilerArgs(req gateways.CompileRequest) []string {
	args := []string{"-d", req.OutputDir}
	if req.Encoding != "" {
		args = append(args, "-encoding", req.Encoding)
	}
	if req.Release > 0 {
		args = append(args, "--release", strconv.Itoa(req.Release))
	}
	if len(req.Classpath) > 0 {
		args = append(args, "-classpath", req.Classpath.String())
	}
	return append(args, req.ExtraArgs...)
}

// DiscoverSources lists .java files below dirs in a stable order. Missing directories are skipped.
func DiscoverSources(dirs []string) ([]string, error) {
	var sources []string
	for _, dir := range dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		matches, err := doublestar.Glob(os.DirFS(dir), javaSourceGlob)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			sources = append(sources, filepath.Join(dir, filepath.FromSlash(m)))
		}
	}
	return sources, nil
}

// CopyResources copies every file under dirs into outputDir, preserving relative paths.
// Later directories overwrite earlier ones.
func (c *JavacCompiler) CopyResources(dirs []string, outputDir string) (int, error) {
	copied := 0
	for _, dir := range dirs {
		exists, err := afero.DirExists(c.fs, dir)
		if err != nil || !exists {
			continue
		}

		err = afero.Walk(c.fs, dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			target := filepath.Join(outputDir, rel)
			if info.IsDir() {
				return c.fs.MkdirAll(target, 0750)
			}
			if err := c.copyFile(path, target); err != nil {
				return err
			}
			copied++
			return nil
		})
		if err != nil {
			return copied, fmt.Errorf("failed to copy resources from %s: %w", dir, err)
		}
	}
	return copied, nil
}

func (c *JavacCompiler) copyFile(src, dst string) error {
	in, err := c.fs.Open(src)
	if err != nil {
		return err
	}
	//nolint:errcheck // Defer close on read-only file
	defer in.Close()

	out, err := c.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		//nolint:errcheck,gosec // G104: copy error takes precedence
		out.Close()
		return err
	}
	return out.Close()
}
