package gateways

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/mholt/archiver/v3"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
)

// JavadocGenerator renders API documentation with javadoc and optionally packs it as a javadoc jar
type JavadocGenerator struct {
	executor *ToolExecutor
	logger   interfaces.Logger
}

var _ gateways.DocGenerator = (*JavadocGenerator)(nil)

// NewJavadocGenerator creates a documentation generator
func NewJavadocGenerator(executor *ToolExecutor, logger interfaces.Logger) *JavadocGenerator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	if executor == nil {
		executor = NewToolExecutor(logger)
	}
	return &JavadocGenerator{executor: executor, logger: logger}
}

// Generate writes HTML documentation to req.OutputDir
func (g *JavadocGenerator) Generate(ctx context.Context, req gateways.DocsRequest) (*entities.Artifact, error) {
	start := time.Now()

	sources, err := DiscoverSources(req.SourceDirs)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no Java sources to document in %v", req.SourceDirs)
	}

	tool, err := LocateJavaTool(req.JavaHome, "javadoc")
	if err != nil {
		return nil, err
	}

	if err := os.RemoveAll(req.OutputDir); err != nil {
		return nil, fmt.Errorf("failed to clean %s: %w", req.OutputDir, err)
	}
	if err := os.MkdirAll(req.OutputDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", req.OutputDir, err)
	}

	argPath := filepath.Join(filepath.Dir(req.OutputDir), "javadoc.args")
	if err := WriteArgFile(argPath, append(JavadocArgs(req), sources...)); err != nil {
		return nil, fmt.Errorf("failed to write argument file: %w", err)
	}
	defer func() {
		//nolint:errcheck,gosec // G104: Best effort cleanup
		os.Remove(argPath)
	}()

	result := g.executor.Execute(ctx, ExecuteToolConfig{
		Tool:        tool,
		Args:        []string{"@" + argPath},
		Description: "javadoc",
	})
	if !result.Success {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("javadoc failed (exit %d): %w\n%s", result.ExitCode, result.Error, result.Output())
	}

	artifact := &entities.Artifact{
		Name: req.Title,
		Path: req.OutputDir,
		Type: entities.ArtifactTypeJavadoc,
	}

	if req.ArchivePath != "" {
		size, err := PackDirectory(req.OutputDir, req.ArchivePath)
		if err != nil {
			return nil, err
		}
		artifact.Path = req.ArchivePath
		artifact.Size = size
	}

	g.logger.Info("documentation generated",
		interfaces.F(interfaces.FieldPath, artifact.Path),
		interfaces.F(interfaces.FieldDuration, time.Since(start).Round(time.Millisecond)))

	return artifact, nil
}

// JavadocArgs returns the javadoc options for req, without source files
func JavadocArgs(req gateways.DocsRequest) []string {
	args := []string{"-d", req.OutputDir, "-quiet", "-Xdoclint:none"}
	if req.Encoding != "" {
		args = append(args, "-encoding", req.Encoding, "-docencoding", req.Encoding, "-charset", req.Encoding)
	}
	if req.Release > 0 {
		args = append(args, "--release", strconv.Itoa(req.Release))
	}
	if len(req.Classpath) > 0 {
		args = append(args, "-classpath", req.Classpath.String())
	}
	if req.Title != "" {
		args = append(args, "-doctitle", req.Title, "-windowtitle", req.Title)
	}
	return args
}

// PackDirectory zips the contents of dir into dest with entry names relative to dir.
// It returns the size of the written archive.
func PackDirectory(dir, dest string) (int64, error) {
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path != dir {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(paths)

	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return 0, err
	}
	//nolint:gosec // G304: destination is inside the build directory
	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	//nolint:errcheck // closed explicitly on the success path
	defer out.Close()

	z := archiver.NewZip()
	if err := z.Create(out); err != nil {
		return 0, err
	}
	for _, path := range paths {
		if err := writeZipEntry(z, dir, path); err != nil {
			//nolint:errcheck,gosec // G104: write error takes precedence
			z.Close()
			return 0, err
		}
	}
	if err := z.Close(); err != nil {
		return 0, fmt.Errorf("failed to finish %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		return 0, err
	}

	info, err := os.Stat(dest)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func writeZipEntry(z *archiver.Zip, root, path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return err
	}

	file := archiver.File{
		FileInfo: archiver.FileInfo{
			FileInfo:   info,
			CustomName: filepath.ToSlash(rel),
			SourcePath: path,
		},
	}
	if info.Mode().IsRegular() {
		//nolint:gosec // G304: path comes from walking the documentation directory
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		//nolint:errcheck // Defer close on read-only file
		defer f.Close()
		file.ReadCloser = f
	}
	return z.Write(file)
}
