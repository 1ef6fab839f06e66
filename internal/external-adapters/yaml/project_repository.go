package yaml

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces/repositories"
)

// ProjectRepository implements repositories.ProjectRepository using cauldron.yml files
type ProjectRepository struct {
	parser *ProjectParser
}

var _ repositories.ProjectRepository = (*ProjectRepository)(nil)

// NewProjectRepository creates a new YAML-based project repository
func NewProjectRepository() *ProjectRepository {
	return &ProjectRepository{parser: NewProjectParser()}
}

// LoadProject reads cauldron.yml from dir, applies defaults and validates the result
func (r *ProjectRepository) LoadProject(_ context.Context, dir string) (*entities.Project, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}

	filePath := filepath.Join(absDir, entities.ProjectFileName)
	if _, err := os.Stat(filePath); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no %s in %s: %w", entities.ProjectFileName, absDir, fs.ErrNotExist)
	}

	project, err := r.parser.ParseFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}

	project.Dir = absDir
	project.ApplyDefaults()
	if err := project.Validate(); err != nil {
		return nil, err
	}
	return project, nil
}

const starterProject = `name: %s
group: %s
version: 0.1.0
main_class: %s

java:
  release: %d

dependencies:
  - coordinate: org.junit.jupiter:junit-jupiter:5.9.1
    scope: test

archive:
  executable: true
`

const starterMain = `package %s;

public class %s {
    public static void main(String[] args) {
        System.out.println("Hello from %s");
    }
}
`

// InitProject writes a starter cauldron.yml and an entry-point class into dir.
// An existing project file is never overwritten.
func (r *ProjectRepository) InitProject(_ context.Context, dir, name, mainClass string) (string, error) {
	filePath := filepath.Join(dir, entities.ProjectFileName)
	if _, err := os.Stat(filePath); err == nil {
		return "", fmt.Errorf("%s already exists: %w", filePath, fs.ErrExist)
	}

	if name == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("failed to resolve project directory: %w", err)
		}
		name = filepath.Base(abs)
	}

	pkg, class := splitClassName(mainClass)
	if pkg == "" {
		return "", fmt.Errorf("main class %q must be in a package", mainClass)
	}

	// round-trip through the parser so a bad name or class is caught before anything is written
	content := fmt.Sprintf(starterProject, name, pkg, mainClass, entities.DefaultJavaRelease)
	project, err := r.parser.Parse([]byte(content))
	if err != nil {
		return "", err
	}
	project.ApplyDefaults()
	if err := project.Validate(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create project directory: %w", err)
	}
	if err := os.WriteFile(filePath, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filePath, err)
	}

	srcDir := filepath.Join(dir, "src", "main", "java", filepath.FromSlash(strings.ReplaceAll(pkg, ".", "/")))
	srcFile := filepath.Join(srcDir, class+".java")
	if _, err := os.Stat(srcFile); err == nil {
		return filePath, nil
	}
	if err := os.MkdirAll(srcDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create source directory: %w", err)
	}
	if err := os.WriteFile(srcFile, []byte(fmt.Sprintf(starterMain, pkg, class, name)), 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", srcFile, err)
	}

	return filePath, nil
}

func splitClassName(name string) (pkg, class string) {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return "", name
	}
	return name[:idx], name[idx+1:]
}
