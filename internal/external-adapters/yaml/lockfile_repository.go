package yaml

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces/repositories"
)

const lockfileHeader = "# Generated by cauldron resolve. Do not edit.\n"

type yamlLockfile struct {
	Version      int                  `yaml:"version"`
	Project      string               `yaml:"project"`
	Strategy     string               `yaml:"strategy"`
	Dependencies []yamlLockedArtifact `yaml:"dependencies"`
}

type yamlLockedArtifact struct {
	Coordinate string `yaml:"coordinate"`
	Scope      string `yaml:"scope"`
	SHA256     string `yaml:"sha256"`
}

// LockfileRepository implements repositories.LockfileRepository with cauldron.lock files
type LockfileRepository struct{}

var _ repositories.LockfileRepository = (*LockfileRepository)(nil)

// NewLockfileRepository creates a new YAML-based lockfile repository
func NewLockfileRepository() *LockfileRepository {
	return &LockfileRepository{}
}

// LoadLockfile reads cauldron.lock from dir
func (r *LockfileRepository) LoadLockfile(_ context.Context, dir string) (*entities.Lockfile, error) {
	filePath := filepath.Join(dir, entities.LockfileName)
	//nolint:gosec // G304: filePath is the lockfile inside the project directory
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no %s in %s: %w", entities.LockfileName, dir, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	var raw yamlLockfile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}

	lock := &entities.Lockfile{
		Version:  raw.Version,
		Project:  raw.Project,
		Strategy: raw.Strategy,
	}
	for i, d := range raw.Dependencies {
		scope, err := entities.ParseScope(d.Scope)
		if err != nil {
			return nil, fmt.Errorf("%s: dependencies[%d]: %w", filePath, i, err)
		}
		lock.Dependencies = append(lock.Dependencies, entities.LockedDependency{
			Coordinate: d.Coordinate,
			Scope:      scope,
			SHA256:     d.SHA256,
		})
	}
	return lock, nil
}

// SaveLockfile writes cauldron.lock into dir through a temp file and rename
func (r *LockfileRepository) SaveLockfile(_ context.Context, dir string, lock *entities.Lockfile) error {
	raw := yamlLockfile{
		Version:      lock.Version,
		Project:      lock.Project,
		Strategy:     lock.Strategy,
		Dependencies: make([]yamlLockedArtifact, 0, len(lock.Dependencies)),
	}
	for _, d := range lock.Dependencies {
		raw.Dependencies = append(raw.Dependencies, yamlLockedArtifact{
			Coordinate: d.Coordinate,
			Scope:      string(d.Scope),
			SHA256:     d.SHA256,
		})
	}

	var buf bytes.Buffer
	buf.WriteString(lockfileHeader)
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(raw); err != nil {
		return fmt.Errorf("failed to encode lockfile: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to encode lockfile: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+entities.LockfileName+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		//nolint:errcheck,gosec // G104: temp file is gone after a successful rename
		os.Remove(tmpName)
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		//nolint:errcheck,gosec // G104: write error takes precedence
		tmp.Close()
		return fmt.Errorf("failed to write lockfile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write lockfile: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, entities.LockfileName)); err != nil {
		return fmt.Errorf("failed to write lockfile: %w", err)
	}
	return nil
}
