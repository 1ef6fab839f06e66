// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// ProjectRepository defines the interface for loading build definitions
type ProjectRepository interface {
	// LoadProject reads, defaults and validates the project in dir
	LoadProject(ctx context.Context, dir string) (*entities.Project, error)

	// InitProject writes a starter definition into dir
	InitProject(ctx context.Context, dir, name, mainClass string) (string, error)
}

// LockfileRepository persists resolved dependency sets
type LockfileRepository interface {
	// LoadLockfile returns an error wrapping fs.ErrNotExist when no lockfile exists
	LoadLockfile(ctx context.Context, dir string) (*entities.Lockfile, error)

	// SaveLockfile writes the lockfile into dir
	SaveLockfile(ctx context.Context, dir string, lock *entities.Lockfile) error
}
