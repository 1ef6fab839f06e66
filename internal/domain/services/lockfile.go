package services

import (
	"fmt"
	"sort"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

const lockfileVersion = 1

// LockfileService converts between resolutions and lockfiles
type LockfileService struct{}

// NewLockfileService creates a new lockfile service
func NewLockfileService() *LockfileService {
	return &LockfileService{}
}

// Lock pins a resolution. Entries are sorted by coordinate so the file diffs cleanly.
func (s *LockfileService) Lock(project *entities.Project, resolution *entities.Resolution) *entities.Lockfile {
	lock := &entities.Lockfile{
		Version:  lockfileVersion,
		Project:  project.Name,
		Strategy: resolution.Strategy,
	}
	for _, dep := range resolution.Dependencies {
		lock.Dependencies = append(lock.Dependencies, entities.LockedDependency{
			Coordinate: dep.Coordinate.String(),
			Scope:      dep.Scope,
			SHA256:     dep.SHA256,
		})
	}
	sort.Slice(lock.Dependencies, func(i, j int) bool {
		return lock.Dependencies[i].Coordinate < lock.Dependencies[j].Coordinate
	})
	return lock
}

// Diff compares a lockfile against a fresh resolution
func (s *LockfileService) Diff(lock *entities.Lockfile, resolution *entities.Resolution) entities.LockDiff {
	var diff entities.LockDiff

	locked := make(map[string]entities.LockedDependency, len(lock.Dependencies))
	for _, dep := range lock.Dependencies {
		locked[dep.Coordinate] = dep
	}

	current := make(map[string]bool, len(resolution.Dependencies))
	for _, dep := range resolution.Dependencies {
		coord := dep.Coordinate.String()
		current[coord] = true

		prev, ok := locked[coord]
		switch {
		case !ok:
			diff.Added = append(diff.Added, coord)
		case prev.Scope != dep.Scope:
			diff.Changed = append(diff.Changed, fmt.Sprintf("%s scope %s -> %s", coord, prev.Scope, dep.Scope))
		case prev.SHA256 != "" && dep.SHA256 != "" && prev.SHA256 != dep.SHA256:
			diff.Changed = append(diff.Changed, fmt.Sprintf("%s checksum changed", coord))
		}
	}

	for coord := range locked {
		if !current[coord] {
			diff.Removed = append(diff.Removed, coord)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Strings(diff.Changed)
	return diff
}

// Verify returns ErrLockfileMismatch describing the first differences
func (s *LockfileService) Verify(lock *entities.Lockfile, resolution *entities.Resolution) error {
	diff := s.Diff(lock, resolution)
	if diff.Empty() {
		return nil
	}
	return fmt.Errorf("%w: %d added, %d removed, %d changed %v",
		entities.ErrLockfileMismatch, len(diff.Added), len(diff.Removed), len(diff.Changed),
		append(append(diff.Added, diff.Removed...), diff.Changed...))
}
