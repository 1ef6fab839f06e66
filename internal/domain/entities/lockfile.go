package entities

// LockfileName is the file written next to cauldron.yml
const LockfileName = "cauldron.lock"

// Lockfile pins the resolved dependency set of a project
type Lockfile struct {
	Version      int
	Project      string
	Strategy     string
	Dependencies []LockedDependency
}

// LockedDependency is one pinned module
type LockedDependency struct {
	Coordinate string
	Scope      Scope
	SHA256     string
}

// LockDiff lists differences between a lockfile and a fresh resolution
type LockDiff struct {
	Added   []string
	Removed []string
	Changed []string
}

// Empty reports whether the resolution matches the lockfile
func (d LockDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}
