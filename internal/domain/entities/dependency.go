package entities

import (
	"fmt"
	"os"
	"strings"
)

// Scope controls which classpaths a dependency appears on
type Scope string

// Supported scopes
const (
	ScopeCompile Scope = "compile"
	ScopeRuntime Scope = "runtime"
	ScopeTest    Scope = "test"
)

var scopeAliases = map[string]Scope{
	"compile":            ScopeCompile,
	"implementation":     ScopeCompile,
	"api":                ScopeCompile,
	"runtime":            ScopeRuntime,
	"runtimeonly":        ScopeRuntime,
	"test":               ScopeTest,
	"testimplementation": ScopeTest,
	"testruntimeonly":    ScopeTest,
	"testcompileonly":    ScopeTest,
}

// ParseScope accepts scope names and Gradle configuration names
func ParseScope(s string) (Scope, error) {
	if s == "" {
		return ScopeCompile, nil
	}
	key := strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(s))
	if scope, ok := scopeAliases[key]; ok {
		return scope, nil
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

func (s Scope) rank() int {
	switch s {
	case ScopeCompile:
		return 3
	case ScopeRuntime:
		return 2
	case ScopeTest:
		return 1
	default:
		return 0
	}
}

// Wider reports whether s puts a dependency on more classpaths than other
func (s Scope) Wider(other Scope) bool {
	return s.rank() > other.rank()
}

// InArchive reports whether dependencies of this scope are bundled into the fat archive
func (s Scope) InArchive() bool {
	return s == ScopeCompile || s == ScopeRuntime
}

// MediateScope returns the effective scope of a transitive dependency declared with
// pomScope under a parent resolved with parent. ok is false when the dependency
// is not inherited at all (test, provided, system, import).
func MediateScope(parent Scope, pomScope string) (scope Scope, ok bool) {
	switch pomScope {
	case "", "compile":
		return parent, true
	case "runtime":
		if parent == ScopeCompile {
			return ScopeRuntime, true
		}
		return parent, true
	default:
		return "", false
	}
}

// Dependency is a declared dependency of the project
type Dependency struct {
	Coordinate Coordinate
	Scope      Scope
	Exclusions []Exclusion
}

func (d Dependency) String() string {
	return fmt.Sprintf("%s (%s)", d.Coordinate, d.Scope)
}

// ResolvedDependency is a node of the resolved dependency graph with its local file
type ResolvedDependency struct {
	Coordinate Coordinate
	Scope      Scope
	Depth      int
	Via        []string // module keys from the root to the parent, empty for direct dependencies
	Path       string
	SHA1       string
	SHA256     string
}

// Direct reports whether the dependency was declared by the project
func (d ResolvedDependency) Direct() bool {
	return d.Depth == 1
}

// Resolution is the outcome of resolving a project's dependencies
type Resolution struct {
	Strategy     string
	Dependencies []ResolvedDependency
}

// Find returns the resolved dependency for a module key
func (r *Resolution) Find(key string) (ResolvedDependency, bool) {
	if r == nil {
		return ResolvedDependency{}, false
	}
	for _, d := range r.Dependencies {
		if d.Coordinate.Key() == key {
			return d, true
		}
	}
	return ResolvedDependency{}, false
}

// ClasspathPurpose selects which scopes contribute to a classpath
type ClasspathPurpose string

// Classpath purposes
const (
	PurposeCompile     ClasspathPurpose = "compile"
	PurposeRuntime     ClasspathPurpose = "runtime"
	PurposeTestCompile ClasspathPurpose = "test-compile"
	PurposeTestRuntime ClasspathPurpose = "test-runtime"
)

// Classpath is an ordered list of directories and jars
type Classpath []string

// String joins entries with the platform list separator
func (c Classpath) String() string {
	return strings.Join(c, string(os.PathListSeparator))
}
