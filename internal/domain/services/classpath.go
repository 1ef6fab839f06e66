package services

import (
	"github.com/ochairo/cauldron/internal/domain/entities"
)

// ClasspathService derives classpaths and archive contents from a resolution
type ClasspathService struct{}

// NewClasspathService creates a new classpath service
func NewClasspathService() *ClasspathService {
	return &ClasspathService{}
}

// Scopes returns the scopes that contribute to a classpath purpose
func (s *ClasspathService) Scopes(purpose entities.ClasspathPurpose) map[entities.Scope]bool {
	switch purpose {
	case entities.PurposeCompile:
		return map[entities.Scope]bool{entities.ScopeCompile: true}
	case entities.PurposeRuntime:
		return map[entities.Scope]bool{entities.ScopeCompile: true, entities.ScopeRuntime: true}
	case entities.PurposeTestCompile, entities.PurposeTestRuntime:
		return map[entities.Scope]bool{entities.ScopeCompile: true, entities.ScopeRuntime: true, entities.ScopeTest: true}
	default:
		return map[entities.Scope]bool{}
	}
}

// Dependencies filters the resolution to the dependencies of a classpath purpose,
// preserving resolution order
func (s *ClasspathService) Dependencies(resolution *entities.Resolution, purpose entities.ClasspathPurpose) []entities.ResolvedDependency {
	if resolution == nil {
		return nil
	}
	scopes := s.Scopes(purpose)
	deps := make([]entities.ResolvedDependency, 0, len(resolution.Dependencies))
	for _, dep := range resolution.Dependencies {
		if scopes[dep.Scope] {
			deps = append(deps, dep)
		}
	}
	return deps
}

// Classpath builds the classpath for a purpose. Leading directories (compiled
// output) come first, followed by dependency jars in resolution order.
func (s *ClasspathService) Classpath(resolution *entities.Resolution, purpose entities.ClasspathPurpose, dirs ...string) entities.Classpath {
	deps := s.Dependencies(resolution, purpose)
	cp := make(entities.Classpath, 0, len(dirs)+len(deps))
	cp = append(cp, dirs...)
	for _, dep := range deps {
		if dep.Path != "" {
			cp = append(cp, dep.Path)
		}
	}
	return cp
}

// ArchiveDependencies returns the dependencies bundled into the fat archive:
// the runtime classpath. Test-only dependencies are never bundled.
func (s *ClasspathService) ArchiveDependencies(resolution *entities.Resolution) []entities.ResolvedDependency {
	return s.Dependencies(resolution, entities.PurposeRuntime)
}
