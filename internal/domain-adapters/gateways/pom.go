package gateways

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/vifraa/gopom"
	"golang.org/x/net/html/charset"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
)

const (
	maxParentDepth        = 16
	maxInterpolationDepth = 8
)

var propertyMatcher = regexp.MustCompile(`\$\{([^}]+)\}`)

// POMDependency is a dependency of an effective POM with properties and management applied
type POMDependency struct {
	Coordinate entities.Coordinate
	Scope      string
	Optional   bool
	Exclusions []entities.Exclusion
}

// EffectivePOM is a POM with its parent chain, properties and imported BOMs folded in
type EffectivePOM struct {
	Coordinate   entities.Coordinate
	Packaging    string
	Properties   map[string]string
	Managed      map[string]POMDependency
	Dependencies []POMDependency
}

// POMLoader reads and caches effective POMs. It is not safe for concurrent use.
type POMLoader struct {
	repo   gateways.ArtifactRepository
	logger interfaces.Logger
	cache  map[string]*EffectivePOM
}

// NewPOMLoader creates a loader that fetches POMs through repo
func NewPOMLoader(repo gateways.ArtifactRepository, logger interfaces.Logger) *POMLoader {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &POMLoader{
		repo:   repo,
		logger: logger,
		cache:  make(map[string]*EffectivePOM),
	}
}

// Load returns the effective POM of a module version
func (l *POMLoader) Load(ctx context.Context, coord entities.Coordinate) (*EffectivePOM, error) {
	return l.load(ctx, coord, 0)
}

func (l *POMLoader) load(ctx context.Context, coord entities.Coordinate, depth int) (*EffectivePOM, error) {
	pomCoord := coord.POM()
	key := pomCoord.String()
	if cached, ok := l.cache[key]; ok {
		return cached, nil
	}
	if depth > maxParentDepth {
		return nil, fmt.Errorf("parent chain of %s is deeper than %d", coord, maxParentDepth)
	}

	fetched, err := l.repo.Fetch(ctx, pomCoord)
	if err != nil {
		return nil, err
	}

	project, err := decodePOMFile(fetched.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to parse POM of %s: %w", coord, err)
	}

	var parent *EffectivePOM
	if project.Parent.ArtifactID != "" {
		parentCoord := entities.Coordinate{
			Group:    strings.TrimSpace(project.Parent.GroupID),
			Artifact: strings.TrimSpace(project.Parent.ArtifactID),
			Version:  strings.TrimSpace(project.Parent.Version),
		}
		parent, err = l.load(ctx, parentCoord, depth+1)
		if err != nil {
			return nil, fmt.Errorf("unable to load parent %s of %s: %w", parentCoord, coord, err)
		}
	}

	effective, err := l.build(ctx, coord, project, parent, depth)
	if err != nil {
		return nil, err
	}
	l.cache[key] = effective
	return effective, nil
}

func (l *POMLoader) build(ctx context.Context, coord entities.Coordinate, project gopom.Project, parent *EffectivePOM, depth int) (*EffectivePOM, error) {
	effective := &EffectivePOM{
		Coordinate: coord,
		Packaging:  strings.TrimSpace(project.Packaging),
		Properties: make(map[string]string),
		Managed:    make(map[string]POMDependency),
	}

	if parent != nil {
		for k, v := range parent.Properties {
			effective.Properties[k] = v
		}
		for k, v := range parent.Managed {
			effective.Managed[k] = v
		}
	}
	for k, v := range project.Properties.Entries {
		effective.Properties[k] = strings.TrimSpace(v)
	}

	groupID := firstNonEmpty(project.GroupID, project.Parent.GroupID, coord.Group)
	version := firstNonEmpty(project.Version, project.Parent.Version, coord.Version)
	builtins := map[string]string{
		"project.groupId":        groupID,
		"project.artifactId":     firstNonEmpty(project.ArtifactID, coord.Artifact),
		"project.version":        version,
		"project.parent.groupId": strings.TrimSpace(project.Parent.GroupID),
		"project.parent.version": strings.TrimSpace(project.Parent.Version),
		"pom.groupId":            groupID,
		"pom.version":            version,
		"groupId":                groupID,
		"version":                version,
	}
	for k, v := range builtins {
		effective.Properties[k] = v
	}

	resolve := func(s string) string {
		return interpolate(s, effective.Properties)
	}

	var imports []POMDependency
	for _, dep := range project.DependencyManagement.Dependencies {
		d := toPOMDependency(dep, resolve)
		if d.Scope == "import" && (d.Coordinate.Type == "pom" || d.Coordinate.Type == "") {
			imports = append(imports, d)
			continue
		}
		effective.Managed[d.Coordinate.Key()] = d
	}

	// imported BOMs only fill gaps left by declared management
	for _, imp := range imports {
		bom, err := l.load(ctx, imp.Coordinate, depth+1)
		if err != nil {
			return nil, fmt.Errorf("unable to import BOM %s into %s: %w", imp.Coordinate, coord, err)
		}
		for k, v := range bom.Managed {
			if _, ok := effective.Managed[k]; !ok {
				effective.Managed[k] = v
			}
		}
	}

	seen := make(map[string]int)
	if parent != nil {
		for _, d := range parent.Dependencies {
			seen[d.Coordinate.Key()] = len(effective.Dependencies)
			effective.Dependencies = append(effective.Dependencies, d)
		}
	}
	for _, dep := range project.Dependencies {
		d := applyManagement(toPOMDependency(dep, resolve), effective.Managed)
		if idx, ok := seen[d.Coordinate.Key()]; ok {
			effective.Dependencies[idx] = d
			continue
		}
		seen[d.Coordinate.Key()] = len(effective.Dependencies)
		effective.Dependencies = append(effective.Dependencies, d)
	}

	for _, d := range effective.Dependencies {
		if d.Coordinate.Version == "" || strings.Contains(d.Coordinate.Version, "${") {
			l.logger.Warn("dependency version could not be determined",
				interfaces.F(interfaces.FieldCoordinate, coord.String()),
				interfaces.F(interfaces.FieldModule, d.Coordinate.Key()))
		}
	}

	return effective, nil
}

func toPOMDependency(dep gopom.Dependency, resolve func(string) string) POMDependency {
	d := POMDependency{
		Coordinate: entities.Coordinate{
			Group:      resolve(strings.TrimSpace(dep.GroupID)),
			Artifact:   resolve(strings.TrimSpace(dep.ArtifactID)),
			Version:    normalizeVersion(resolve(strings.TrimSpace(dep.Version))),
			Classifier: resolve(strings.TrimSpace(dep.Classifier)),
			Type:       resolve(strings.TrimSpace(dep.Type)),
		},
		Scope:    strings.TrimSpace(resolve(dep.Scope)),
		Optional: strings.EqualFold(strings.TrimSpace(resolve(fmt.Sprint(dep.Optional))), "true"),
	}
	for _, ex := range dep.Exclusions {
		d.Exclusions = append(d.Exclusions, entities.Exclusion{
			Group:    resolve(strings.TrimSpace(ex.GroupID)),
			Artifact: resolve(strings.TrimSpace(ex.ArtifactID)),
		})
	}
	return d
}

func applyManagement(d POMDependency, managed map[string]POMDependency) POMDependency {
	m, ok := managed[d.Coordinate.Key()]
	if !ok {
		return d
	}
	if d.Coordinate.Version == "" {
		d.Coordinate.Version = m.Coordinate.Version
	}
	if d.Scope == "" {
		d.Scope = m.Scope
	}
	if len(d.Exclusions) == 0 {
		d.Exclusions = m.Exclusions
	}
	return d
}

// normalizeVersion picks the lower bound of hard version ranges such as "[1.2.3]" or "[1.0,2.0)"
func normalizeVersion(v string) string {
	if !strings.HasPrefix(v, "[") && !strings.HasPrefix(v, "(") {
		return v
	}
	inner := strings.Trim(v, "[]()")
	if idx := strings.Index(inner, ","); idx >= 0 {
		if lower := strings.TrimSpace(inner[:idx]); lower != "" {
			return lower
		}
		return strings.TrimSpace(inner[idx+1:])
	}
	return strings.TrimSpace(inner)
}

func interpolate(s string, props map[string]string) string {
	for i := 0; i < maxInterpolationDepth && strings.Contains(s, "${"); i++ {
		next := propertyMatcher.ReplaceAllStringFunc(s, func(match string) string {
			name := strings.TrimSpace(match[2 : len(match)-1])
			if value, ok := props[name]; ok {
				return value
			}
			if value, ok := os.LookupEnv(strings.TrimPrefix(name, "env.")); ok && strings.HasPrefix(name, "env.") {
				return value
			}
			return match
		})
		if next == s {
			break
		}
		s = next
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func decodePOMFile(path string) (gopom.Project, error) {
	//nolint:gosec // G304: path is inside the repository cache
	f, err := os.Open(path)
	if err != nil {
		return gopom.Project{}, err
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()
	return decodePOM(f)
}

func decodePOM(content io.Reader) (project gopom.Project, err error) {
	decoder := xml.NewDecoder(content)
	// older POMs declare ISO-8859-1 or windows-1252
	decoder.CharsetReader = charset.NewReaderLabel
	if err := decoder.Decode(&project); err != nil {
		return project, fmt.Errorf("unable to unmarshal pom.xml: %w", err)
	}
	return project, nil
}
