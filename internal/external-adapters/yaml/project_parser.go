// Package yaml provides YAML-based project and lockfile persistence.
package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// yamlProject represents the raw cauldron.yml structure
type yamlProject struct {
	Name         string           `yaml:"name"`
	Group        string           `yaml:"group"`
	Version      string           `yaml:"version"`
	Description  string           `yaml:"description"`
	MainClass    string           `yaml:"main_class"`
	Java         yamlJava         `yaml:"java"`
	Sources      yamlSources      `yaml:"sources"`
	BuildDir     string           `yaml:"build_dir"`
	Repositories []yamlRepository `yaml:"repositories"`
	Dependencies []yamlDependency `yaml:"dependencies"`
	Resolution   yamlResolution   `yaml:"resolution"`
	Archive      yamlArchive      `yaml:"archive"`
	Test         yamlTest         `yaml:"test"`
	Docs         yamlDocs         `yaml:"docs"`
	Signing      yamlSigning      `yaml:"signing"`
	Audit        yamlAudit        `yaml:"audit"`
	Release      yamlRelease      `yaml:"release"`
}

type yamlJava struct {
	Release      int      `yaml:"release"`
	Home         string   `yaml:"home"`
	Encoding     string   `yaml:"encoding"`
	CompilerArgs []string `yaml:"compiler_args"`
}

type yamlSources struct {
	Main          []string `yaml:"main"`
	Resources     []string `yaml:"resources"`
	Test          []string `yaml:"test"`
	TestResources []string `yaml:"test_resources"`
}

type yamlRepository struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// yamlDependency accepts either a bare coordinate string or a mapping
type yamlDependency struct {
	Coordinate string   `yaml:"coordinate"`
	Scope      string   `yaml:"scope"`
	Exclude    []string `yaml:"exclude"`
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *yamlDependency) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&d.Coordinate)
	}
	type plain yamlDependency
	return value.Decode((*plain)(d))
}

type yamlResolution struct {
	Strategy    string   `yaml:"strategy"`
	Force       []string `yaml:"force"`
	Parallelism int      `yaml:"parallelism"`
	MaxAttempts int      `yaml:"max_attempts"`
	Offline     bool     `yaml:"offline"`
}

type yamlArchive struct {
	Executable *bool             `yaml:"executable"`
	FileName   string            `yaml:"file_name"`
	OutputDir  string            `yaml:"output_dir"`
	Exclude    []string          `yaml:"exclude"`
	Manifest   map[string]string `yaml:"manifest"`
}

type yamlTest struct {
	Enabled        *bool    `yaml:"enabled"`
	Launcher       string   `yaml:"launcher"`
	FailIfNoTests  bool     `yaml:"fail_if_no_tests"`
	TimeoutMinutes int      `yaml:"timeout_minutes"`
	JVMArgs        []string `yaml:"jvm_args"`
	IncludeTags    []string `yaml:"include_tags"`
	ExcludeTags    []string `yaml:"exclude_tags"`
}

type yamlDocs struct {
	Enabled bool   `yaml:"enabled"`
	Archive bool   `yaml:"archive"`
	Title   string `yaml:"title"`
}

type yamlSigning struct {
	Enabled bool   `yaml:"enabled"`
	KeyFile string `yaml:"key_file"`
}

type yamlAudit struct {
	Enabled       bool   `yaml:"enabled"`
	BlockSeverity string `yaml:"block_severity"`
}

type yamlRelease struct {
	Checksums  bool `yaml:"checksums"`
	SBOM       bool `yaml:"sbom"`
	Provenance bool `yaml:"provenance"`
}

// ProjectParser parses cauldron.yml files
type ProjectParser struct{}

// NewProjectParser creates a new YAML parser
func NewProjectParser() *ProjectParser {
	return &ProjectParser{}
}

// ParseFile parses a project file into a Project entity
func (p *ProjectParser) ParseFile(filePath string) (*entities.Project, error) {
	//nolint:gosec // G304: filePath is the project definition path
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return p.Parse(data)
}

// Parse parses YAML bytes into a Project entity. Unknown keys are rejected so
// that typos do not silently fall back to defaults.
func (p *ProjectParser) Parse(data []byte) (*entities.Project, error) {
	var raw yamlProject
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("project file is empty")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if raw.Name == "" {
		return nil, fmt.Errorf("project must have a name")
	}

	dependencies, err := convertDependencies(raw.Dependencies)
	if err != nil {
		return nil, err
	}
	resolution, err := convertResolution(raw.Resolution)
	if err != nil {
		return nil, err
	}

	project := &entities.Project{
		Name:         raw.Name,
		Group:        raw.Group,
		Version:      raw.Version,
		Description:  raw.Description,
		MainClass:    raw.MainClass,
		BuildDir:     raw.BuildDir,
		Java:         entities.JavaSettings(raw.Java),
		Sources:      entities.SourceSets(raw.Sources),
		Repositories: convertRepositories(raw.Repositories),
		Dependencies: dependencies,
		Resolution:   resolution,
		Archive: entities.ArchiveSettings{
			Executable: boolOr(raw.Archive.Executable, true),
			FileName:   raw.Archive.FileName,
			OutputDir:  raw.Archive.OutputDir,
			Exclude:    raw.Archive.Exclude,
			Manifest:   raw.Archive.Manifest,
		},
		Test: entities.TestSettings{
			Enabled:        boolOr(raw.Test.Enabled, true),
			Launcher:       raw.Test.Launcher,
			FailIfNoTests:  raw.Test.FailIfNoTests,
			TimeoutMinutes: raw.Test.TimeoutMinutes,
			JVMArgs:        raw.Test.JVMArgs,
			IncludeTags:    raw.Test.IncludeTags,
			ExcludeTags:    raw.Test.ExcludeTags,
		},
		Docs:    entities.DocsSettings(raw.Docs),
		Signing: entities.SigningSettings(raw.Signing),
		Audit:   entities.AuditSettings(raw.Audit),
		Release: entities.ReleaseSettings(raw.Release),
	}

	return project, nil
}

func convertDependencies(raw []yamlDependency) ([]entities.Dependency, error) {
	deps := make([]entities.Dependency, 0, len(raw))
	for i, yd := range raw {
		coord, err := entities.ParseCoordinate(yd.Coordinate)
		if err != nil {
			return nil, fmt.Errorf("dependencies[%d]: %w", i, err)
		}
		scope, err := entities.ParseScope(yd.Scope)
		if err != nil {
			return nil, fmt.Errorf("dependencies[%d] %s: %w", i, coord, err)
		}

		dep := entities.Dependency{Coordinate: coord, Scope: scope}
		for _, ex := range yd.Exclude {
			module, err := entities.ParseModule(ex)
			if err != nil {
				return nil, fmt.Errorf("dependencies[%d] %s: invalid exclusion: %w", i, coord, err)
			}
			dep.Exclusions = append(dep.Exclusions, entities.Exclusion{Group: module.Group, Artifact: module.Artifact})
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

func convertResolution(yr yamlResolution) (entities.ResolutionSettings, error) {
	settings := entities.ResolutionSettings{
		Strategy:    yr.Strategy,
		Parallelism: yr.Parallelism,
		MaxAttempts: yr.MaxAttempts,
		Offline:     yr.Offline,
	}
	for _, f := range yr.Force {
		coord, err := entities.ParseCoordinate(f)
		if err != nil {
			return settings, fmt.Errorf("resolution.force: %w", err)
		}
		settings.Force = append(settings.Force, coord)
	}
	return settings, nil
}

// convertRepositories expands ${VAR} references so credentials can stay in the environment
func convertRepositories(raw []yamlRepository) []entities.Repository {
	repos := make([]entities.Repository, 0, len(raw))
	for _, yr := range raw {
		repos = append(repos, entities.Repository{
			Name:     yr.Name,
			URL:      os.ExpandEnv(yr.URL),
			Username: os.ExpandEnv(yr.Username),
			Password: os.ExpandEnv(yr.Password),
		})
	}
	return repos
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
