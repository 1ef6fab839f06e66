package entities

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ProjectFileName is the build definition looked up in a project directory
const ProjectFileName = "cauldron.yml"

// Defaults applied to a project definition
const (
	DefaultJavaRelease    = 21
	DefaultBuildDir       = "build"
	DefaultRepositoryURL  = "https://repo.maven.apache.org/maven2"
	DefaultTestLauncher   = "org.junit.platform:junit-platform-console-standalone:1.9.1"
	DefaultStrategy       = "highest"
	DefaultParallelism    = 4
	DefaultMaxAttempts    = 3
	DefaultTimeoutMinutes = 30
)

var manifestKeyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,69}$`)

// Project is the build definition loaded from cauldron.yml
type Project struct {
	Dir          string // absolute directory containing the project file
	Name         string
	Group        string
	Version      string
	Description  string
	MainClass    string
	Java         JavaSettings
	Sources      SourceSets
	BuildDir     string
	Repositories []Repository
	Dependencies []Dependency
	Resolution   ResolutionSettings
	Archive      ArchiveSettings
	Test         TestSettings
	Docs         DocsSettings
	Signing      SigningSettings
	Audit        AuditSettings
	Release      ReleaseSettings
}

// JavaSettings pins the toolchain
type JavaSettings struct {
	Release      int
	Home         string
	Encoding     string
	CompilerArgs []string
}

// SourceSets lists directories relative to the project directory
type SourceSets struct {
	Main          []string
	Resources     []string
	Test          []string
	TestResources []string
}

// Repository is a Maven repository
type Repository struct {
	Name     string
	URL      string
	Username string
	Password string
}

// ResolutionSettings controls dependency resolution
type ResolutionSettings struct {
	Strategy    string // "highest" or "nearest"
	Force       []Coordinate
	Parallelism int
	MaxAttempts int
	Offline     bool
}

// ArchiveSettings controls fat archive assembly
type ArchiveSettings struct {
	Executable bool
	FileName   string
	OutputDir  string
	Exclude    []string
	Manifest   map[string]string
}

// TestSettings controls the test stage
type TestSettings struct {
	Enabled        bool
	Launcher       string
	FailIfNoTests  bool
	TimeoutMinutes int
	JVMArgs        []string
	IncludeTags    []string
	ExcludeTags    []string
}

// DocsSettings controls javadoc generation
type DocsSettings struct {
	Enabled bool
	Archive bool
	Title   string
}

// SigningSettings controls detached signatures of the archive
type SigningSettings struct {
	Enabled bool
	KeyFile string
}

// ReleaseSettings controls the sidecar files written next to the archive
type ReleaseSettings struct {
	Checksums  bool
	SBOM       bool
	Provenance bool
}

// Any reports whether any release artifact is requested
func (r ReleaseSettings) Any() bool {
	return r.Checksums || r.SBOM || r.Provenance
}

// AuditSettings controls the optional vulnerability gate
type AuditSettings struct {
	Enabled       bool
	BlockSeverity string
}

// BuildLayout is the set of absolute output locations of a build
type BuildLayout struct {
	Root           string
	BuildDir       string
	ClassesDir     string
	TestClassesDir string
	LibsDir        string
	DocsDir        string
	TestResultsDir string
	TmpDir         string
}

// ApplyDefaults fills unset fields
func (p *Project) ApplyDefaults() {
	if p.Java.Release == 0 {
		p.Java.Release = DefaultJavaRelease
	}
	if p.Java.Encoding == "" {
		p.Java.Encoding = "UTF-8"
	}
	if p.BuildDir == "" {
		p.BuildDir = DefaultBuildDir
	}
	if len(p.Sources.Main) == 0 {
		p.Sources.Main = []string{"src/main/java"}
	}
	if len(p.Sources.Resources) == 0 {
		p.Sources.Resources = []string{"src/main/resources"}
	}
	if len(p.Sources.Test) == 0 {
		p.Sources.Test = []string{"src/test/java"}
	}
	if len(p.Sources.TestResources) == 0 {
		p.Sources.TestResources = []string{"src/test/resources"}
	}
	if len(p.Repositories) == 0 {
		p.Repositories = []Repository{{Name: "central", URL: DefaultRepositoryURL}}
	}
	if p.Resolution.Strategy == "" {
		p.Resolution.Strategy = DefaultStrategy
	}
	if p.Resolution.Parallelism <= 0 {
		p.Resolution.Parallelism = DefaultParallelism
	}
	if p.Resolution.MaxAttempts <= 0 {
		p.Resolution.MaxAttempts = DefaultMaxAttempts
	}
	if p.Test.Launcher == "" {
		p.Test.Launcher = DefaultTestLauncher
	}
	if p.Test.TimeoutMinutes <= 0 {
		p.Test.TimeoutMinutes = DefaultTimeoutMinutes
	}
	if p.Audit.BlockSeverity == "" {
		p.Audit.BlockSeverity = "CRITICAL"
	}
}

// Validate checks the definition for errors that would otherwise surface late
func (p *Project) Validate() error {
	var problems []string

	if p.Name == "" {
		problems = append(problems, "name is required")
	}
	if p.Version == "" {
		problems = append(problems, "version is required")
	}
	if p.Archive.Executable && p.MainClass == "" {
		problems = append(problems, ErrNoMainClass.Error())
	}
	if p.MainClass != "" && !isJavaClassName(p.MainClass) {
		problems = append(problems, fmt.Sprintf("main_class %q is not a valid class name", p.MainClass))
	}
	if p.Resolution.Strategy != "highest" && p.Resolution.Strategy != "nearest" {
		problems = append(problems, fmt.Sprintf("resolution.strategy %q must be highest or nearest", p.Resolution.Strategy))
	}
	if p.Java.Release < 8 {
		problems = append(problems, fmt.Sprintf("java.release %d is not supported", p.Java.Release))
	}
	if p.Archive.FileName != "" && strings.ContainsAny(p.Archive.FileName, `/\`) {
		problems = append(problems, "archive.file_name must not contain path separators")
	}
	if strings.ContainsAny(p.Name+p.Version, "\r\n\x00") {
		problems = append(problems, "name and version must not contain line breaks")
	}

	keys := make([]string, 0, len(p.Archive.Manifest))
	for k := range p.Archive.Manifest {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := CheckManifestAttribute(k, p.Archive.Manifest[k]); err != nil {
			problems = append(problems, err.Error())
		}
	}

	seen := make(map[string]bool)
	for _, dep := range p.Dependencies {
		key := dep.Coordinate.Key()
		if seen[key] {
			problems = append(problems, fmt.Sprintf("dependency %s declared more than once", key))
		}
		seen[key] = true
	}

	if len(problems) == 0 {
		return nil
	}

	err := fmt.Errorf("invalid project %q: %s", p.Name, strings.Join(problems, "; "))
	if p.Archive.Executable && p.MainClass == "" {
		return errors.Join(err, ErrNoMainClass)
	}
	return err
}

// Layout resolves output directories against the project directory
func (p *Project) Layout() BuildLayout {
	buildDir := p.BuildDir
	if !filepath.IsAbs(buildDir) {
		buildDir = filepath.Join(p.Dir, buildDir)
	}
	return BuildLayout{
		Root:           p.Dir,
		BuildDir:       buildDir,
		ClassesDir:     filepath.Join(buildDir, "classes", "main"),
		TestClassesDir: filepath.Join(buildDir, "classes", "test"),
		LibsDir:        filepath.Join(buildDir, "libs"),
		DocsDir:        filepath.Join(buildDir, "docs", "javadoc"),
		TestResultsDir: filepath.Join(buildDir, "test-results"),
		TmpDir:         filepath.Join(buildDir, "tmp"),
	}
}

// ArchiveFileName returns the file name of the fat archive
func (p *Project) ArchiveFileName() string {
	if p.Archive.FileName != "" {
		return p.Archive.FileName
	}
	return fmt.Sprintf("%s-%s.jar", p.Name, p.Version)
}

// ArchivePath returns the absolute path of the fat archive
func (p *Project) ArchivePath() string {
	dir := p.Layout().LibsDir
	if p.Archive.OutputDir != "" {
		dir = p.Archive.OutputDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(p.Dir, dir)
		}
	}
	return filepath.Join(dir, p.ArchiveFileName())
}

// Abs resolves a project-relative path
func (p *Project) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.Dir, rel)
}

// EffectiveDependencies returns the declared dependencies plus the test launcher
// when tests are enabled and the launcher is not declared explicitly.
func (p *Project) EffectiveDependencies() ([]Dependency, error) {
	deps := make([]Dependency, len(p.Dependencies))
	copy(deps, p.Dependencies)

	if !p.Test.Enabled || p.Test.Launcher == "" {
		return deps, nil
	}

	launcher, err := ParseCoordinate(p.Test.Launcher)
	if err != nil {
		return nil, fmt.Errorf("invalid test.launcher: %w", err)
	}
	for _, dep := range deps {
		if dep.Coordinate.Key() == launcher.Key() {
			return deps, nil
		}
	}
	return append(deps, Dependency{Coordinate: launcher, Scope: ScopeTest}), nil
}

// CheckManifestAttribute reports whether key and value can be written to MANIFEST.MF as they are
func CheckManifestAttribute(key, value string) error {
	if !manifestKeyPattern.MatchString(key) {
		return fmt.Errorf("archive.manifest key %q is not a valid attribute name", key)
	}
	if strings.ContainsAny(value, "\r\n\x00") {
		return fmt.Errorf("archive.manifest value of %s must not contain line breaks or NUL", key)
	}
	return nil
}

func isJavaClassName(name string) bool {
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			letter := r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > 127
			digit := r >= '0' && r <= '9'
			if !letter && !(digit && i > 0) {
				return false
			}
		}
	}
	return true
}
