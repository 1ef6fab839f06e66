package entities

import "time"

// ManifestPath is the location of the manifest inside a JAR
const ManifestPath = "META-INF/MANIFEST.MF"

// JavaManifest holds the main attributes and named sections of a MANIFEST.MF
type JavaManifest struct {
	Main          map[string]string
	NamedSections map[string]map[string]string
}

// MainClass returns the declared entry point, if any
func (m *JavaManifest) MainClass() string {
	if m == nil {
		return ""
	}
	return m.Main["Main-Class"]
}

// AssemblySpec describes one fat archive to assemble
type AssemblySpec struct {
	OutputPath string
	// ContentDirs are merged first, in order. Typically the compiled classes directory.
	ContentDirs []string
	// Dependencies are merged after ContentDirs in slice order.
	Dependencies []ResolvedDependency
	Manifest     *JavaManifest
	Exclude      []string
	// Timestamp is applied to every entry. Zero selects the reproducible default.
	Timestamp time.Time
}

// DuplicateEntry records a path that was skipped because an earlier source provided it
type DuplicateEntry struct {
	Path        string
	KeptFrom    string
	SkippedFrom string
}

// AssemblyReport summarizes an assembled archive
type AssemblyReport struct {
	Artifact   *Artifact
	Entries    int
	Sources    int
	Duplicates []DuplicateEntry
	Excluded   int
	Duration   time.Duration
}

// PomProperties is the META-INF/maven/**/pom.properties of an embedded library
type PomProperties struct {
	Path       string
	Name       string            `mapstructure:"name"`
	GroupID    string            `mapstructure:"groupId"`
	ArtifactID string            `mapstructure:"artifactId"`
	Version    string            `mapstructure:"version"`
	Extra      map[string]string `mapstructure:",remain"`
}

// ArchiveInspection describes an existing archive
type ArchiveInspection struct {
	Path             string
	Size             int64
	Entries          int
	Classes          int
	Manifest         *JavaManifest
	MainClass        string
	MainClassPresent bool
	Executable       bool
	Embedded         []PomProperties
	// DuplicateNames lists entry names stored more than once
	DuplicateNames []string
}

// CompileResult summarizes a javac invocation
type CompileResult struct {
	OutputDir   string
	SourceFiles int
	Resources   int
	Duration    time.Duration
	Output      string
}

// TestReport summarizes a test run
type TestReport struct {
	Found      int
	Succeeded  int
	Failed     int
	Skipped    int
	Aborted    int
	ReportsDir string
	Duration   time.Duration
	Output     string
}

// Passed reports whether the run had no failures
func (r *TestReport) Passed() bool {
	return r != nil && r.Failed == 0 && r.Aborted == 0
}
