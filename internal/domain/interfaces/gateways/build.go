package gateways

import (
	"context"
	"time"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// DependencyResolver turns declared dependencies into a resolution with local jar files
type DependencyResolver interface {
	Resolve(ctx context.Context, project *entities.Project) (*entities.Resolution, error)
}

// CompileRequest describes one javac invocation
type CompileRequest struct {
	SourceDirs   []string
	ResourceDirs []string
	OutputDir    string
	Classpath    entities.Classpath
	Release      int
	Encoding     string
	JavaHome     string
	ExtraArgs    []string
}

// Compiler compiles Java sources and copies resources into the output directory
type Compiler interface {
	Compile(ctx context.Context, req CompileRequest) (*entities.CompileResult, error)
}

// TestRequest describes one test run
type TestRequest struct {
	Classpath     entities.Classpath
	ClassesDir    string
	ReportsDir    string
	JavaHome      string
	JVMArgs       []string
	IncludeTags   []string
	ExcludeTags   []string
	FailIfNoTests bool
	Timeout       time.Duration
}

// TestRunner executes the compiled test suite. A run with failing tests returns the
// report together with an error wrapping entities.ErrTestsFailed.
type TestRunner interface {
	Run(ctx context.Context, req TestRequest) (*entities.TestReport, error)
}

// Assembler merges compiled output and dependency archives into one archive
type Assembler interface {
	Assemble(ctx context.Context, spec entities.AssemblySpec) (*entities.AssemblyReport, error)
}

// DocsRequest describes one javadoc invocation
type DocsRequest struct {
	SourceDirs  []string
	OutputDir   string
	Classpath   entities.Classpath
	Release     int
	Encoding    string
	JavaHome    string
	Title       string
	ArchivePath string // empty skips packaging
}

// DocGenerator produces API documentation
type DocGenerator interface {
	Generate(ctx context.Context, req DocsRequest) (*entities.Artifact, error)
}

// ArchiveInspector reads an existing archive
type ArchiveInspector interface {
	Inspect(ctx context.Context, path string) (*entities.ArchiveInspection, error)
}

// Signer produces detached signatures
type Signer interface {
	SignFile(ctx context.Context, path string) (string, error)
}

// SourceRevision reports the version-control state of the project directory
type SourceRevision interface {
	Revision(dir string) (commit string, dirty bool, err error)
}
