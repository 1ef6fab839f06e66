// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
	"github.com/ochairo/cauldron/internal/domain/interfaces/repositories"
	isvc "github.com/ochairo/cauldron/internal/domain/interfaces/services"
	"github.com/ochairo/cauldron/internal/domain/services"
)

// ReleaseFileFinder lists the release files present in an output directory
type ReleaseFileFinder interface {
	FindReleaseFiles(outputDir string) ([]string, error)
}

// SignerFactory opens the signing key named by the project or tool configuration
type SignerFactory func(keyFile string) (gateways.Signer, error)

// BuildDependencies are the collaborators of a BuildOrchestrator. Signer, Revision,
// Security and SecurityService are optional; features that need them fail when
// requested without them.
type BuildDependencies struct {
	Projects        repositories.ProjectRepository
	Lockfiles       repositories.LockfileRepository
	Resolver        gateways.DependencyResolver
	Compiler        gateways.Compiler
	TestRunner      gateways.TestRunner
	Assembler       gateways.Assembler
	Docs            gateways.DocGenerator
	Finder          ReleaseFileFinder
	Security        *SecurityOrchestrator
	SecurityService isvc.SecurityService
	Signer          SignerFactory
	Revision        gateways.SourceRevision
}

// BuildOrchestratorConfig holds configuration for the orchestrator
type BuildOrchestratorConfig struct {
	ToolVersion string
	// JavaHome overrides java.home of every project
	JavaHome string
	// SigningKey is used when the project enables signing without a key_file
	SigningKey string
	Metrics    interfaces.MetricsRecorder
	Logger     interfaces.Logger
}

// BuildOrchestrator coordinates the build pipeline: resolve, compile, test, assemble,
// docs and release artifacts, strictly in that order
type BuildOrchestrator struct {
	deps        BuildDependencies
	classpaths  *services.ClasspathService
	manifests   *services.ManifestService
	lockfiles   *services.LockfileService
	releases    *services.ReleaseService
	artifacts   *services.SecurityArtifactsService
	toolVersion string
	javaHome    string
	signingKey  string
	metrics     interfaces.MetricsRecorder
	logger      interfaces.Logger
}

// NewBuildOrchestrator creates a new build orchestrator
func NewBuildOrchestrator(deps BuildDependencies, config BuildOrchestratorConfig) *BuildOrchestrator {
	logger := config.Logger
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = interfaces.NoopRecorder{}
	}
	toolVersion := config.ToolVersion
	if toolVersion == "" {
		toolVersion = "dev"
	}

	return &BuildOrchestrator{
		deps:        deps,
		classpaths:  services.NewClasspathService(),
		manifests:   services.NewManifestService(logger),
		lockfiles:   services.NewLockfileService(),
		releases:    services.NewReleaseService(),
		artifacts:   services.NewSecurityArtifactsService(logger),
		toolVersion: toolVersion,
		javaHome:    config.JavaHome,
		signingKey:  config.SigningKey,
		metrics:     metrics,
		logger:      logger,
	}
}

// BuildOptions selects how much of the pipeline runs
type BuildOptions struct {
	Dir string
	// Through is the last stage to run. Empty runs the full pipeline.
	Through   entities.Stage
	SkipTests bool
	SkipDocs  bool
	// Locked fails the build when the resolution differs from cauldron.lock
	Locked bool
	// WriteLock saves cauldron.lock after resolving
	WriteLock bool
	SkipAudit bool
}

// BuildResult contains the result of a build operation
type BuildResult struct {
	Project        *entities.Project
	Resolution     *entities.Resolution
	LockDiff       *entities.LockDiff
	Audit          *SecurityWorkflowResult
	Compile        *entities.CompileResult
	TestCompile    *entities.CompileResult
	Tests          *entities.TestReport
	Assembly       *entities.AssemblyReport
	Javadoc        *entities.Artifact
	Release        *services.SecurityArtifacts
	SignaturePath  string
	Validation     *services.ReleaseValidation
	StageDurations map[entities.Stage]time.Duration
	TotalDuration  time.Duration
	Success        bool
	Error          error
}

var stageOrder = []entities.Stage{
	entities.StageLoad,
	entities.StageResolve,
	entities.StageCompile,
	entities.StageTest,
	entities.StageAssemble,
	entities.StageDocs,
	entities.StageRelease,
}

func stageIndex(s entities.Stage) int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return len(stageOrder) - 1
}

// Build runs the pipeline up to opts.Through. Any failing stage aborts the build; the
// returned error is an *entities.StageError naming that stage.
func (o *BuildOrchestrator) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	startTime := time.Now()
	result := &BuildResult{StageDurations: make(map[entities.Stage]time.Duration)}

	last := stageIndex(opts.Through)
	if opts.Through == "" {
		last = len(stageOrder) - 1
	}
	wants := func(s entities.Stage) bool { return stageIndex(s) <= last }

	err := o.runPipeline(ctx, opts, result, wants)

	result.TotalDuration = time.Since(startTime)
	o.metrics.ObserveBuildDuration(result.TotalDuration)

	if err != nil {
		result.Error = err
		if result.Audit != nil && result.Audit.Blocked {
			o.metrics.IncBuildOutcome(interfaces.OutcomeBlocked)
		} else {
			o.metrics.IncBuildOutcome(interfaces.OutcomeFailed)
		}
		return result, err
	}

	result.Success = true
	o.metrics.IncBuildOutcome(interfaces.OutcomeSuccess)
	o.logger.Info("build finished", interfaces.F(interfaces.FieldDuration, result.TotalDuration.Round(time.Millisecond)))
	return result, nil
}

func (o *BuildOrchestrator) runPipeline(ctx context.Context, opts BuildOptions, result *BuildResult, wants func(entities.Stage) bool) error {
	err := o.stage(ctx, result, entities.StageLoad, func(ctx context.Context) error {
		project, err := o.deps.Projects.LoadProject(ctx, opts.Dir)
		if err != nil {
			return err
		}
		if o.javaHome != "" {
			project.Java.Home = o.javaHome
		}
		result.Project = project
		return nil
	})
	if err != nil {
		return err
	}
	project := result.Project

	if !wants(entities.StageResolve) {
		return nil
	}
	if err := o.stage(ctx, result, entities.StageResolve, func(ctx context.Context) error {
		return o.resolve(ctx, project, opts, result)
	}); err != nil {
		return err
	}

	if !wants(entities.StageCompile) {
		return nil
	}
	if err := o.stage(ctx, result, entities.StageCompile, func(ctx context.Context) error {
		compiled, err := o.deps.Compiler.Compile(ctx, o.mainCompileRequest(project, result.Resolution))
		result.Compile = compiled
		return err
	}); err != nil {
		return err
	}

	if wants(entities.StageTest) {
		switch {
		case opts.SkipTests:
			o.logger.Warn("tests skipped", interfaces.F(interfaces.FieldStage, entities.StageTest))
		case !project.Test.Enabled:
			o.logger.Info("tests disabled by project", interfaces.F(interfaces.FieldStage, entities.StageTest))
		default:
			if err := o.stage(ctx, result, entities.StageTest, func(ctx context.Context) error {
				return o.test(ctx, project, result)
			}); err != nil {
				return err
			}
		}
	}

	if !wants(entities.StageAssemble) {
		return nil
	}
	if err := o.stage(ctx, result, entities.StageAssemble, func(ctx context.Context) error {
		return o.assemble(ctx, project, result)
	}); err != nil {
		return err
	}

	if wants(entities.StageDocs) && project.Docs.Enabled && !opts.SkipDocs {
		if err := o.stage(ctx, result, entities.StageDocs, func(ctx context.Context) error {
			doc, err := o.deps.Docs.Generate(ctx, o.docsRequest(project, result.Resolution))
			result.Javadoc = doc
			return err
		}); err != nil {
			return err
		}
	}

	if !wants(entities.StageRelease) {
		return nil
	}
	return o.stage(ctx, result, entities.StageRelease, func(ctx context.Context) error {
		return o.release(ctx, project, opts, result)
	})
}

// stage runs fn as one named pipeline stage with logging, metrics and error tagging
func (o *BuildOrchestrator) stage(ctx context.Context, result *BuildResult, stage entities.Stage, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return &entities.StageError{Stage: stage, Err: err}
	}

	o.logger.Debug("stage started", interfaces.F(interfaces.FieldStage, stage))
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	result.StageDurations[stage] = elapsed
	o.metrics.ObserveStageDuration(string(stage), elapsed)
	o.metrics.IncStageResult(string(stage), err == nil)

	if err != nil {
		o.logger.Error("stage failed",
			interfaces.F(interfaces.FieldStage, stage),
			interfaces.F(interfaces.FieldDuration, elapsed.Round(time.Millisecond)),
			interfaces.Err(err))
		return &entities.StageError{Stage: stage, Err: err}
	}

	o.logger.Info("stage finished",
		interfaces.F(interfaces.FieldStage, stage),
		interfaces.F(interfaces.FieldDuration, elapsed.Round(time.Millisecond)))
	return nil
}

func (o *BuildOrchestrator) resolve(ctx context.Context, project *entities.Project, opts BuildOptions, result *BuildResult) error {
	resolution, err := o.deps.Resolver.Resolve(ctx, project)
	if err != nil {
		return err
	}
	result.Resolution = resolution

	if opts.Locked {
		lock, err := o.deps.Lockfiles.LoadLockfile(ctx, project.Dir)
		if err != nil {
			return fmt.Errorf("--locked requires a lockfile: %w", err)
		}
		diff := o.lockfiles.Diff(lock, resolution)
		result.LockDiff = &diff
		if err := o.lockfiles.Verify(lock, resolution); err != nil {
			return err
		}
	}

	if opts.WriteLock {
		if err := o.deps.Lockfiles.SaveLockfile(ctx, project.Dir, o.lockfiles.Lock(project, resolution)); err != nil {
			return fmt.Errorf("failed to save lockfile: %w", err)
		}
		o.logger.Info("lockfile written",
			interfaces.F(interfaces.FieldPath, filepath.Join(project.Dir, entities.LockfileName)),
			interfaces.F(interfaces.FieldCount, len(resolution.Dependencies)))
	}

	if project.Audit.Enabled && !opts.SkipAudit {
		if o.deps.Security == nil {
			return fmt.Errorf("audit is enabled but no vulnerability scanner is configured")
		}
		audit, err := o.deps.Security.AuditResolution(ctx, resolution, project.Audit.BlockSeverity)
		result.Audit = audit
		if err != nil {
			return fmt.Errorf("dependency audit failed: %w", err)
		}
		if audit.Blocked {
			return errors.New(audit.BlockReason)
		}
	}
	return nil
}

func (o *BuildOrchestrator) mainCompileRequest(project *entities.Project, resolution *entities.Resolution) gateways.CompileRequest {
	layout := project.Layout()
	return gateways.CompileRequest{
		SourceDirs:   absAll(project, project.Sources.Main),
		ResourceDirs: absAll(project, project.Sources.Resources),
		OutputDir:    layout.ClassesDir,
		Classpath:    o.classpaths.Classpath(resolution, entities.PurposeCompile),
		Release:      project.Java.Release,
		Encoding:     project.Java.Encoding,
		JavaHome:     project.Java.Home,
		ExtraArgs:    project.Java.CompilerArgs,
	}
}

// test compiles the test sources against the main output and runs them. Any failure
// aborts the build before assembly.
func (o *BuildOrchestrator) test(ctx context.Context, project *entities.Project, result *BuildResult) error {
	layout := project.Layout()

	compiled, err := o.deps.Compiler.Compile(ctx, gateways.CompileRequest{
		SourceDirs:   absAll(project, project.Sources.Test),
		ResourceDirs: absAll(project, project.Sources.TestResources),
		OutputDir:    layout.TestClassesDir,
		Classpath:    o.classpaths.Classpath(result.Resolution, entities.PurposeTestCompile, layout.ClassesDir),
		Release:      project.Java.Release,
		Encoding:     project.Java.Encoding,
		JavaHome:     project.Java.Home,
		ExtraArgs:    project.Java.CompilerArgs,
	})
	result.TestCompile = compiled
	if err != nil {
		return fmt.Errorf("failed to compile tests: %w", err)
	}

	if compiled.SourceFiles == 0 {
		if project.Test.FailIfNoTests {
			return fmt.Errorf("%w: no test sources in %v", entities.ErrTestsFailed, project.Sources.Test)
		}
		o.logger.Warn("no test sources, skipping test run")
		return nil
	}

	report, err := o.deps.TestRunner.Run(ctx, gateways.TestRequest{
		Classpath:     o.classpaths.Classpath(result.Resolution, entities.PurposeTestRuntime, layout.TestClassesDir, layout.ClassesDir),
		ClassesDir:    layout.TestClassesDir,
		ReportsDir:    layout.TestResultsDir,
		JavaHome:      project.Java.Home,
		JVMArgs:       project.Test.JVMArgs,
		IncludeTags:   project.Test.IncludeTags,
		ExcludeTags:   project.Test.ExcludeTags,
		FailIfNoTests: project.Test.FailIfNoTests,
		Timeout:       time.Duration(project.Test.TimeoutMinutes) * time.Minute,
	})
	result.Tests = report
	if err != nil {
		return err
	}
	if !report.Passed() {
		return fmt.Errorf("%w: %d failed, %d aborted", entities.ErrTestsFailed, report.Failed, report.Aborted)
	}
	return nil
}

func (o *BuildOrchestrator) assemble(ctx context.Context, project *entities.Project, result *BuildResult) error {
	manifest := o.manifests.NewManifest(project, o.toolVersion)
	if project.Archive.Executable && manifest.MainClass() == "" {
		return entities.ErrNoMainClass
	}

	report, err := o.deps.Assembler.Assemble(ctx, entities.AssemblySpec{
		OutputPath:   project.ArchivePath(),
		ContentDirs:  []string{project.Layout().ClassesDir},
		Dependencies: o.classpaths.ArchiveDependencies(result.Resolution),
		Manifest:     manifest,
		Exclude:      project.Archive.Exclude,
	})
	if err != nil {
		return err
	}
	result.Assembly = report

	if report.Artifact != nil {
		report.Artifact.Name = project.Name
		report.Artifact.Version = project.Version
		o.metrics.ObserveArchiveSize(report.Artifact.Size)
	}
	for _, dup := range report.Duplicates {
		o.logger.Debug("duplicate entry skipped",
			interfaces.F(interfaces.FieldPath, dup.Path),
			interfaces.F("kept", dup.KeptFrom),
			interfaces.F("skipped", dup.SkippedFrom))
	}
	return nil
}

func (o *BuildOrchestrator) docsRequest(project *entities.Project, resolution *entities.Resolution) gateways.DocsRequest {
	req := gateways.DocsRequest{
		SourceDirs: absAll(project, project.Sources.Main),
		OutputDir:  project.Layout().DocsDir,
		Classpath:  o.classpaths.Classpath(resolution, entities.PurposeCompile),
		Release:    project.Java.Release,
		Encoding:   project.Java.Encoding,
		JavaHome:   project.Java.Home,
		Title:      project.Docs.Title,
	}
	if req.Title == "" {
		req.Title = fmt.Sprintf("%s %s API", project.Name, project.Version)
	}
	if project.Docs.Archive {
		req.ArchivePath = filepath.Join(filepath.Dir(project.ArchivePath()), services.JavadocArchiveName(project))
	}
	return req
}

// release writes the requested sidecar files next to the archive, signs it and checks
// that the output directory holds exactly the expected release set
func (o *BuildOrchestrator) release(ctx context.Context, project *entities.Project, opts BuildOptions, result *BuildResult) error {
	archivePath := project.ArchivePath()
	if result.Assembly == nil || result.Assembly.Artifact == nil {
		return fmt.Errorf("no archive to release")
	}

	if project.Release.Any() {
		var sbom *entities.SBOM
		if project.Release.SBOM {
			if o.deps.SecurityService == nil {
				return fmt.Errorf("SBOM requested but no SBOM generator is configured")
			}
			generated, err := o.deps.SecurityService.GenerateSBOM(ctx, result.Assembly.Artifact, o.classpaths.ArchiveDependencies(result.Resolution))
			if err != nil {
				return err
			}
			sbom = generated
		}

		var provenance *entities.Provenance
		if project.Release.Provenance {
			p, err := o.provenance(project, archivePath, result)
			if err != nil {
				return err
			}
			provenance = p
		}

		written, err := o.artifacts.GenerateAllArtifacts(ctx, archivePath, sbom, provenance)
		if err != nil {
			return err
		}
		result.Release = written
	}

	if project.Signing.Enabled {
		sig, err := o.sign(ctx, project, archivePath)
		if err != nil {
			return err
		}
		result.SignaturePath = sig
	}

	if o.deps.Finder == nil {
		return nil
	}
	files, err := o.deps.Finder.FindReleaseFiles(filepath.Dir(archivePath))
	if err != nil {
		return fmt.Errorf("failed to list release files: %w", err)
	}
	if opts.SkipDocs && project.Docs.Enabled && project.Docs.Archive {
		files = append(files, services.JavadocArchiveName(project))
	}

	validation := o.releases.ValidateRelease(project, files)
	result.Validation = validation
	switch validation.Status {
	case services.StatusReady:
		return nil
	case services.StatusUnexpectedJars:
		o.logger.Warn("stale archives in output directory",
			interfaces.F("files", strings.Join(validation.UnexpectedFiles, ", ")))
		return nil
	default:
		return errors.New(validation.ErrorMessage())
	}
}

func (o *BuildOrchestrator) sign(ctx context.Context, project *entities.Project, archivePath string) (string, error) {
	if o.deps.Signer == nil {
		return "", fmt.Errorf("signing is enabled but no signer is configured")
	}
	keyFile := project.Signing.KeyFile
	if keyFile == "" {
		keyFile = o.signingKey
	}
	if keyFile == "" {
		return "", fmt.Errorf("signing is enabled but no key file is configured (signing.key_file or gpg_key)")
	}

	signer, err := o.deps.Signer(project.Abs(keyFile))
	if err != nil {
		return "", fmt.Errorf("failed to load signing key: %w", err)
	}
	return signer.SignFile(ctx, archivePath)
}

func (o *BuildOrchestrator) provenance(project *entities.Project, archivePath string, result *BuildResult) (*entities.Provenance, error) {
	digests, err := services.ComputeDigests(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to digest archive: %w", err)
	}

	metadata := entities.BuildMetadata{
		BuildID:       uuid.NewString(),
		BuildStarted:  time.Now().Add(-sumDurations(result.StageDurations)).UTC(),
		BuildFinished: time.Now().UTC(),
		JavaRelease:   project.Java.Release,
		Reproducible:  true,
	}
	if o.deps.Revision != nil {
		commit, dirty, err := o.deps.Revision.Revision(project.Dir)
		if err != nil {
			o.logger.Warn("unable to read source revision", interfaces.Err(err))
		}
		metadata.SourceCommit = commit
		metadata.SourceDirty = dirty
	}

	provenance := &entities.Provenance{
		Subject: entities.ProvenanceSubject{
			Name:   filepath.Base(archivePath),
			Size:   result.Assembly.Artifact.Size,
			Digest: digests,
		},
		Builder:   "cauldron/" + o.toolVersion,
		BuildType: "https://github.com/ochairo/cauldron/fat-jar@v1",
		Metadata:  metadata,
	}
	for _, dep := range o.classpaths.ArchiveDependencies(result.Resolution) {
		provenance.Materials = append(provenance.Materials, entities.Material{
			URI:    fmt.Sprintf("pkg:maven/%s/%s@%s", dep.Coordinate.Group, dep.Coordinate.Artifact, dep.Coordinate.Version),
			SHA256: dep.SHA256,
		})
	}
	return provenance, nil
}

// GenerateDocs resolves dependencies and runs javadoc without compiling or assembling
func (o *BuildOrchestrator) GenerateDocs(ctx context.Context, dir string) (*BuildResult, error) {
	result, err := o.Build(ctx, BuildOptions{Dir: dir, Through: entities.StageResolve, SkipAudit: true})
	if err != nil {
		return result, err
	}

	err = o.stage(ctx, result, entities.StageDocs, func(ctx context.Context) error {
		doc, err := o.deps.Docs.Generate(ctx, o.docsRequest(result.Project, result.Resolution))
		result.Javadoc = doc
		return err
	})
	if err != nil {
		result.Success = false
		result.Error = err
	}
	return result, err
}

// Clean removes the project's build directory
func (o *BuildOrchestrator) Clean(ctx context.Context, dir string) (string, error) {
	project, err := o.deps.Projects.LoadProject(ctx, dir)
	if err != nil {
		return "", err
	}
	buildDir := project.Layout().BuildDir
	if buildDir == project.Dir || !strings.HasPrefix(buildDir, project.Dir+string(filepath.Separator)) {
		return "", fmt.Errorf("refusing to remove %s: build_dir must be inside the project", buildDir)
	}
	if err := os.RemoveAll(buildDir); err != nil {
		return "", fmt.Errorf("failed to remove %s: %w", buildDir, err)
	}
	return buildDir, nil
}

// GetBuildSummary returns a human-readable summary of the build
func (r *BuildResult) GetBuildSummary() string {
	if !r.Success {
		return fmt.Sprintf("Build failed: %v", r.Error)
	}

	summary := "Build successful!"
	if r.Project != nil {
		summary += fmt.Sprintf("\nProject: %s %s", r.Project.Name, r.Project.Version)
	}
	if r.Resolution != nil {
		summary += fmt.Sprintf("\nDependencies: %d", len(r.Resolution.Dependencies))
	}
	if r.Tests != nil {
		summary += fmt.Sprintf("\nTests: %d passed, %d skipped", r.Tests.Succeeded, r.Tests.Skipped)
	}
	if r.Assembly != nil && r.Assembly.Artifact != nil {
		summary += fmt.Sprintf("\nArchive: %s (%d entries, %d duplicates skipped)",
			r.Assembly.Artifact.Path, r.Assembly.Entries, len(r.Assembly.Duplicates))
	}
	if r.Javadoc != nil {
		summary += fmt.Sprintf("\nJavadoc: %s", r.Javadoc.Path)
	}
	if r.Audit != nil {
		summary += fmt.Sprintf("\n\nSecurity: PASSED (score: %.1f/10.0)", r.Audit.SecurityReport.Score)
	}
	summary += fmt.Sprintf("\nTotal: %v", r.TotalDuration.Round(time.Millisecond))

	return summary
}

func absAll(project *entities.Project, dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, project.Abs(d))
	}
	return out
}

func sumDurations(durations map[entities.Stage]time.Duration) time.Duration {
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total
}
