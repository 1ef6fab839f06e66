package main

import (
	"context"
	"io"
	"os"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ochairo/cauldron/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/cauldron/internal/domain-orchestrators"
	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	igateways "github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
	"github.com/ochairo/cauldron/internal/domain/services"
	"github.com/ochairo/cauldron/internal/external-adapters/git"
	"github.com/ochairo/cauldron/internal/external-adapters/gpg"
	"github.com/ochairo/cauldron/internal/external-adapters/logging"
	"github.com/ochairo/cauldron/internal/external-adapters/metrics"
	"github.com/ochairo/cauldron/internal/external-adapters/yaml"
)

// app carries the wired collaborators of one command invocation
type app struct {
	config   *Config
	dir      string
	out      io.Writer
	logger   *logging.Logger
	recorder *metrics.PrometheusRecorder
	projects *yaml.ProjectRepository
	locks    *yaml.LockfileRepository
	executor *gateways.ToolExecutor
	security igateways.SecurityGateway
}

func newApp(cmd *cobra.Command) (*app, error) {
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return nil, err
	}
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	config, err := LoadConfig(cmd, dir, configFile)
	if err != nil {
		return nil, err
	}
	setColor(config.NoColor)

	logger, err := logging.New(logging.Options{
		Level:  config.LogLevel,
		Format: config.LogFormat,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	var recorder *metrics.PrometheusRecorder
	if config.MetricsFile != "" {
		recorder = metrics.NewPrometheusRecorder(prom.NewRegistry())
	}

	return &app{
		config:   config,
		dir:      dir,
		out:      cmd.OutOrStdout(),
		logger:   logger,
		recorder: recorder,
		projects: yaml.NewProjectRepository(),
		locks:    yaml.NewLockfileRepository(),
		executor: gateways.NewToolExecutor(logger),
		security: gateways.NewSecurityGatewayAdapter(gateways.NewCompositeSecurityGateway(config.OSVURL, version), logger),
	}, nil
}

// metricsRecorder returns the recorder handed to orchestrators and gateways
func (a *app) metricsRecorder() interfaces.MetricsRecorder {
	if a.recorder == nil {
		return interfaces.NoopRecorder{}
	}
	return a.recorder
}

// close flushes the metrics textfile
func (a *app) close() {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.WriteTextfile(a.config.MetricsFile); err != nil {
		a.logger.Warn("failed to write metrics", interfaces.Err(err))
	}
}

// repository builds the artifact client for a project's repositories
func (a *app) repository(project *entities.Project) *gateways.RepositoryClient {
	return gateways.NewRepositoryClient(project.Repositories, gateways.RepositoryClientOptions{
		CacheDir:    a.config.CacheDir,
		Offline:     a.config.Offline || project.Resolution.Offline,
		MaxAttempts: project.Resolution.MaxAttempts,
		UserAgent:   "cauldron/" + version,
		Logger:      a.logger,
		Metrics:     a.metricsRecorder(),
	})
}

// projectResolver resolves against the repositories of whichever project it is given
type projectResolver struct {
	app *app
}

func (r projectResolver) Resolve(ctx context.Context, project *entities.Project) (*entities.Resolution, error) {
	if r.app.config.Parallelism > 0 {
		project.Resolution.Parallelism = r.app.config.Parallelism
	}
	return gateways.NewMavenResolver(r.app.repository(project), r.app.logger).Resolve(ctx, project)
}

func (a *app) securityOrchestrator() *orchestrators.SecurityOrchestrator {
	return orchestrators.NewSecurityOrchestrator(services.NewSecurityService(a.security), nil, a.logger)
}

func (a *app) signerFactory() orchestrators.SignerFactory {
	return func(keyFile string) (igateways.Signer, error) {
		return gpg.NewSigner(keyFile, passphrase())
	}
}

// orchestrator wires the build pipeline. Test launcher output is echoed to echo when not nil.
func (a *app) orchestrator(echo io.Writer) *orchestrators.BuildOrchestrator {
	manifests := services.NewManifestService(a.logger)
	return orchestrators.NewBuildOrchestrator(orchestrators.BuildDependencies{
		Projects:        a.projects,
		Lockfiles:       a.locks,
		Resolver:        projectResolver{app: a},
		Compiler:        gateways.NewJavacCompiler(a.executor, afero.NewOsFs(), a.logger),
		TestRunner:      gateways.NewJUnitRunner(a.executor, echo, a.logger),
		Assembler:       gateways.NewJarAssembler(manifests, a.logger),
		Docs:            gateways.NewJavadocGenerator(a.executor, a.logger),
		Finder:          gateways.NewArtifactFinder(),
		Security:        a.securityOrchestrator(),
		SecurityService: services.NewSecurityService(a.security),
		Signer:          a.signerFactory(),
		Revision:        git.NewRevision(),
	}, orchestrators.BuildOrchestratorConfig{
		ToolVersion: version,
		JavaHome:    a.config.JavaHome,
		SigningKey:  a.config.GPGKey,
		Metrics:     a.metricsRecorder(),
		Logger:      a.logger,
	})
}

// loadProject reads the project of the working directory
func (a *app) loadProject(ctx context.Context) (*entities.Project, error) {
	project, err := a.projects.LoadProject(ctx, a.dir)
	if err != nil {
		return nil, &entities.StageError{Stage: entities.StageLoad, Err: err}
	}
	if a.config.JavaHome != "" {
		project.Java.Home = a.config.JavaHome
	}
	return project, nil
}

// passphrase returns the signing key passphrase from CAULDRON_GPG_PASSPHRASE
func passphrase() []byte {
	if p, ok := os.LookupEnv("CAULDRON_GPG_PASSPHRASE"); ok {
		return []byte(p)
	}
	return nil
}

// runWithApp wires an app for cmd, runs fn and flushes metrics
func runWithApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(cmd.Context(), a)
}
