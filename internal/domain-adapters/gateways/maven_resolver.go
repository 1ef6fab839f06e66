package gateways

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
	"github.com/ochairo/cauldron/internal/domain/services"
)

// maxResolutionRounds bounds the select-and-rewalk loop used for version conflicts
const maxResolutionRounds = 32

// MavenResolver resolves a project's dependency graph against Maven repositories
type MavenResolver struct {
	repo     gateways.ArtifactRepository
	poms     *POMLoader
	checksum *checksumVerifier
	logger   interfaces.Logger
}

var _ gateways.DependencyResolver = (*MavenResolver)(nil)

// NewMavenResolver creates a resolver backed by repo
func NewMavenResolver(repo gateways.ArtifactRepository, logger interfaces.Logger) *MavenResolver {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &MavenResolver{
		repo:     repo,
		poms:     NewPOMLoader(repo, logger),
		checksum: NewChecksumVerifier(),
		logger:   logger,
	}
}

// graphNode is one occurrence of a module in the dependency graph
type graphNode struct {
	coord      entities.Coordinate
	scope      entities.Scope
	depth      int
	via        []string
	exclusions []entities.Exclusion
}

// versionRequest is one edge asking for a module version
type versionRequest struct {
	version string
	scope   entities.Scope
}

// graphWalk is what one breadth-first traversal observed
type graphWalk struct {
	order      []string                    // module keys by first occurrence
	first      map[string]graphNode        // nearest occurrence of each module
	scopes     map[string]entities.Scope   // widest scope of each module
	candidates map[string][]versionRequest // requested versions in encounter order
	errs       *multierror.Error
}

// Resolve walks the graph until the selected versions stop changing, then downloads
// every selected jar. The result is ordered by depth and declaration order.
func (r *MavenResolver) Resolve(ctx context.Context, project *entities.Project) (*entities.Resolution, error) {
	start := time.Now()

	roots, err := project.EffectiveDependencies()
	if err != nil {
		return nil, err
	}

	forced := make(map[string]string, len(project.Resolution.Force))
	for _, f := range project.Resolution.Force {
		forced[f.Key()] = f.Version
	}

	strategy := project.Resolution.Strategy
	if strategy == "" {
		strategy = entities.DefaultStrategy
	}

	selected := make(map[string]string)
	var walk *graphWalk
	converged := false
	for round := 0; round < maxResolutionRounds; round++ {
		walk, err = r.walk(ctx, roots, selected)
		if err != nil {
			return nil, err
		}

		next := r.selectVersions(walk, strategy, forced)
		if sameSelection(selected, next) {
			converged = true
			break
		}
		selected = next
	}
	if !converged {
		return nil, fmt.Errorf("dependency versions did not settle after %d rounds", maxResolutionRounds)
	}
	if err := walk.errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("failed to resolve dependency graph: %w", err)
	}

	resolution := &entities.Resolution{Strategy: strategy}
	for _, key := range walk.order {
		node := walk.first[key]
		resolution.Dependencies = append(resolution.Dependencies, entities.ResolvedDependency{
			Coordinate: node.coord.WithVersion(selected[key]),
			Scope:      walk.scopes[key],
			Depth:      node.depth,
			Via:        node.via,
		})
	}

	if err := r.download(ctx, resolution, project.Resolution.Parallelism); err != nil {
		return nil, err
	}

	r.logger.Info("dependencies resolved",
		interfaces.F(interfaces.FieldCount, len(resolution.Dependencies)),
		interfaces.F("strategy", strategy),
		interfaces.F(interfaces.FieldDuration, time.Since(start).Round(time.Millisecond)))

	return resolution, nil
}

// walk performs one breadth-first traversal. Modules already selected are expanded at their
// selected version; new modules at the version first requested.
func (r *MavenResolver) walk(ctx context.Context, roots []entities.Dependency, selected map[string]string) (*graphWalk, error) {
	w := &graphWalk{
		first:      make(map[string]graphNode),
		scopes:     make(map[string]entities.Scope),
		candidates: make(map[string][]versionRequest),
	}

	queue := make([]graphNode, 0, len(roots))
	for _, dep := range roots {
		queue = append(queue, graphNode{
			coord:      dep.Coordinate,
			scope:      dep.Scope,
			depth:      1,
			exclusions: dep.Exclusions,
		})
	}

	expanded := make(map[string]bool)
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		node := queue[0]
		queue = queue[1:]
		key := node.coord.Key()

		w.candidates[key] = append(w.candidates[key], versionRequest{version: node.coord.Version, scope: node.scope})
		if _, seen := w.first[key]; !seen {
			w.order = append(w.order, key)
			w.first[key] = node
			w.scopes[key] = node.scope
		} else if node.scope.Wider(w.scopes[key]) {
			w.scopes[key] = node.scope
		}

		version := node.coord.Version
		if v, ok := selected[key]; ok {
			version = v
		}

		// a module reached under a wider scope is expanded again so its children widen too
		expandKey := key + "|" + string(node.scope)
		if expanded[expandKey] {
			continue
		}
		expanded[expandKey] = true

		if node.coord.Type == "pom" {
			continue
		}

		pom, err := r.poms.Load(ctx, node.coord.WithVersion(version))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			w.errs = multierror.Append(w.errs, err)
			continue
		}

		via := make([]string, len(node.via), len(node.via)+1)
		copy(via, node.via)
		via = append(via, key)

		for _, dep := range pom.Dependencies {
			if dep.Optional {
				continue
			}
			scope, ok := entities.MediateScope(node.scope, dep.Scope)
			if !ok {
				continue
			}
			if excluded(node.exclusions, dep.Coordinate) {
				r.logger.Debug("dependency excluded",
					interfaces.F(interfaces.FieldModule, dep.Coordinate.Key()),
					interfaces.F("via", key))
				continue
			}
			if dep.Coordinate.Version == "" {
				w.errs = multierror.Append(w.errs, fmt.Errorf("%s (via %s): no version declared or managed", dep.Coordinate.Key(), key))
				continue
			}

			exclusions := make([]entities.Exclusion, 0, len(node.exclusions)+len(dep.Exclusions))
			exclusions = append(exclusions, node.exclusions...)
			exclusions = append(exclusions, dep.Exclusions...)

			queue = append(queue, graphNode{
				coord:      dep.Coordinate,
				scope:      scope,
				depth:      node.depth + 1,
				via:        via,
				exclusions: exclusions,
			})
		}
	}

	return w, nil
}

// selectVersions applies force pins and the conflict strategy to what a walk observed.
// Modules bundled in the archive only consider requests from the runtime graph, so test
// dependencies never change what ships.
func (r *MavenResolver) selectVersions(w *graphWalk, strategy string, forced map[string]string) map[string]string {
	selected := make(map[string]string, len(w.candidates))
	for key, requests := range w.candidates {
		versions := requestedVersions(requests, w.scopes[key].InArchive())
		if v, ok := forced[key]; ok {
			selected[key] = v
			continue
		}
		switch strategy {
		case "nearest":
			// breadth-first order puts the nearest, first-declared request first
			selected[key] = versions[0]
		default:
			selected[key] = services.LatestVersion(versions, false)
		}
		if len(versions) > 1 && selected[key] != versions[0] {
			r.logger.Debug("version conflict",
				interfaces.F(interfaces.FieldModule, key),
				interfaces.F("requested", versions),
				interfaces.F("selected", selected[key]))
		}
	}
	return selected
}

func requestedVersions(requests []versionRequest, runtimeOnly bool) []string {
	versions := make([]string, 0, len(requests))
	for _, req := range requests {
		if runtimeOnly && !req.scope.InArchive() {
			continue
		}
		versions = append(versions, req.version)
	}
	return versions
}

func sameSelection(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func excluded(exclusions []entities.Exclusion, coord entities.Coordinate) bool {
	for _, ex := range exclusions {
		if ex.Matches(coord) {
			return true
		}
	}
	return false
}

// download fetches the selected jars with bounded parallelism. Every failure is reported.
func (r *MavenResolver) download(ctx context.Context, resolution *entities.Resolution, parallelism int) error {
	if parallelism <= 0 {
		parallelism = entities.DefaultParallelism
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	var mu sync.Mutex
	var errs *multierror.Error

	for i := range resolution.Dependencies {
		dep := &resolution.Dependencies[i]
		if dep.Coordinate.Type == "pom" {
			continue
		}
		g.Go(func() error {
			fetched, err := r.repo.Fetch(gctx, dep.Coordinate)
			if err == nil {
				dep.Path = fetched.Path
				dep.SHA1 = fetched.SHA1
				dep.SHA256, err = r.checksum.CalculateChecksum(fetched.Path)
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", dep.Coordinate, err))
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("failed to download dependencies: %w", err)
	}
	return nil
}
