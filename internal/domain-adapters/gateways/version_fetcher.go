package gateways

import (
	"context"
	"fmt"
	"regexp"

	"github.com/blang/semver"
	"github.com/hashicorp/go-multierror"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
	"github.com/ochairo/cauldron/internal/domain/services"
)

// Update kinds reported by ClassifyUpdate
const (
	UpdateMajor = "major"
	UpdateMinor = "minor"
	UpdatePatch = "patch"
	UpdateOther = "other"
)

// VersionFetcher looks up the newest published versions of declared dependencies
type VersionFetcher struct {
	repo    gateways.ArtifactRepository
	logger  interfaces.Logger
	exclude *regexp.Regexp
}

// NewVersionFetcher creates a new version fetcher. Versions matching excludePattern are ignored.
func NewVersionFetcher(repo gateways.ArtifactRepository, excludePattern string, logger interfaces.Logger) (*VersionFetcher, error) {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	vf := &VersionFetcher{repo: repo, logger: logger}
	if excludePattern != "" {
		re, err := regexp.Compile(excludePattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern: %w", err)
		}
		vf.exclude = re
	}
	return vf, nil
}

// FetchLatestVersion returns the newest version of a module listed in maven-metadata.xml
func (vf *VersionFetcher) FetchLatestVersion(ctx context.Context, group, artifact string, includeUnstable bool) (string, error) {
	meta, err := vf.repo.FetchMetadata(ctx, group, artifact)
	if err != nil {
		return "", err
	}

	versions := make([]string, 0, len(meta.Versions))
	for _, v := range meta.Versions {
		if vf.shouldFilterVersion(v) {
			continue
		}
		versions = append(versions, v)
	}

	latest := services.LatestVersion(versions, !includeUnstable)
	if latest == "" && includeUnstable {
		latest = meta.Release
	}
	if latest == "" {
		return "", fmt.Errorf("no usable version published for %s:%s", group, artifact)
	}
	return latest, nil
}

// CheckUpdates compares each declaration with the newest published version. Lookup failures are
// collected; the updates found so far are returned alongside them.
func (vf *VersionFetcher) CheckUpdates(ctx context.Context, deps []entities.Dependency, includeUnstable bool) ([]entities.VersionUpdate, error) {
	var updates []entities.VersionUpdate
	var errs *multierror.Error

	for _, dep := range deps {
		if err := ctx.Err(); err != nil {
			return updates, err
		}
		c := dep.Coordinate
		latest, err := vf.FetchLatestVersion(ctx, c.Group, c.Artifact, includeUnstable)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", c.Key(), err))
			continue
		}
		if services.CompareVersions(latest, c.Version) <= 0 {
			continue
		}
		vf.logger.Debug("newer version available",
			interfaces.F(interfaces.FieldModule, c.Key()),
			interfaces.F("current", c.Version),
			interfaces.F("latest", latest))
		updates = append(updates, entities.VersionUpdate{
			Module:  c.Key(),
			Current: c.Version,
			Latest:  latest,
			Kind:    ClassifyUpdate(c.Version, latest),
			Scope:   dep.Scope,
		})
	}

	return updates, errs.ErrorOrNil()
}

// ClassifyUpdate names the most significant semantic version component that changed
func ClassifyUpdate(current, latest string) string {
	from, errFrom := semver.ParseTolerant(current)
	to, errTo := semver.ParseTolerant(latest)
	if errFrom != nil || errTo != nil {
		return UpdateOther
	}
	switch {
	case to.Major != from.Major:
		return UpdateMajor
	case to.Minor != from.Minor:
		return UpdateMinor
	case to.Patch != from.Patch:
		return UpdatePatch
	default:
		return UpdateOther
	}
}

func (vf *VersionFetcher) shouldFilterVersion(version string) bool {
	return vf.exclude != nil && vf.exclude.MatchString(version)
}
