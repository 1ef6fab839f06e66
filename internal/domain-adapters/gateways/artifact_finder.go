package gateways

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// releasePattern matches archives and every sidecar the release stage writes next to them
const releasePattern = "*.jar{,.sha256,.sha512,.sbom.json,.provenance.json,.asc}"

// ArtifactFinder provides utilities for locating build outputs
type ArtifactFinder struct{}

// NewArtifactFinder creates a new artifact finder
func NewArtifactFinder() *ArtifactFinder {
	return &ArtifactFinder{}
}

// FindReleaseFiles lists the archives and release sidecars directly inside outputDir
func (f *ArtifactFinder) FindReleaseFiles(outputDir string) ([]string, error) {
	return f.FindByGlob(outputDir, releasePattern)
}

// FindByGlob returns the files under dir matching a doublestar pattern, sorted
func (f *ArtifactFinder) FindByGlob(dir, pattern string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("output directory does not exist: %s", dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern: %s", pattern)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob pattern %s: %w", pattern, err)
	}

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		full := filepath.Join(dir, filepath.FromSlash(m))
		if fi, err := os.Stat(full); err == nil && !fi.IsDir() {
			paths = append(paths, full)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
