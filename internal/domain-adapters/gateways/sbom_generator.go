package gateways

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/anchore/packageurl-go"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

const purlQualifierClassifier = "classifier"

// sbomGenerator describes a fat archive as a CycloneDX bill of materials listing every bundled library
type sbomGenerator struct {
	toolVersion string
	checksum    *checksumVerifier
}

// NewSBOMGenerator creates a new SBOM generator gateway
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewSBOMGenerator(toolVersion string) *sbomGenerator {
	return &sbomGenerator{toolVersion: toolVersion, checksum: NewChecksumVerifier()}
}

// GenerateSBOM lists the archive itself as the application and each bundled dependency as a library.
// Dependencies outside the runtime classpath are left out because they are not in the archive.
func (g *sbomGenerator) GenerateSBOM(_ context.Context, artifact *entities.Artifact, deps []entities.ResolvedDependency) (*entities.SBOM, error) {
	if artifact == nil {
		return nil, fmt.Errorf("artifact cannot be nil")
	}
	if artifact.Path == "" {
		return nil, fmt.Errorf("artifact path cannot be empty")
	}
	if _, err := os.Stat(artifact.Path); err != nil {
		return nil, fmt.Errorf("artifact path does not exist: %w", err)
	}

	hash := artifact.SHA256
	if hash == "" {
		var err error
		if hash, err = g.checksum.CalculateChecksum(artifact.Path); err != nil {
			return nil, fmt.Errorf("failed to calculate artifact hash: %w", err)
		}
	}

	components := make([]entities.Component, 0, len(deps))
	for _, dep := range deps {
		if !dep.Scope.InArchive() || dep.Coordinate.Type == "pom" {
			continue
		}
		components = append(components, dependencyComponent(dep))
	}
	sort.SliceStable(components, func(i, j int) bool {
		return components[i].PURL < components[j].PURL
	})

	return &entities.SBOM{
		BOMFormat:   "CycloneDX",
		SpecVersion: "1.5",
		Version:     1,
		Components:  components,
		Metadata: entities.Metadata{
			Timestamp: time.Now(),
			Tools: []entities.Tool{
				{
					Name:    "cauldron",
					Version: g.toolVersion,
				},
			},
			Component: entities.Component{
				Type:    "application",
				Name:    artifact.Name,
				Version: artifact.Version,
				Hashes:  []entities.Hash{{Algorithm: "SHA-256", Value: hash}},
			},
		},
	}, nil
}

func dependencyComponent(dep entities.ResolvedDependency) entities.Component {
	c := dep.Coordinate
	component := entities.Component{
		Type:    "library",
		Group:   c.Group,
		Name:    c.Artifact,
		Version: c.Version,
		PURL:    MavenPURL(c),
		Scope:   "required",
	}
	if dep.SHA1 != "" {
		component.Hashes = append(component.Hashes, entities.Hash{Algorithm: "SHA-1", Value: dep.SHA1})
	}
	if dep.SHA256 != "" {
		component.Hashes = append(component.Hashes, entities.Hash{Algorithm: "SHA-256", Value: dep.SHA256})
	}
	return component
}

// MavenPURL returns the package URL of a Maven coordinate, e.g. pkg:maven/org.mindrot/jbcrypt@0.4
func MavenPURL(c entities.Coordinate) string {
	var qualifiers packageurl.Qualifiers
	if c.Classifier != "" {
		qualifiers = append(qualifiers, packageurl.Qualifier{Key: purlQualifierClassifier, Value: c.Classifier})
	}
	return packageurl.NewPackageURL(packageurl.TypeMaven, c.Group, c.Artifact, c.Version, qualifiers, "").ToString()
}
