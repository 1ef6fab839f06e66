// Package entities defines core domain models and data structures.
package entities

// Artifact types produced by a build
const (
	ArtifactTypeFatJar  = "fat-jar"
	ArtifactTypeJar     = "jar"
	ArtifactTypeJavadoc = "javadoc"
)

// Artifact represents a file produced by the build pipeline
type Artifact struct {
	Name    string
	Version string
	Path    string
	Type    string // "fat-jar", "jar", "javadoc"
	Size    int64
	SHA256  string
}
