package entities

import (
	"fmt"
	"strings"
)

// Coordinate identifies a Maven artifact: group:artifact:version[:classifier][@type]
type Coordinate struct {
	Group      string
	Artifact   string
	Version    string
	Classifier string
	Type       string
}

// ParseCoordinate parses "group:artifact:version", "group:artifact:version:classifier"
// and an optional "@type" suffix.
func ParseCoordinate(s string) (Coordinate, error) {
	raw := strings.TrimSpace(s)
	var c Coordinate

	if idx := strings.LastIndex(raw, "@"); idx != -1 {
		c.Type = raw[idx+1:]
		raw = raw[:idx]
	}

	parts := strings.Split(raw, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: expected group:artifact:version[:classifier]", s)
	}
	for _, p := range parts {
		if p == "" {
			return Coordinate{}, fmt.Errorf("invalid coordinate %q: empty segment", s)
		}
	}

	c.Group, c.Artifact, c.Version = parts[0], parts[1], parts[2]
	if len(parts) == 4 {
		c.Classifier = parts[3]
	}
	return c, nil
}

// ParseModule parses "group:artifact" (version optional) for exclusions and forced versions.
func ParseModule(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		return Coordinate{Group: parts[0], Artifact: parts[1]}, nil
	}
	return ParseCoordinate(s)
}

// String renders the coordinate in its canonical form
func (c Coordinate) String() string {
	var b strings.Builder
	b.WriteString(c.Group)
	b.WriteByte(':')
	b.WriteString(c.Artifact)
	if c.Version != "" {
		b.WriteByte(':')
		b.WriteString(c.Version)
	}
	if c.Classifier != "" {
		b.WriteByte(':')
		b.WriteString(c.Classifier)
	}
	if c.Type != "" && c.Type != "jar" {
		b.WriteByte('@')
		b.WriteString(c.Type)
	}
	return b.String()
}

// Key identifies the module independent of version
func (c Coordinate) Key() string {
	if c.Classifier != "" {
		return c.Group + ":" + c.Artifact + ":" + c.Classifier
	}
	return c.Group + ":" + c.Artifact
}

// WithVersion returns a copy of the coordinate at another version
func (c Coordinate) WithVersion(version string) Coordinate {
	c.Version = version
	return c
}

// POM returns the coordinate of the artifact's project descriptor
func (c Coordinate) POM() Coordinate {
	return Coordinate{Group: c.Group, Artifact: c.Artifact, Version: c.Version, Type: "pom"}
}

// Extension maps the packaging type to a file extension
func (c Coordinate) Extension() string {
	switch c.Type {
	case "", "jar", "bundle", "maven-plugin", "test-jar":
		return "jar"
	default:
		return c.Type
	}
}

// FileName returns artifact-version[-classifier].ext
func (c Coordinate) FileName() string {
	name := c.Artifact + "-" + c.Version
	if c.Classifier != "" {
		name += "-" + c.Classifier
	}
	return name + "." + c.Extension()
}

// RepositoryPath returns the path of the file in the Maven repository layout
func (c Coordinate) RepositoryPath() string {
	return c.VersionDir() + "/" + c.FileName()
}

// VersionDir returns group/path/artifact/version
func (c Coordinate) VersionDir() string {
	return c.ModuleDir() + "/" + c.Version
}

// ModuleDir returns group/path/artifact
func (c Coordinate) ModuleDir() string {
	return strings.ReplaceAll(c.Group, ".", "/") + "/" + c.Artifact
}

// Exclusion removes a transitive module from the graph. "*" matches anything.
type Exclusion struct {
	Group    string
	Artifact string
}

// Matches reports whether the exclusion applies to the coordinate
func (e Exclusion) Matches(c Coordinate) bool {
	groupOK := e.Group == "*" || e.Group == c.Group
	artifactOK := e.Artifact == "" || e.Artifact == "*" || e.Artifact == c.Artifact
	return groupOK && artifactOK
}

func (e Exclusion) String() string {
	return e.Group + ":" + e.Artifact
}
