package gateways

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// mavenFixture is a file:// Maven repository built on disk
type mavenFixture struct {
	t    *testing.T
	root string
}

func newMavenFixture(t *testing.T) *mavenFixture {
	t.Helper()
	return &mavenFixture{t: t, root: t.TempDir()}
}

func (m *mavenFixture) url() string {
	return "file://" + filepath.ToSlash(m.root)
}

func (m *mavenFixture) client() *RepositoryClient {
	return NewRepositoryClient(
		[]entities.Repository{{Name: "fixture", URL: m.url()}},
		RepositoryClientOptions{CacheDir: m.t.TempDir()},
	)
}

func (m *mavenFixture) write(coord entities.Coordinate, content string) {
	m.t.Helper()
	path := filepath.Join(m.root, filepath.FromSlash(coord.RepositoryPath()))
	require.NoError(m.t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(m.t, os.WriteFile(path, []byte(content), 0o600))
}

// module publishes a pom with the given body and, unless the packaging is pom, a jar
func (m *mavenFixture) module(gav string, body string) entities.Coordinate {
	m.t.Helper()
	coord, err := entities.ParseCoordinate(gav)
	require.NoError(m.t, err)

	pom := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>%s</groupId>
  <artifactId>%s</artifactId>
  <version>%s</version>
%s
</project>`, coord.Group, coord.Artifact, coord.Version, body)
	m.write(coord.POM(), pom)

	if !strings.Contains(body, "<packaging>pom</packaging>") {
		m.write(coord, "jar:"+coord.String())
	}
	return coord
}

// deps renders a <dependencies> block from "g:a:v[:scope]" strings
func deps(specs ...string) string {
	var sb strings.Builder
	sb.WriteString("<dependencies>\n")
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		sb.WriteString("  <dependency>")
		fmt.Fprintf(&sb, "<groupId>%s</groupId><artifactId>%s</artifactId>", parts[0], parts[1])
		if len(parts) > 2 && parts[2] != "" {
			fmt.Fprintf(&sb, "<version>%s</version>", parts[2])
		}
		if len(parts) > 3 {
			fmt.Fprintf(&sb, "<scope>%s</scope>", parts[3])
		}
		sb.WriteString("</dependency>\n")
	}
	sb.WriteString("</dependencies>")
	return sb.String()
}
