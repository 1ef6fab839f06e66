package gateways

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

type jarEntry struct {
	name    string
	content string
	store   bool
}

func writeTestJar(t *testing.T, path string, entries []jarEntry) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))

	//nolint:gosec // G304: path is test temp file
	f, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	for _, e := range entries {
		method := zip.Deflate
		if e.store || strings.HasSuffix(e.name, "/") {
			method = zip.Store
		}
		entry, err := w.CreateHeader(&zip.FileHeader{Name: e.name, Method: method})
		require.NoError(t, err)
		if !strings.HasSuffix(e.name, "/") {
			_, err = entry.Write([]byte(e.content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
}

type archiveEntry struct {
	name    string
	content string
	method  uint16
	file    *zip.File
}

func readArchive(t *testing.T, path string) []archiveEntry {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	//nolint:errcheck // Defer close on read-only file
	defer r.Close()

	entries := make([]archiveEntry, 0, len(r.File))
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		entries = append(entries, archiveEntry{name: f.Name, content: string(data), method: f.Method, file: f})
	}
	return entries
}

func entryMap(entries []archiveEntry) map[string]archiveEntry {
	m := make(map[string]archiveEntry, len(entries))
	for _, e := range entries {
		m[e.name] = e
	}
	return m
}

func hmsManifest() *entities.JavaManifest {
	return &entities.JavaManifest{Main: map[string]string{
		"Manifest-Version":       "1.0",
		"Main-Class":             "sc2002.HMSApp",
		"Implementation-Version": "1.0.0",
	}}
}

// assemblyFixture lays out compiled classes and two dependency jars that overlap with them
type assemblyFixture struct {
	classes string
	deps    []entities.ResolvedDependency
}

func newAssemblyFixture(t *testing.T) *assemblyFixture {
	t.Helper()
	root := t.TempDir()

	classes := filepath.Join(root, "classes")
	writeTree(t, classes, map[string]string{
		"sc2002/HMSApp.class":     "app-main",
		"sc2002/model/User.class": "app-user",
		"config.properties":       "owner=app",
		"notes/readme.txt":        "internal notes",
	})

	csvJar := filepath.Join(root, "repo", "commons-csv-1.9.0.jar")
	writeTestJar(t, csvJar, []jarEntry{
		{name: "META-INF/"},
		{name: "META-INF/MANIFEST.MF", content: "Manifest-Version: 1.0\r\nMain-Class: org.apache.Other\r\n"},
		{name: "META-INF/APACHE.SF", content: "signature"},
		{name: "META-INF/APACHE.RSA", content: "signature block"},
		{name: "META-INF/services/org.example.Plugin.SF", content: "not a signature"},
		{name: "org/", store: true},
		{name: "org/apache/commons/csv/CSVParser.class", content: "csv-parser"},
		{name: "org/apache/commons/csv/Stored.class", content: "stored-bytes", store: true},
		{name: "config.properties", content: "owner=csv"},
		{name: "LICENSE.txt", content: "apache"},
	})

	bcryptJar := filepath.Join(root, "repo", "jbcrypt-0.4.jar")
	writeTestJar(t, bcryptJar, []jarEntry{
		{name: "org/mindrot/jbcrypt/BCrypt.class", content: "bcrypt"},
		{name: "config.properties", content: "owner=bcrypt"},
		{name: "META-INF/DSA.DSA", content: "sig"},
	})

	return &assemblyFixture{
		classes: classes,
		deps: []entities.ResolvedDependency{
			{
				Coordinate: entities.Coordinate{Group: "org.apache.commons", Artifact: "commons-csv", Version: "1.9.0"},
				Scope:      entities.ScopeCompile,
				Path:       csvJar,
			},
			{
				Coordinate: entities.Coordinate{Group: "org.mindrot", Artifact: "jbcrypt", Version: "0.4"},
				Scope:      entities.ScopeRuntime,
				Path:       bcryptJar,
			},
		},
	}
}

func (f *assemblyFixture) spec(output string) entities.AssemblySpec {
	return entities.AssemblySpec{
		OutputPath:   output,
		ContentDirs:  []string{f.classes},
		Dependencies: f.deps,
		Manifest:     hmsManifest(),
	}
}

func TestJarAssembler_ManifestAndEntryPoint(t *testing.T) {
	fixture := newAssemblyFixture(t)
	output := filepath.Join(t.TempDir(), "libs", "HMS.jar")

	report, err := NewJarAssembler(nil, nil).Assemble(context.Background(), fixture.spec(output))
	require.NoError(t, err)

	assert.Equal(t, entities.ArtifactTypeFatJar, report.Artifact.Type)
	assert.Equal(t, "HMS", report.Artifact.Name)
	assert.Equal(t, "1.0.0", report.Artifact.Version)
	assert.Equal(t, 3, report.Sources)

	info, err := os.Stat(output)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), report.Artifact.Size)

	sum, err := NewChecksumVerifier().CalculateChecksum(output)
	require.NoError(t, err)
	assert.Equal(t, sum, report.Artifact.SHA256)

	entries := readArchive(t, output)
	require.GreaterOrEqual(t, len(entries), 2)
	assert.Equal(t, "META-INF/", entries[0].name)
	assert.Equal(t, entities.ManifestPath, entries[1].name)
	assert.Contains(t, entries[1].content, "Main-Class: sc2002.HMSApp\r\n")
	assert.NotContains(t, entries[1].content, "org.apache.Other")
	assert.Equal(t, report.Entries, len(entries))

	manifests := 0
	for _, e := range entries {
		if strings.EqualFold(e.name, entities.ManifestPath) {
			manifests++
		}
	}
	assert.Equal(t, 1, manifests, "exactly one manifest")

	// directories come before files
	seenFile := false
	for _, e := range entries[2:] {
		if strings.HasSuffix(e.name, "/") {
			assert.False(t, seenFile, "directory %s written after a file", e.name)
		} else {
			seenFile = true
		}
	}
}

func TestJarAssembler_FirstSeenWins(t *testing.T) {
	fixture := newAssemblyFixture(t)
	output := filepath.Join(t.TempDir(), "app.jar")

	report, err := NewJarAssembler(nil, nil).Assemble(context.Background(), fixture.spec(output))
	require.NoError(t, err)

	entries := entryMap(readArchive(t, output))
	assert.Equal(t, "owner=app", entries["config.properties"].content)
	assert.Equal(t, "app-main", entries["sc2002/HMSApp.class"].content)
	assert.Equal(t, "csv-parser", entries["org/apache/commons/csv/CSVParser.class"].content)
	assert.Equal(t, "bcrypt", entries["org/mindrot/jbcrypt/BCrypt.class"].content)

	require.Len(t, report.Duplicates, 2)
	assert.Equal(t, entities.DuplicateEntry{
		Path:        "config.properties",
		KeptFrom:    fixture.classes,
		SkippedFrom: "org.apache.commons:commons-csv:1.9.0",
	}, report.Duplicates[0])
	assert.Equal(t, "org.mindrot:jbcrypt:0.4", report.Duplicates[1].SkippedFrom)
}

func TestJarAssembler_DependencyOrderDecidesDuplicates(t *testing.T) {
	fixture := newAssemblyFixture(t)
	spec := fixture.spec(filepath.Join(t.TempDir(), "app.jar"))
	spec.ContentDirs = nil
	spec.Dependencies = []entities.ResolvedDependency{fixture.deps[1], fixture.deps[0]}

	_, err := NewJarAssembler(nil, nil).Assemble(context.Background(), spec)
	require.NoError(t, err)

	entries := entryMap(readArchive(t, spec.OutputPath))
	assert.Equal(t, "owner=bcrypt", entries["config.properties"].content)
}

func TestJarAssembler_Reproducible(t *testing.T) {
	fixture := newAssemblyFixture(t)
	dir := t.TempDir()
	assembler := NewJarAssembler(nil, nil)

	first, err := assembler.Assemble(context.Background(), fixture.spec(filepath.Join(dir, "first.jar")))
	require.NoError(t, err)
	second, err := assembler.Assemble(context.Background(), fixture.spec(filepath.Join(dir, "second.jar")))
	require.NoError(t, err)

	assert.Equal(t, first.Artifact.SHA256, second.Artifact.SHA256)

	//nolint:gosec // G304: test file path
	a, err := os.ReadFile(first.Artifact.Path)
	require.NoError(t, err)
	//nolint:gosec // G304: test file path
	b, err := os.ReadFile(second.Artifact.Path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b), "archives differ")

	// rebuilding in place replaces the file with identical bytes
	again, err := assembler.Assemble(context.Background(), fixture.spec(filepath.Join(dir, "first.jar")))
	require.NoError(t, err)
	assert.Equal(t, first.Artifact.SHA256, again.Artifact.SHA256)

	for _, e := range readArchive(t, first.Artifact.Path) {
		assert.True(t, e.file.Modified.Equal(ReproducibleTimestamp), "%s modified %v", e.name, e.file.Modified)
	}
}

func TestJarAssembler_SignaturesDropped(t *testing.T) {
	fixture := newAssemblyFixture(t)
	output := filepath.Join(t.TempDir(), "app.jar")

	_, err := NewJarAssembler(nil, nil).Assemble(context.Background(), fixture.spec(output))
	require.NoError(t, err)

	entries := entryMap(readArchive(t, output))
	assert.NotContains(t, entries, "META-INF/APACHE.SF")
	assert.NotContains(t, entries, "META-INF/APACHE.RSA")
	assert.NotContains(t, entries, "META-INF/DSA.DSA")
	assert.Contains(t, entries, "META-INF/services/org.example.Plugin.SF")
}

func TestJarAssembler_Exclude(t *testing.T) {
	fixture := newAssemblyFixture(t)
	spec := fixture.spec(filepath.Join(t.TempDir(), "app.jar"))
	spec.Exclude = []string{"**/*.txt", "notes/**"}

	report, err := NewJarAssembler(nil, nil).Assemble(context.Background(), spec)
	require.NoError(t, err)

	entries := entryMap(readArchive(t, spec.OutputPath))
	assert.NotContains(t, entries, "LICENSE.txt")
	assert.NotContains(t, entries, "notes/readme.txt")
	assert.NotContains(t, entries, "notes/")
	assert.Equal(t, 2, report.Excluded)
}

func TestJarAssembler_InvalidExclude(t *testing.T) {
	fixture := newAssemblyFixture(t)
	spec := fixture.spec(filepath.Join(t.TempDir(), "app.jar"))
	spec.Exclude = []string{"[unterminated"}

	_, err := NewJarAssembler(nil, nil).Assemble(context.Background(), spec)
	assert.Error(t, err)
	assert.NoFileExists(t, spec.OutputPath)
}

func TestJarAssembler_RawCopyKeepsMethod(t *testing.T) {
	fixture := newAssemblyFixture(t)
	output := filepath.Join(t.TempDir(), "app.jar")

	_, err := NewJarAssembler(nil, nil).Assemble(context.Background(), fixture.spec(output))
	require.NoError(t, err)

	entries := entryMap(readArchive(t, output))
	stored := entries["org/apache/commons/csv/Stored.class"]
	assert.Equal(t, zip.Store, stored.method)
	assert.Equal(t, "stored-bytes", stored.content)
	assert.Equal(t, zip.Deflate, entries["org/apache/commons/csv/CSVParser.class"].method)
}

func TestJarAssembler_RawCopyKeepsUTF8Names(t *testing.T) {
	fixture := newAssemblyFixture(t)
	i18nJar := filepath.Join(t.TempDir(), "i18n-1.0.jar")
	writeTestJar(t, i18nJar, []jarEntry{
		{name: "messages/données_été.properties", content: "greeting=bonjour"},
		{name: "messages/stored_ü.txt", content: "stored", store: true},
	})
	fixture.deps = append(fixture.deps, entities.ResolvedDependency{
		Coordinate: entities.Coordinate{Group: "org.example", Artifact: "i18n", Version: "1.0"},
		Scope:      entities.ScopeCompile,
		Path:       i18nJar,
	})
	output := filepath.Join(t.TempDir(), "app.jar")

	_, err := NewJarAssembler(nil, nil).Assemble(context.Background(), fixture.spec(output))
	require.NoError(t, err)

	entries := entryMap(readArchive(t, output))
	for _, name := range []string{"messages/données_été.properties", "messages/stored_ü.txt"} {
		entry, ok := entries[name]
		require.True(t, ok, name)
		assert.NotZero(t, entry.file.Flags&0x800, "%s lost the UTF-8 flag", name)
		assert.Zero(t, entry.file.Flags&0x8, "%s declares a data descriptor", name)
	}
	assert.Equal(t, "greeting=bonjour", entries["messages/données_été.properties"].content)
}

func TestJarAssembler_LibraryWithoutManifest(t *testing.T) {
	fixture := newAssemblyFixture(t)
	spec := fixture.spec(filepath.Join(t.TempDir(), "lib.jar"))
	spec.Manifest = &entities.JavaManifest{Main: map[string]string{"Manifest-Version": "1.0"}}

	report, err := NewJarAssembler(nil, nil).Assemble(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, entities.ArtifactTypeJar, report.Artifact.Type)
}

func TestJarAssembler_MissingDependency(t *testing.T) {
	fixture := newAssemblyFixture(t)
	spec := fixture.spec(filepath.Join(t.TempDir(), "app.jar"))
	spec.Dependencies = append(spec.Dependencies, entities.ResolvedDependency{
		Coordinate: entities.Coordinate{Group: "g", Artifact: "missing", Version: "1"},
		Path:       filepath.Join(t.TempDir(), "missing.jar"),
	})

	_, err := NewJarAssembler(nil, nil).Assemble(context.Background(), spec)
	assert.Error(t, err)
	assert.NoFileExists(t, spec.OutputPath)
}

func TestJarAssembler_Cancelled(t *testing.T) {
	fixture := newAssemblyFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewJarAssembler(nil, nil).Assemble(ctx, fixture.spec(filepath.Join(t.TempDir(), "app.jar")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsSignatureFile(t *testing.T) {
	tests := map[string]bool{
		"META-INF/BC.SF":       true,
		"META-INF/bc.rsa":      true,
		"META-INF/KEY.EC":      true,
		"meta-inf/KEY.DSA":     true,
		"META-INF/MANIFEST.MF": false,
		"META-INF/sub/KEY.SF":  false,
		"org/example/KEY.SF":   false,
		"META-INF/LICENSE":     false,
	}
	for name, want := range tests {
		if got := isSignatureFile(name); got != want {
			t.Errorf("isSignatureFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestDosDateTime(t *testing.T) {
	date, clock := dosDateTime(ReproducibleTimestamp)
	if date != 65 || clock != 0 {
		t.Errorf("dosDateTime() = (%d, %d), want (65, 0)", date, clock)
	}
}
