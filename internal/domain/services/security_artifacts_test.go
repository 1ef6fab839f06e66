package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
)

func writeArchiveFixture(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

// Test SHA256 generation
func TestSecurityArtifactsService_GenerateSHA256(t *testing.T) {
	service := NewSecurityArtifactsService(&interfaces.NoOpLogger{})
	testFile := writeArchiveFixture(t, "hms-1.0.0.jar", []byte("test content for sha256"))

	checksumPath, err := service.GenerateSHA256(testFile)
	if err != nil {
		t.Fatalf("GenerateSHA256 failed: %v", err)
	}

	if checksumPath != testFile+".sha256" {
		t.Errorf("GenerateSHA256() path = %s, want %s", checksumPath, testFile+".sha256")
	}

	//nolint:gosec // G304: checksumPath is test output file
	content, err := os.ReadFile(checksumPath)
	if err != nil {
		t.Fatalf("Failed to read checksum file: %v", err)
	}

	contentStr := string(content)
	if !strings.Contains(contentStr, "hms-1.0.0.jar") {
		t.Errorf("Checksum file should contain filename, got: %s", contentStr)
	}

	parts := strings.Fields(contentStr)
	if len(parts) < 1 || len(parts[0]) != 64 {
		t.Errorf("Invalid SHA256 hash format: %s", contentStr)
	}
}

// Test SHA512 generation
func TestSecurityArtifactsService_GenerateSHA512(t *testing.T) {
	service := NewSecurityArtifactsService(&interfaces.NoOpLogger{})
	testFile := writeArchiveFixture(t, "hms-1.0.0.jar", []byte("test content for sha512"))

	checksumPath, err := service.GenerateSHA512(testFile)
	if err != nil {
		t.Fatalf("GenerateSHA512 failed: %v", err)
	}

	//nolint:gosec // G304: checksumPath is test output file
	content, err := os.ReadFile(checksumPath)
	if err != nil {
		t.Fatalf("Failed to read checksum file: %v", err)
	}

	parts := strings.Fields(string(content))
	if len(parts) < 1 || len(parts[0]) != 128 {
		t.Errorf("Invalid SHA512 hash format: %s", content)
	}
}

func TestComputeDigests_KnownValue(t *testing.T) {
	testFile := writeArchiveFixture(t, "empty.jar", nil)

	digests, err := ComputeDigests(testFile)
	if err != nil {
		t.Fatalf("ComputeDigests() error = %v", err)
	}

	const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if digests.SHA256 != emptySHA256 {
		t.Errorf("ComputeDigests().SHA256 = %s, want %s", digests.SHA256, emptySHA256)
	}
	if !strings.HasPrefix(digests.SHA512, "cf83e1357eefb8bd") {
		t.Errorf("ComputeDigests().SHA512 = %s, want empty-input digest", digests.SHA512)
	}
}

// Test SBOM rendering
func TestSecurityArtifactsService_WriteSBOM(t *testing.T) {
	service := NewSecurityArtifactsService(&interfaces.NoOpLogger{})
	testFile := writeArchiveFixture(t, "hms-1.0.0.jar", []byte("jar"))

	sbom := &entities.SBOM{
		BOMFormat:   "CycloneDX",
		SpecVersion: "1.5",
		Version:     1,
		Metadata: entities.Metadata{
			Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			Tools:     []entities.Tool{{Name: "cauldron", Version: "dev"}},
			Component: entities.Component{Type: "application", Name: "hms", Version: "1.0.0"},
		},
		Components: []entities.Component{
			{
				Type:    "library",
				Group:   "org.apache.commons",
				Name:    "commons-csv",
				Version: "1.9.0",
				PURL:    "pkg:maven/org.apache.commons/commons-csv@1.9.0",
				Scope:   "required",
				Hashes:  []entities.Hash{{Algorithm: "SHA-256", Value: "abc"}},
			},
		},
	}

	sbomPath, err := service.WriteSBOM(testFile, sbom)
	if err != nil {
		t.Fatalf("WriteSBOM failed: %v", err)
	}

	//nolint:gosec // G304: sbomPath is test output file
	data, err := os.ReadFile(sbomPath)
	if err != nil {
		t.Fatalf("Failed to read SBOM: %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("SBOM is not valid JSON: %v", err)
	}

	if doc["bomFormat"] != "CycloneDX" {
		t.Errorf("bomFormat = %v, want CycloneDX", doc["bomFormat"])
	}

	components, ok := doc["components"].([]interface{})
	if !ok || len(components) != 1 {
		t.Fatalf("components = %v, want one entry", doc["components"])
	}

	component := components[0].(map[string]interface{})
	if component["purl"] != "pkg:maven/org.apache.commons/commons-csv@1.9.0" {
		t.Errorf("purl = %v", component["purl"])
	}

	metadata := doc["metadata"].(map[string]interface{})
	if metadata["timestamp"] != "2024-01-02T03:04:05Z" {
		t.Errorf("timestamp = %v", metadata["timestamp"])
	}
}

// Test provenance rendering
func TestSecurityArtifactsService_WriteProvenance(t *testing.T) {
	service := NewSecurityArtifactsService(&interfaces.NoOpLogger{})
	testFile := writeArchiveFixture(t, "hms-1.0.0.jar", []byte("jar"))

	provenance := &entities.Provenance{
		Subject: entities.ProvenanceSubject{
			Name:   "hms-1.0.0.jar",
			Size:   3,
			Digest: entities.DigestSet{SHA256: "aa", SHA512: "bb"},
		},
		Builder:   "https://github.com/ochairo/cauldron@dev",
		BuildType: "https://github.com/ochairo/cauldron/fat-jar@v1",
		Metadata: entities.BuildMetadata{
			BuildID:      "1234",
			SourceCommit: "0123456789abcdef",
			JavaRelease:  21,
			Reproducible: true,
		},
		Materials: []entities.Material{
			{URI: "pkg:maven/com.google.guava/guava@31.1-jre", SHA256: "cc"},
		},
	}

	provenancePath, err := service.WriteProvenance(testFile, provenance)
	if err != nil {
		t.Fatalf("WriteProvenance failed: %v", err)
	}

	//nolint:gosec // G304: provenancePath is test output file
	data, err := os.ReadFile(provenancePath)
	if err != nil {
		t.Fatalf("Failed to read provenance: %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Provenance is not valid JSON: %v", err)
	}

	if doc["predicateType"] != "https://slsa.dev/provenance/v0.2" {
		t.Errorf("predicateType = %v", doc["predicateType"])
	}

	subjects := doc["subject"].([]interface{})
	digest := subjects[0].(map[string]interface{})["digest"].(map[string]interface{})
	if digest["sha256"] != "aa" || digest["sha512"] != "bb" {
		t.Errorf("subject digest = %v", digest)
	}

	predicate := doc["predicate"].(map[string]interface{})
	invocation := predicate["invocation"].(map[string]interface{})
	if _, ok := invocation["configSource"]; !ok {
		t.Error("configSource should be present when a commit is known")
	}

	materials := predicate["materials"].([]interface{})
	if len(materials) != 1 {
		t.Errorf("materials = %v, want one entry", materials)
	}
}

// Test GenerateAllArtifacts
func TestSecurityArtifactsService_GenerateAllArtifacts(t *testing.T) {
	service := NewSecurityArtifactsService(&interfaces.NoOpLogger{})
	testFile := writeArchiveFixture(t, "hms-1.0.0.jar", []byte("comprehensive test content"))

	artifacts, err := service.GenerateAllArtifacts(context.Background(), testFile,
		&entities.SBOM{BOMFormat: "CycloneDX", SpecVersion: "1.5", Version: 1},
		&entities.Provenance{Builder: "test"})
	if err != nil {
		t.Fatalf("GenerateAllArtifacts failed: %v", err)
	}

	if len(artifacts.Paths()) != 4 {
		t.Errorf("GenerateAllArtifacts() wrote %d files, want 4", len(artifacts.Paths()))
	}

	for _, path := range artifacts.Paths() {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("Artifact file does not exist: %s", path)
		}
	}
}

func TestSecurityArtifactsService_GenerateAllArtifacts_ChecksumsOnly(t *testing.T) {
	service := NewSecurityArtifactsService(nil)
	testFile := writeArchiveFixture(t, "lib-1.0.0.jar", []byte("library"))

	artifacts, err := service.GenerateAllArtifacts(context.Background(), testFile, nil, nil)
	if err != nil {
		t.Fatalf("GenerateAllArtifacts failed: %v", err)
	}

	if artifacts.SBOMPath != "" || artifacts.ProvenancePath != "" {
		t.Errorf("GenerateAllArtifacts() without inputs should only write checksums, got %+v", artifacts)
	}
}

// Test error handling for nonexistent file
func TestSecurityArtifactsService_NonexistentFile(t *testing.T) {
	service := NewSecurityArtifactsService(&interfaces.NoOpLogger{})

	if _, err := service.GenerateSHA256("/nonexistent/file.jar"); err == nil {
		t.Error("Expected error for nonexistent file, got nil")
	}

	if _, err := service.GenerateAllArtifacts(context.Background(), "/nonexistent/file.jar", nil, nil); err == nil {
		t.Error("Expected error for nonexistent file, got nil")
	}
}

// Test hash determinism (same content should produce same hash)
func TestSecurityArtifactsService_HashDeterminism(t *testing.T) {
	content := []byte("deterministic content")
	a := writeArchiveFixture(t, "a.jar", content)
	b := writeArchiveFixture(t, "b.jar", content)

	da, err := ComputeDigests(a)
	if err != nil {
		t.Fatalf("ComputeDigests() error = %v", err)
	}
	db, err := ComputeDigests(b)
	if err != nil {
		t.Fatalf("ComputeDigests() error = %v", err)
	}

	if da != db {
		t.Errorf("ComputeDigests() differs for identical content: %v vs %v", da, db)
	}
}
