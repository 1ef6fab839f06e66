package gateways

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/external-adapters/gpg"
)

func TestNewCompositeSecurityGatewayWithDeps(t *testing.T) {
	osv := NewOSVGateway("")
	sbom := NewSBOMGenerator("test")
	checksum := NewChecksumVerifier()
	verifier := NewGPGVerifier()

	gateway := NewCompositeSecurityGatewayWithDeps(osv, sbom, checksum, verifier)

	composite, ok := gateway.(*compositeSecurityGateway)
	if !ok {
		t.Fatal("Gateway is not of type *compositeSecurityGateway")
	}
	if composite.osvGateway != osv {
		t.Error("osvGateway not set correctly")
	}
	if composite.sbomGenerator != sbom {
		t.Error("sbomGenerator not set correctly")
	}
	if composite.checksumVerifier != checksum {
		t.Error("checksumVerifier not set correctly")
	}
	if composite.gpgVerifier != verifier {
		t.Error("gpgVerifier not set correctly")
	}
}

func TestCompositeGateway_ScanDependency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(osvLog4jResponse))
	}))
	defer server.Close()

	gateway := NewCompositeSecurityGateway(server.URL, "test")
	coord := entities.Coordinate{Group: "org.apache.logging.log4j", Artifact: "log4j-core", Version: "2.14.1"}

	report, err := gateway.ScanDependency(context.Background(), coord)
	if err != nil {
		t.Fatalf("ScanDependency() error = %v", err)
	}
	if len(report.Vulnerabilities) != 3 {
		t.Errorf("len(Vulnerabilities) = %d, want 3", len(report.Vulnerabilities))
	}
}

func TestCompositeGateway_VerifyChecksum(t *testing.T) {
	gateway := NewCompositeSecurityGateway("", "test")

	path := filepath.Join(t.TempDir(), "app.jar")
	if err := os.WriteFile(path, []byte("Hello, World!"), 0o600); err != nil {
		t.Fatal(err)
	}

	good := "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f"
	if err := gateway.VerifyChecksum(context.Background(), path, good); err != nil {
		t.Errorf("VerifyChecksum() error = %v", err)
	}

	err := gateway.VerifyChecksum(context.Background(), path, strings.Repeat("0", 64))
	if !errors.Is(err, entities.ErrChecksumMismatch) {
		t.Errorf("VerifyChecksum() error = %v, want ErrChecksumMismatch", err)
	}

	if err := gateway.VerifyChecksum(context.Background(), "/nonexistent/file", good); err == nil {
		t.Error("VerifyChecksum() expected error for missing file")
	}
}

func TestCompositeGateway_VerifySignature_NoKeys(t *testing.T) {
	gateway := NewCompositeSecurityGateway("", "test")

	err := gateway.VerifySignature(context.Background(), "/tmp/app.jar", "/tmp/app.jar.asc")
	if !errors.Is(err, gpg.ErrNoKeys) {
		t.Errorf("VerifySignature() error = %v, want ErrNoKeys", err)
	}
}

func TestCompositeGateway_VerifySignature_Cancelled(t *testing.T) {
	gateway := NewCompositeSecurityGateway("", "test")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := gateway.VerifySignature(ctx, "/tmp/app.jar", "/tmp/app.jar.asc")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("VerifySignature() error = %v, want context.Canceled", err)
	}
}

func TestCompositeGateway_ImportKeyFromFile_Missing(t *testing.T) {
	gateway := NewCompositeSecurityGateway("", "test")

	if err := gateway.ImportKeyFromFile(filepath.Join(t.TempDir(), "missing.asc")); err == nil {
		t.Error("ImportKeyFromFile() expected error for missing key file")
	}
}

func TestCompositeGateway_GenerateSBOM(t *testing.T) {
	gateway := NewCompositeSecurityGateway("", "1.2.3")

	path := filepath.Join(t.TempDir(), "hms.jar")
	if err := os.WriteFile(path, []byte("jar"), 0o600); err != nil {
		t.Fatal(err)
	}
	artifact := &entities.Artifact{
		Name:    "hms",
		Version: "1.0.0",
		Path:    path,
		Type:    entities.ArtifactTypeFatJar,
		SHA256:  strings.Repeat("a", 64),
	}
	deps := []entities.ResolvedDependency{
		{
			Coordinate: entities.Coordinate{Group: "org.apache.poi", Artifact: "poi", Version: "5.2.3"},
			Scope:      entities.ScopeCompile,
			Depth:      1,
		},
	}

	sbom, err := gateway.GenerateSBOM(context.Background(), artifact, deps)
	if err != nil {
		t.Fatalf("GenerateSBOM() error = %v", err)
	}
	if len(sbom.Components) != 1 {
		t.Fatalf("len(Components) = %d, want 1", len(sbom.Components))
	}
	if sbom.Components[0].PURL != "pkg:maven/org.apache.poi/poi@5.2.3" {
		t.Errorf("PURL = %s, want pkg:maven/org.apache.poi/poi@5.2.3", sbom.Components[0].PURL)
	}
}
