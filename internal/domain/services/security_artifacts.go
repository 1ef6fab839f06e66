package services

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
)

// SecurityArtifactsService handles generation of release sidecar files
type SecurityArtifactsService struct {
	logger interfaces.Logger
}

// NewSecurityArtifactsService creates a new security artifacts service
func NewSecurityArtifactsService(logger interfaces.Logger) *SecurityArtifactsService {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &SecurityArtifactsService{logger: logger}
}

// SecurityArtifacts represents all sidecar files written for an archive
type SecurityArtifacts struct {
	SHA256Path     string
	SHA512Path     string
	SBOMPath       string
	ProvenancePath string
}

// Paths lists the files that were written
func (a *SecurityArtifacts) Paths() []string {
	var paths []string
	for _, p := range []string{a.SHA256Path, a.SHA512Path, a.SBOMPath, a.ProvenancePath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// GenerateAllArtifacts writes checksums, and the SBOM and provenance when provided.
// SBOM and provenance failures are logged and do not fail the release.
func (s *SecurityArtifactsService) GenerateAllArtifacts(_ context.Context, archivePath string, sbom *entities.SBOM, provenance *entities.Provenance) (*SecurityArtifacts, error) {
	artifacts := &SecurityArtifacts{}

	s.logger.Debug("generating checksums", interfaces.F(interfaces.FieldPath, archivePath))
	sha256Path, err := s.GenerateSHA256(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to generate SHA256: %w", err)
	}
	artifacts.SHA256Path = sha256Path

	sha512Path, err := s.GenerateSHA512(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to generate SHA512: %w", err)
	}
	artifacts.SHA512Path = sha512Path

	if sbom != nil {
		sbomPath, err := s.WriteSBOM(archivePath, sbom)
		if err != nil {
			s.logger.Warn("SBOM generation failed", interfaces.Err(err))
		} else {
			artifacts.SBOMPath = sbomPath
		}
	}

	if provenance != nil {
		provenancePath, err := s.WriteProvenance(archivePath, provenance)
		if err != nil {
			s.logger.Warn("provenance generation failed", interfaces.Err(err))
		} else {
			artifacts.ProvenancePath = provenancePath
		}
	}

	return artifacts, nil
}

// GenerateSHA256 generates SHA256 checksum file
func (s *SecurityArtifactsService) GenerateSHA256(filePath string) (string, error) {
	digests, err := ComputeDigests(filePath)
	if err != nil {
		return "", err
	}
	return writeChecksumFile(filePath, ".sha256", digests.SHA256)
}

// GenerateSHA512 generates SHA512 checksum file
func (s *SecurityArtifactsService) GenerateSHA512(filePath string) (string, error) {
	digests, err := ComputeDigests(filePath)
	if err != nil {
		return "", err
	}
	return writeChecksumFile(filePath, ".sha512", digests.SHA512)
}

func writeChecksumFile(filePath, ext, sum string) (string, error) {
	checksumPath := filePath + ext
	content := fmt.Sprintf("%s  %s\n", sum, filepath.Base(filePath))

	if err := os.WriteFile(checksumPath, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", ext, err)
	}

	return checksumPath, nil
}

// ComputeDigests hashes a file once for every supported algorithm
func ComputeDigests(filePath string) (entities.DigestSet, error) {
	//nolint:gosec // G304: filePath is function parameter for checksum generation
	f, err := os.Open(filePath)
	if err != nil {
		return entities.DigestSet{}, err
	}
	//nolint:errcheck // Defer close
	defer f.Close()

	h256, h512 := sha256.New(), sha512.New()
	if _, err := io.Copy(io.MultiWriter(h256, h512), f); err != nil {
		return entities.DigestSet{}, fmt.Errorf("failed to hash file: %w", err)
	}

	return entities.DigestSet{
		SHA256: hexSum(h256),
		SHA512: hexSum(h512),
	}, nil
}

func hexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

type cdxDocument struct {
	BOMFormat   string         `json:"bomFormat"`
	SpecVersion string         `json:"specVersion"`
	Version     int            `json:"version"`
	Metadata    cdxMetadata    `json:"metadata"`
	Components  []cdxComponent `json:"components"`
}

type cdxMetadata struct {
	Timestamp string       `json:"timestamp"`
	Tools     []cdxTool    `json:"tools,omitempty"`
	Component cdxComponent `json:"component"`
}

type cdxTool struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type cdxComponent struct {
	Type    string    `json:"type"`
	Group   string    `json:"group,omitempty"`
	Name    string    `json:"name"`
	Version string    `json:"version,omitempty"`
	PURL    string    `json:"purl,omitempty"`
	Scope   string    `json:"scope,omitempty"`
	Hashes  []cdxHash `json:"hashes,omitempty"`
}

type cdxHash struct {
	Alg     string `json:"alg"`
	Content string `json:"content"`
}

func toCDXComponent(c entities.Component) cdxComponent {
	out := cdxComponent{
		Type:    c.Type,
		Group:   c.Group,
		Name:    c.Name,
		Version: c.Version,
		PURL:    c.PURL,
		Scope:   c.Scope,
	}
	for _, h := range c.Hashes {
		out.Hashes = append(out.Hashes, cdxHash{Alg: h.Algorithm, Content: h.Value})
	}
	return out
}

// WriteSBOM writes a CycloneDX JSON document next to the archive
func (s *SecurityArtifactsService) WriteSBOM(archivePath string, sbom *entities.SBOM) (string, error) {
	doc := cdxDocument{
		BOMFormat:   sbom.BOMFormat,
		SpecVersion: sbom.SpecVersion,
		Version:     sbom.Version,
		Metadata: cdxMetadata{
			Timestamp: sbom.Metadata.Timestamp.UTC().Format(time.RFC3339),
			Component: toCDXComponent(sbom.Metadata.Component),
		},
		Components: make([]cdxComponent, 0, len(sbom.Components)),
	}
	for _, tool := range sbom.Metadata.Tools {
		doc.Metadata.Tools = append(doc.Metadata.Tools, cdxTool{Name: tool.Name, Version: tool.Version})
	}
	for _, c := range sbom.Components {
		doc.Components = append(doc.Components, toCDXComponent(c))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal SBOM: %w", err)
	}

	sbomPath := archivePath + ".sbom.json"
	if err := os.WriteFile(sbomPath, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write SBOM file: %w", err)
	}

	return sbomPath, nil
}

// WriteProvenance writes an in-toto statement with an SLSA provenance predicate
func (s *SecurityArtifactsService) WriteProvenance(archivePath string, p *entities.Provenance) (string, error) {
	materials := make([]map[string]interface{}, 0, len(p.Materials))
	for _, m := range p.Materials {
		material := map[string]interface{}{"uri": m.URI}
		if m.SHA256 != "" {
			material["digest"] = map[string]string{"sha256": m.SHA256}
		}
		materials = append(materials, material)
	}

	provenance := map[string]interface{}{
		"_type": "https://in-toto.io/Statement/v0.1",
		"subject": []map[string]interface{}{
			{
				"name": p.Subject.Name,
				"size": p.Subject.Size,
				"digest": map[string]string{
					"sha256": p.Subject.Digest.SHA256,
					"sha512": p.Subject.Digest.SHA512,
				},
			},
		},
		"predicateType": "https://slsa.dev/provenance/v0.2",
		"predicate": map[string]interface{}{
			"builder": map[string]string{
				"id": p.Builder,
			},
			"buildType": p.BuildType,
			"invocation": map[string]interface{}{
				"parameters": map[string]interface{}{
					"javaRelease": p.Metadata.JavaRelease,
				},
			},
			"metadata": map[string]interface{}{
				"buildInvocationId": p.Metadata.BuildID,
				"buildStartedOn":    p.Metadata.BuildStarted.UTC().Format(time.RFC3339),
				"buildFinishedOn":   p.Metadata.BuildFinished.UTC().Format(time.RFC3339),
				"completeness": map[string]bool{
					"parameters":  true,
					"environment": false,
					"materials":   true,
				},
				"reproducible": p.Metadata.Reproducible,
			},
			"materials": materials,
		},
	}

	if p.Metadata.SourceCommit != "" {
		provenance["predicate"].(map[string]interface{})["invocation"].(map[string]interface{})["configSource"] = map[string]interface{}{
			"digest": map[string]string{"sha1": p.Metadata.SourceCommit},
			"dirty":  p.Metadata.SourceDirty,
		}
	}

	data, err := json.MarshalIndent(provenance, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal provenance: %w", err)
	}

	provenancePath := archivePath + ".provenance.json"
	if err := os.WriteFile(provenancePath, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write provenance file: %w", err)
	}

	return provenancePath, nil
}
