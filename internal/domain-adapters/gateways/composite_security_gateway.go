package gateways

import (
	"context"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
)

// compositeSecurityGateway implements the SecurityGateway interface by composing
// the individual security gateways
type compositeSecurityGateway struct {
	osvGateway       *osvGateway
	sbomGenerator    *sbomGenerator
	checksumVerifier *checksumVerifier
	gpgVerifier      *gpgVerifier
}

// NewCompositeSecurityGateway creates a composite security gateway. osvURL may be empty.
func NewCompositeSecurityGateway(osvURL, toolVersion string) gateways.SecurityGateway {
	return &compositeSecurityGateway{
		osvGateway:       NewOSVGateway(osvURL),
		sbomGenerator:    NewSBOMGenerator(toolVersion),
		checksumVerifier: NewChecksumVerifier(),
		gpgVerifier:      NewGPGVerifier(),
	}
}

// NewCompositeSecurityGatewayWithDeps creates a composite gateway with custom dependencies
func NewCompositeSecurityGatewayWithDeps(
	osv *osvGateway,
	sbom *sbomGenerator,
	checksum *checksumVerifier,
	gpg *gpgVerifier,
) gateways.SecurityGateway {
	return &compositeSecurityGateway{
		osvGateway:       osv,
		sbomGenerator:    sbom,
		checksumVerifier: checksum,
		gpgVerifier:      gpg,
	}
}

// ScanDependency queries OSV for one module version
func (c *compositeSecurityGateway) ScanDependency(ctx context.Context, coord entities.Coordinate) (*entities.SecurityReport, error) {
	return c.osvGateway.ScanDependency(ctx, coord)
}

// GenerateSBOM generates a Software Bill of Materials
func (c *compositeSecurityGateway) GenerateSBOM(ctx context.Context, artifact *entities.Artifact, deps []entities.ResolvedDependency) (*entities.SBOM, error) {
	return c.sbomGenerator.GenerateSBOM(ctx, artifact, deps)
}

// VerifyChecksum verifies a file's SHA256 checksum
func (c *compositeSecurityGateway) VerifyChecksum(ctx context.Context, filePath, expectedSum string) error {
	return c.checksumVerifier.VerifyChecksum(ctx, filePath, expectedSum)
}

// VerifySignature verifies a detached GPG signature
func (c *compositeSecurityGateway) VerifySignature(ctx context.Context, filePath, sigPath string) error {
	return c.gpgVerifier.VerifySignature(ctx, filePath, sigPath)
}

// ImportKeyFromFile imports a public key used by VerifySignature
func (c *compositeSecurityGateway) ImportKeyFromFile(keyPath string) error {
	return c.gpgVerifier.ImportKeyFromFile(keyPath)
}

// ImportKeysFromURL imports a published KEYS file
func (c *compositeSecurityGateway) ImportKeysFromURL(ctx context.Context, keysURL string) error {
	return c.gpgVerifier.ImportKeysFromURL(ctx, keysURL)
}
