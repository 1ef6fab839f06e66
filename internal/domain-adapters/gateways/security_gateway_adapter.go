// Package gateways provides implementations of domain gateway interfaces.
package gateways

import (
	"context"
	"time"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
)

// SecurityGatewayAdapter logs every call made to a SecurityGateway
type SecurityGatewayAdapter struct {
	logger interfaces.Logger
	next   gateways.SecurityGateway
}

var _ gateways.SecurityGateway = (*SecurityGatewayAdapter)(nil)

// NewSecurityGatewayAdapter wraps next
func NewSecurityGatewayAdapter(next gateways.SecurityGateway, logger interfaces.Logger) *SecurityGatewayAdapter {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &SecurityGatewayAdapter{logger: logger, next: next}
}

// ScanDependency scans one module
func (s *SecurityGatewayAdapter) ScanDependency(ctx context.Context, coord entities.Coordinate) (*entities.SecurityReport, error) {
	start := time.Now()
	report, err := s.next.ScanDependency(ctx, coord)
	if err != nil {
		s.logger.Warn("vulnerability scan failed",
			interfaces.F(interfaces.FieldCoordinate, coord.String()), interfaces.Err(err))
		return nil, err
	}
	s.logger.Debug("vulnerability scan",
		interfaces.F(interfaces.FieldCoordinate, coord.String()),
		interfaces.F("vulnerabilities", len(report.Vulnerabilities)),
		interfaces.F(interfaces.FieldDuration, time.Since(start).Round(time.Millisecond)))
	return report, nil
}

// GenerateSBOM generates Software Bill of Materials
func (s *SecurityGatewayAdapter) GenerateSBOM(ctx context.Context, artifact *entities.Artifact, deps []entities.ResolvedDependency) (*entities.SBOM, error) {
	sbom, err := s.next.GenerateSBOM(ctx, artifact, deps)
	if err != nil {
		return nil, err
	}
	s.logger.Info("SBOM generated",
		interfaces.F(interfaces.FieldPath, artifact.Path),
		interfaces.F("components", len(sbom.Components)))
	return sbom, nil
}

// VerifyChecksum verifies file checksum
func (s *SecurityGatewayAdapter) VerifyChecksum(ctx context.Context, filePath, expectedSum string) error {
	prefix := expectedSum
	if len(prefix) > 16 {
		prefix = prefix[:16] + "..."
	}
	s.logger.Info("verifying checksum",
		interfaces.F(interfaces.FieldPath, filePath),
		interfaces.F("expected", prefix))
	return s.next.VerifyChecksum(ctx, filePath, expectedSum)
}

// VerifySignature verifies a detached GPG signature
func (s *SecurityGatewayAdapter) VerifySignature(ctx context.Context, filePath, sigPath string) error {
	s.logger.Info("verifying GPG signature",
		interfaces.F(interfaces.FieldPath, filePath),
		interfaces.F("signature", sigPath))
	return s.next.VerifySignature(ctx, filePath, sigPath)
}

// ImportKeyFromFile imports a public key
func (s *SecurityGatewayAdapter) ImportKeyFromFile(keyPath string) error {
	s.logger.Debug("importing GPG key", interfaces.F(interfaces.FieldPath, keyPath))
	return s.next.ImportKeyFromFile(keyPath)
}

// ImportKeysFromURL imports the keys published at keysURL
func (s *SecurityGatewayAdapter) ImportKeysFromURL(ctx context.Context, keysURL string) error {
	s.logger.Info("downloading GPG keys", interfaces.F("url", keysURL))
	return s.next.ImportKeysFromURL(ctx, keysURL)
}
