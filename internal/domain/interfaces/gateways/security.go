// Package gateways defines interfaces for external service adapters.
package gateways

import (
	"context"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// SecurityGateway defines the interface for security operations
type SecurityGateway interface {
	// Vulnerability scanning of a single Maven module
	ScanDependency(ctx context.Context, coord entities.Coordinate) (*entities.SecurityReport, error)

	// SBOM generation for an assembled archive
	GenerateSBOM(ctx context.Context, artifact *entities.Artifact, deps []entities.ResolvedDependency) (*entities.SBOM, error)

	// Verification
	VerifyChecksum(ctx context.Context, filePath, expectedSum string) error
	VerifySignature(ctx context.Context, filePath, sigPath string) error
	ImportKeyFromFile(keyPath string) error
	ImportKeysFromURL(ctx context.Context, keysURL string) error
}
