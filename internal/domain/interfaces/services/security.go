// Package services defines interfaces for domain service contracts.
package services

import (
	"context"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// SecurityService defines the interface for high-level security operations
// Contains business logic for security decisions
type SecurityService interface {
	// High-level security operations
	AuditDependencies(ctx context.Context, deps []entities.ResolvedDependency) (*entities.SecurityReport, error)
	GenerateSBOM(ctx context.Context, artifact *entities.Artifact, deps []entities.ResolvedDependency) (*entities.SBOM, error)

	// Business logic
	CalculateSecurityScore(report *entities.SecurityReport) float64
	FilterVulnerabilities(vulnerabilities []entities.Vulnerability, minSeverity string) []entities.Vulnerability
	ShouldBlockBuild(report *entities.SecurityReport, blockSeverity string) bool
}
