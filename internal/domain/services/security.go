// Package services implements domain business logic and use cases.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
	"github.com/ochairo/cauldron/internal/domain/interfaces/services"
)

// securityService implements SecurityService with pure business logic
type securityService struct {
	gateway gateways.SecurityGateway
}

// NewSecurityService creates a new security service with dependency injection
func NewSecurityService(gateway gateways.SecurityGateway) services.SecurityService {
	return &securityService{gateway: gateway}
}

// AuditDependencies queries every bundled or test dependency for known vulnerabilities.
// Failed queries are collected; the partial report is returned alongside the aggregated error.
func (s *securityService) AuditDependencies(ctx context.Context, deps []entities.ResolvedDependency) (*entities.SecurityReport, error) {
	start := time.Now()
	report := &entities.SecurityReport{
		Vulnerabilities: []entities.Vulnerability{},
		ScanDate:        start.UTC().Format(time.RFC3339),
		Metadata: entities.ScanMetadata{
			Scanner:        "OSV API",
			ScannerVersion: "v1",
		},
	}

	var errs *multierror.Error
	for _, dep := range deps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		depReport, err := s.gateway.ScanDependency(ctx, dep.Coordinate)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", dep.Coordinate, err))
			continue
		}
		report.Scanned++
		report.Vulnerabilities = append(report.Vulnerabilities, depReport.Vulnerabilities...)
	}

	report.Score = s.CalculateSecurityScore(report)
	report.Metadata.Duration = time.Since(start).Round(time.Millisecond).String()

	if err := errs.ErrorOrNil(); err != nil {
		return report, fmt.Errorf("security scan incomplete: %w", err)
	}
	return report, nil
}

// GenerateSBOM generates a Software Bill of Materials for an archive
func (s *securityService) GenerateSBOM(ctx context.Context, artifact *entities.Artifact, deps []entities.ResolvedDependency) (*entities.SBOM, error) {
	sbom, err := s.gateway.GenerateSBOM(ctx, artifact, deps)
	if err != nil {
		return nil, fmt.Errorf("SBOM generation failed: %w", err)
	}

	return sbom, nil
}

// CalculateSecurityScore calculates a security score based on vulnerabilities
// Pure business logic - no I/O
func (s *securityService) CalculateSecurityScore(report *entities.SecurityReport) float64 {
	if len(report.Vulnerabilities) == 0 {
		return 10.0
	}

	score := 10.0
	for _, vuln := range report.Vulnerabilities {
		switch vuln.Severity {
		case "CRITICAL":
			score -= 3.0
		case "HIGH":
			score -= 2.0
		case "MEDIUM":
			score -= 1.0
		case "LOW":
			score -= 0.5
		default:
			score -= 0.1
		}
	}

	if score < 0 {
		return 0.0
	}
	return score
}

var severityOrder = map[string]int{
	"CRITICAL": 4,
	"HIGH":     3,
	"MEDIUM":   2,
	"LOW":      1,
	"UNKNOWN":  0,
}

// FilterVulnerabilities filters vulnerabilities by minimum severity
// Pure business logic - no I/O
func (s *securityService) FilterVulnerabilities(vulnerabilities []entities.Vulnerability, minSeverity string) []entities.Vulnerability {
	minLevel := severityOrder[minSeverity]
	filtered := make([]entities.Vulnerability, 0)

	for _, vuln := range vulnerabilities {
		if severityOrder[vuln.Severity] >= minLevel {
			filtered = append(filtered, vuln)
		}
	}

	return filtered
}

// ShouldBlockBuild reports whether any vulnerability reaches blockSeverity.
// An empty blockSeverity means CRITICAL.
func (s *securityService) ShouldBlockBuild(report *entities.SecurityReport, blockSeverity string) bool {
	if report == nil {
		return false
	}
	if blockSeverity == "" {
		blockSeverity = "CRITICAL"
	}
	return len(s.FilterVulnerabilities(report.Vulnerabilities, blockSeverity)) > 0
}
