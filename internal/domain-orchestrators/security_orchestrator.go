package orchestrators

import (
	"context"
	"fmt"
	"time"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/interfaces/services"
)

// UpdateChecker looks up newer releases of declared dependencies
type UpdateChecker interface {
	CheckUpdates(ctx context.Context, deps []entities.Dependency, includeUnstable bool) ([]entities.VersionUpdate, error)
}

// SecurityOrchestrator coordinates the dependency audit and update checks
// Following Clean Architecture: orchestrators coordinate services for complex use cases
type SecurityOrchestrator struct {
	securityService services.SecurityService
	updates         UpdateChecker
	logger          interfaces.Logger
}

// NewSecurityOrchestrator creates a new security orchestrator. updates may be nil when
// only auditing is needed.
func NewSecurityOrchestrator(securityService services.SecurityService, updates UpdateChecker, logger interfaces.Logger) *SecurityOrchestrator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &SecurityOrchestrator{
		securityService: securityService,
		updates:         updates,
		logger:          logger,
	}
}

// SecurityWorkflowResult contains the audit results for a resolution
type SecurityWorkflowResult struct {
	SecurityReport   *entities.SecurityReport
	HighSeverity     []entities.Vulnerability
	WorkflowDuration time.Duration
	Blocked          bool
	BlockReason      string
}

// AuditResolution queries every resolved dependency for known vulnerabilities and decides
// whether the findings reach blockSeverity. A partially completed scan returns the
// result together with the error.
func (o *SecurityOrchestrator) AuditResolution(ctx context.Context, resolution *entities.Resolution, blockSeverity string) (*SecurityWorkflowResult, error) {
	startTime := time.Now()
	result := &SecurityWorkflowResult{}

	var deps []entities.ResolvedDependency
	if resolution != nil {
		deps = resolution.Dependencies
	}

	report, scanErr := o.securityService.AuditDependencies(ctx, deps)
	if report == nil {
		return nil, fmt.Errorf("vulnerability scan failed: %w", scanErr)
	}
	result.SecurityReport = report
	result.HighSeverity = o.GetHighSeverityVulnerabilities(report)

	if o.securityService.ShouldBlockBuild(report, blockSeverity) {
		result.Blocked = true
		result.BlockReason = o.determineBlockReason(report, blockSeverity)
	}

	result.WorkflowDuration = time.Since(startTime)
	o.logger.Info("dependency audit finished",
		interfaces.F("scanned", report.Scanned),
		interfaces.F("vulnerabilities", len(report.Vulnerabilities)),
		interfaces.F("score", report.Score),
		interfaces.F(interfaces.FieldDuration, result.WorkflowDuration.Round(time.Millisecond)))

	if scanErr != nil {
		return result, scanErr
	}
	return result, nil
}

// CheckOutdated compares declared dependency versions with the latest published releases
func (o *SecurityOrchestrator) CheckOutdated(ctx context.Context, project *entities.Project, includeUnstable bool) ([]entities.VersionUpdate, error) {
	if o.updates == nil {
		return nil, fmt.Errorf("no update checker configured")
	}
	updates, err := o.updates.CheckUpdates(ctx, project.Dependencies, includeUnstable)
	if err != nil && updates == nil {
		return nil, fmt.Errorf("failed to check for updates: %w", err)
	}
	return updates, err
}

// determineBlockReason analyzes the security report to determine why the build was blocked
func (o *SecurityOrchestrator) determineBlockReason(report *entities.SecurityReport, blockSeverity string) string {
	if blockSeverity == "" {
		blockSeverity = "CRITICAL"
	}
	blocking := o.securityService.FilterVulnerabilities(report.Vulnerabilities, blockSeverity)

	if len(blocking) > 0 {
		first := blocking[0]
		return fmt.Sprintf("Build blocked: %d vulnerabilities at or above %s (first: %s in %s)",
			len(blocking), blockSeverity, first.ID, first.Component)
	}

	return "Build blocked: Security requirements not met"
}

// GetHighSeverityVulnerabilities returns vulnerabilities of HIGH or CRITICAL severity
func (o *SecurityOrchestrator) GetHighSeverityVulnerabilities(report *entities.SecurityReport) []entities.Vulnerability {
	return o.securityService.FilterVulnerabilities(report.Vulnerabilities, "HIGH")
}

// GetSecuritySummary generates a human-readable security summary
func (o *SecurityOrchestrator) GetSecuritySummary(result *SecurityWorkflowResult) string {
	if result.Blocked {
		return fmt.Sprintf("🚫 BLOCKED: %s", result.BlockReason)
	}

	summary := fmt.Sprintf("✅ PASSED: Security score %.1f/10.0\n", result.SecurityReport.Score)
	summary += fmt.Sprintf("   Dependencies scanned: %d\n", result.SecurityReport.Scanned)
	summary += fmt.Sprintf("   Vulnerabilities: %d total, %d high or critical\n",
		len(result.SecurityReport.Vulnerabilities), len(result.HighSeverity))
	summary += fmt.Sprintf("   Duration: %v", result.WorkflowDuration.Round(time.Millisecond))

	return summary
}
