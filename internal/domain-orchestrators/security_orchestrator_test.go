package orchestrators

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

type mockUpdateChecker struct {
	updates []entities.VersionUpdate
	err     error
	stable  bool
}

func (m *mockUpdateChecker) CheckUpdates(_ context.Context, _ []entities.Dependency, includeUnstable bool) ([]entities.VersionUpdate, error) {
	m.stable = !includeUnstable
	return m.updates, m.err
}

func TestSecurityOrchestrator_AuditResolution_Passed(t *testing.T) {
	security := &mockSecurityService{report: &entities.SecurityReport{Score: 9.5}}
	orch := NewSecurityOrchestrator(security, nil, nil)

	result, err := orch.AuditResolution(context.Background(), testResolution(t), "")
	if err != nil {
		t.Fatalf("AuditResolution() error = %v", err)
	}
	if result.Blocked {
		t.Error("Blocked = true, want false")
	}
	if result.SecurityReport.Scanned != 3 {
		t.Errorf("Scanned = %d, want 3", result.SecurityReport.Scanned)
	}

	summary := orch.GetSecuritySummary(result)
	if !strings.Contains(summary, "PASSED") || !strings.Contains(summary, "9.5/10.0") {
		t.Errorf("GetSecuritySummary() = %q", summary)
	}
}

func TestSecurityOrchestrator_AuditResolution_Blocked(t *testing.T) {
	security := &mockSecurityService{
		block: true,
		report: &entities.SecurityReport{Vulnerabilities: []entities.Vulnerability{
			{ID: "GHSA-1234", Severity: "HIGH", Component: "com.example:lib"},
		}},
	}
	orch := NewSecurityOrchestrator(security, nil, nil)

	result, err := orch.AuditResolution(context.Background(), testResolution(t), "HIGH")
	if err != nil {
		t.Fatalf("AuditResolution() error = %v", err)
	}
	if !result.Blocked {
		t.Fatal("Blocked = false, want true")
	}
	for _, want := range []string{"1 vulnerabilities at or above HIGH", "GHSA-1234", "com.example:lib"} {
		if !strings.Contains(result.BlockReason, want) {
			t.Errorf("BlockReason = %q, missing %q", result.BlockReason, want)
		}
	}
	if got := orch.GetSecuritySummary(result); !strings.Contains(got, "BLOCKED") {
		t.Errorf("GetSecuritySummary() = %q, want BLOCKED", got)
	}
}

func TestSecurityOrchestrator_AuditResolution_Partial(t *testing.T) {
	scanErr := errors.New("osv: 503 Service Unavailable")
	security := &mockSecurityService{report: &entities.SecurityReport{}, err: scanErr}
	orch := NewSecurityOrchestrator(security, nil, nil)

	result, err := orch.AuditResolution(context.Background(), testResolution(t), "")
	if !errors.Is(err, scanErr) {
		t.Errorf("AuditResolution() error = %v, want %v", err, scanErr)
	}
	if result == nil {
		t.Fatal("AuditResolution() result = nil for a partial scan")
	}

	security = &mockSecurityService{err: scanErr}
	orch = NewSecurityOrchestrator(security, nil, nil)
	if result, err := orch.AuditResolution(context.Background(), testResolution(t), ""); err == nil || result != nil {
		t.Errorf("AuditResolution() = %v, %v, want nil result and error", result, err)
	}
}

func TestSecurityOrchestrator_CheckOutdated(t *testing.T) {
	checker := &mockUpdateChecker{updates: []entities.VersionUpdate{
		{Module: "org.apache.commons:commons-csv", Current: "1.9.0", Latest: "1.10.0", Kind: "minor"},
	}}
	orch := NewSecurityOrchestrator(&mockSecurityService{}, checker, nil)

	updates, err := orch.CheckOutdated(context.Background(), testProject(t), false)
	if err != nil {
		t.Fatalf("CheckOutdated() error = %v", err)
	}
	if len(updates) != 1 || updates[0].Latest != "1.10.0" {
		t.Errorf("CheckOutdated() = %+v", updates)
	}
	if !checker.stable {
		t.Error("CheckOutdated(includeUnstable=false) asked for unstable versions")
	}

	checker.updates, checker.err = nil, errors.New("offline")
	if _, err := orch.CheckOutdated(context.Background(), testProject(t), true); err == nil {
		t.Error("CheckOutdated() expected error, got nil")
	}

	if _, err := NewSecurityOrchestrator(&mockSecurityService{}, nil, nil).CheckOutdated(context.Background(), testProject(t), false); err == nil {
		t.Error("CheckOutdated() without checker expected error, got nil")
	}
}
