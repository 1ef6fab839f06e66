package gateways

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

const osvLog4jResponse = `{
  "vulns": [
    {
      "id": "GHSA-jfh8-c2jp-5v3q",
      "summary": "Remote code injection in Log4j",
      "database_specific": {"severity": "CRITICAL"},
      "severity": [{"type": "CVSS_V3", "score": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H"}],
      "affected": [
        {
          "package": {"name": "org.apache.logging.log4j:log4j-core", "ecosystem": "Maven"},
          "ranges": [{"type": "ECOSYSTEM", "events": [{"introduced": "2.0-beta9"}, {"fixed": "2.15.0"}]}]
        }
      ]
    },
    {
      "id": "GHSA-p6xc-xr62-6r2g",
      "details": "Denial of service\nwhen a lookup recurses",
      "database_specific": {"severity": "MODERATE"}
    },
    {
      "id": "OSV-2024-1",
      "summary": "Scored issue",
      "severity": [{"type": "CVSS_V3", "score": "7.5"}]
    }
  ]
}`

func TestNewOSVGateway(t *testing.T) {
	if got := NewOSVGateway("").apiURL; got != DefaultOSVURL {
		t.Errorf("apiURL = %s, want %s", got, DefaultOSVURL)
	}
	if got := NewOSVGateway("http://localhost:1234/v1/query").apiURL; got != "http://localhost:1234/v1/query" {
		t.Errorf("apiURL = %s, want override", got)
	}
}

func TestOSVGateway_ScanDependency_VulnerabilitiesFound(t *testing.T) {
	var received OSVQueryRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(osvLog4jResponse))
	}))
	defer server.Close()

	coord := entities.Coordinate{Group: "org.apache.logging.log4j", Artifact: "log4j-core", Version: "2.14.1"}
	report, err := NewOSVGateway(server.URL).ScanDependency(context.Background(), coord)
	if err != nil {
		t.Fatalf("ScanDependency() error = %v", err)
	}

	if received.Package.Name != "org.apache.logging.log4j:log4j-core" {
		t.Errorf("package name = %s, want group:artifact", received.Package.Name)
	}
	if received.Package.Ecosystem != "Maven" {
		t.Errorf("ecosystem = %s, want Maven", received.Package.Ecosystem)
	}
	if received.Version != "2.14.1" {
		t.Errorf("version = %s, want 2.14.1", received.Version)
	}

	if len(report.Vulnerabilities) != 3 {
		t.Fatalf("len(Vulnerabilities) = %d, want 3", len(report.Vulnerabilities))
	}
	if report.Scanned != 1 {
		t.Errorf("Scanned = %d, want 1", report.Scanned)
	}

	first := report.Vulnerabilities[0]
	if first.Severity != "CRITICAL" {
		t.Errorf("Severity = %s, want CRITICAL", first.Severity)
	}
	if first.FixedIn != "2.15.0" {
		t.Errorf("FixedIn = %s, want 2.15.0", first.FixedIn)
	}
	if first.Component != coord.String() {
		t.Errorf("Component = %s, want %s", first.Component, coord.String())
	}

	second := report.Vulnerabilities[1]
	if second.Severity != "MEDIUM" {
		t.Errorf("Severity = %s, want MEDIUM", second.Severity)
	}
	if second.Description != "Denial of service" {
		t.Errorf("Description = %q, want first line of details", second.Description)
	}

	third := report.Vulnerabilities[2]
	if third.Score != 7.5 || third.Severity != "HIGH" {
		t.Errorf("third = (%v, %s), want (7.5, HIGH)", third.Score, third.Severity)
	}
}

func TestOSVGateway_ScanDependency_NoVulnerabilities(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	report, err := NewOSVGateway(server.URL).ScanDependency(context.Background(),
		entities.Coordinate{Group: "org.mindrot", Artifact: "jbcrypt", Version: "0.4"})
	if err != nil {
		t.Fatalf("ScanDependency() error = %v", err)
	}
	if len(report.Vulnerabilities) != 0 {
		t.Errorf("len(Vulnerabilities) = %d, want 0", len(report.Vulnerabilities))
	}
}

func TestOSVGateway_ScanDependency_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewOSVGateway(server.URL).ScanDependency(context.Background(),
		entities.Coordinate{Group: "g", Artifact: "a", Version: "1"})
	if err == nil {
		t.Error("ScanDependency() expected error for HTTP 500")
	}
}

func TestOSVGateway_ScanDependency_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	_, err := NewOSVGateway(server.URL).ScanDependency(context.Background(),
		entities.Coordinate{Group: "g", Artifact: "a", Version: "1"})
	if err == nil {
		t.Error("ScanDependency() expected error for invalid JSON")
	}
}

func TestExtractSeverity(t *testing.T) {
	tests := []struct {
		name  string
		vuln  OSVVulnerability
		score float64
		want  string
	}{
		{name: "critical score", score: 9.8, want: "CRITICAL"},
		{name: "high score", score: 7.0, want: "HIGH"},
		{name: "medium score", score: 5.0, want: "MEDIUM"},
		{name: "low score", score: 1.0, want: "LOW"},
		{name: "no data", want: "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractSeverity(tt.vuln, tt.score); got != tt.want {
				t.Errorf("extractSeverity() = %s, want %s", got, tt.want)
			}
		})
	}
}
