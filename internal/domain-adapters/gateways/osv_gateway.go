package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

const (
	// DefaultOSVURL is the public OSV query endpoint
	DefaultOSVURL = "https://api.osv.dev/v1/query"

	osvEcosystemMaven = "Maven"
)

// osvGateway queries the OSV database for known vulnerabilities of Maven modules
type osvGateway struct {
	apiURL     string
	httpClient *http.Client
}

// NewOSVGateway creates a new OSV gateway. An empty apiURL selects DefaultOSVURL.
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewOSVGateway(apiURL string) *osvGateway {
	if apiURL == "" {
		apiURL = DefaultOSVURL
	}
	return &osvGateway{
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ScanDependency queries OSV for one module version. OSV names Maven packages "group:artifact".
func (g *osvGateway) ScanDependency(ctx context.Context, coord entities.Coordinate) (*entities.SecurityReport, error) {
	payload := OSVQueryRequest{
		Package: OSVPackage{
			Name:      coord.Key(),
			Ecosystem: osvEcosystemMaven,
		},
		Version: coord.Version,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OSV API request failed: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("OSV API returned HTTP %d for %s: %s", resp.StatusCode, coord, strings.TrimSpace(string(snippet)))
	}

	var osvResp OSVQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&osvResp); err != nil {
		return nil, fmt.Errorf("failed to parse OSV response: %w", err)
	}

	vulnerabilities := make([]entities.Vulnerability, 0, len(osvResp.Vulns))
	for _, vuln := range osvResp.Vulns {
		score := extractCVSS(vuln)
		description := vuln.Summary
		if description == "" {
			description = firstLine(vuln.Details)
		}
		vulnerabilities = append(vulnerabilities, entities.Vulnerability{
			ID:          vuln.ID,
			Severity:    extractSeverity(vuln, score),
			Description: description,
			Score:       score,
			Component:   coord.String(),
			FixedIn:     fixedVersion(vuln, coord.Key()),
		})
	}

	return &entities.SecurityReport{
		Vulnerabilities: vulnerabilities,
		Scanned:         1,
		ScanDate:        time.Now().Format(time.RFC3339),
		Metadata: entities.ScanMetadata{
			Scanner:        "OSV API",
			ScannerVersion: "v1",
		},
	}, nil
}

// extractSeverity prefers the advisory's own rating, then falls back to the numeric score
func extractSeverity(vuln OSVVulnerability, score float64) string {
	if s := strings.ToUpper(strings.TrimSpace(vuln.DatabaseSpecific.Severity)); s != "" {
		if s == "MODERATE" {
			return "MEDIUM"
		}
		return s
	}

	switch {
	case score >= 9.0:
		return "CRITICAL"
	case score >= 7.0:
		return "HIGH"
	case score >= 4.0:
		return "MEDIUM"
	case score > 0:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// extractCVSS returns a numeric score when the advisory publishes one. Vector strings yield 0.
func extractCVSS(vuln OSVVulnerability) float64 {
	for _, sev := range vuln.Severity {
		if score, err := strconv.ParseFloat(strings.TrimSpace(sev.Score), 64); err == nil {
			return score
		}
	}
	return 0
}

// fixedVersion returns the first "fixed" event recorded for the module
func fixedVersion(vuln OSVVulnerability, module string) string {
	for _, affected := range vuln.Affected {
		if affected.Package.Name != "" && affected.Package.Name != module {
			continue
		}
		for _, r := range affected.Ranges {
			for _, event := range r.Events {
				if event.Fixed != "" {
					return event.Fixed
				}
			}
		}
	}
	return ""
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}

// OSV API request/response types

// OSVQueryRequest represents a query to the OSV API for vulnerability information.
type OSVQueryRequest struct {
	Package OSVPackage `json:"package"`
	Version string     `json:"version"`
}

// OSVPackage identifies a software package in a specific ecosystem.
type OSVPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

// OSVQueryResponse contains the vulnerability results from the OSV API.
type OSVQueryResponse struct {
	Vulns []OSVVulnerability `json:"vulns"`
}

// OSVVulnerability represents a single vulnerability from the OSV database.
type OSVVulnerability struct {
	ID               string        `json:"id"`
	Summary          string        `json:"summary"`
	Details          string        `json:"details"`
	Severity         []OSVSeverity `json:"severity,omitempty"`
	Affected         []OSVAffected `json:"affected,omitempty"`
	DatabaseSpecific struct {
		Severity string `json:"severity"`
	} `json:"database_specific"`
}

// OSVSeverity contains severity scoring information for a vulnerability.
type OSVSeverity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

// OSVAffected lists the affected version ranges of one package
type OSVAffected struct {
	Package OSVPackage `json:"package"`
	Ranges  []struct {
		Type   string `json:"type"`
		Events []struct {
			Introduced string `json:"introduced,omitempty"`
			Fixed      string `json:"fixed,omitempty"`
		} `json:"events"`
	} `json:"ranges"`
}
