package facts

import (
	"strings"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository"
)

// CodeScanningAlert is one open alert as stored in codescanning_summary.
type CodeScanningAlert struct {
	Tool     string `json:"tool"`
	CVE      string `json:"cve"`
	Severity string `json:"severity"`
	URL      string `json:"url"`
}

// CodeScanningSummary aggregates open code scanning alerts.
type CodeScanningSummary struct {
	Counts     map[string]int      `json:"counts"`
	Alerts     []CodeScanningAlert `json:"alerts"`
	UniqueCVEs map[string]string   `json:"unique_cves"`
}

// SummariseCodeScanning ignores fixed alerts, keeps one severity per rule
// (preferring a non-empty one) and counts rules by severity, with missing
// severities counted as UNKNOWN. It returns nil when there are no open alerts.
func SummariseCodeScanning(alerts []repository.CodeScanningAlert) *CodeScanningSummary {
	summary := &CodeScanningSummary{
		Counts:     map[string]int{},
		UniqueCVEs: map[string]string{},
	}
	for _, a := range alerts {
		if a.State == "fixed" {
			continue
		}
		entry := CodeScanningAlert{
			Tool:     a.Tool,
			CVE:      a.RuleID,
			Severity: strings.ToUpper(a.Severity),
			URL:      a.URL,
		}
		summary.Alerts = append(summary.Alerts, entry)

		current, seen := summary.UniqueCVEs[entry.CVE]
		if !seen || (entry.Severity != "" && current == "") {
			summary.UniqueCVEs[entry.CVE] = entry.Severity
		}
	}
	if len(summary.Alerts) == 0 {
		return nil
	}
	for _, severity := range summary.UniqueCVEs {
		if severity == "" {
			severity = "UNKNOWN"
		}
		summary.Counts[severity]++
	}
	return summary
}
