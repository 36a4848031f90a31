package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
)

// Severity classifies one compliance divergence.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// Valid reports whether s is one of the three known levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Status is the overall compliance label of a report.
type Status string

const (
	StatusCompliant    Status = "COMPLIANT"
	StatusNeedsUpdates Status = "NEEDS_UPDATES"
	StatusNonCompliant Status = "NON_COMPLIANT"
)

// Valid reports whether st is one of the three known labels.
func (st Status) Valid() bool {
	switch st {
	case StatusCompliant, StatusNeedsUpdates, StatusNonCompliant:
		return true
	}
	return false
}

// Risk is one identified compliance divergence between an indexed policy
// and the regulation under analysis.
type Risk struct {
	PolicyID                 string   `json:"policy_id"`
	Severity                 Severity `json:"severity"`
	DivergenceSummary        string   `json:"divergence_summary"`
	ConflictingPolicyExcerpt string   `json:"conflicting_policy_excerpt"`
	NewRuleExcerpt           string   `json:"new_rule_excerpt"`
	RecommendedAction        string   `json:"recommended_action,omitempty"`
}

// Report is the final pipeline output. TotalRisksFlagged always equals
// len(Risks), and Risks is never empty for a well-formed request.
type Report struct {
	RegulationID      string `json:"regulation_id"`
	DateProcessed     string `json:"date_processed"`
	TotalRisksFlagged int    `json:"total_risks_flagged"`
	Risks             []Risk `json:"risks"`
	Recommendation    string `json:"recommendation"`
	OverallStatus     Status `json:"overall_status"`
}

// RegulationID derives the deterministic identifier for a regulation:
// hex SHA-256 of "(date or empty)|text". Stable across re-analysis of
// identical inputs, sensitive to any character change in either.
func RegulationID(text, dateOfLaw string) string {
	sum := sha256.Sum256([]byte(dateOfLaw + "|" + text))
	return hex.EncodeToString(sum[:])
}

// truncate bounds a free-text field to max bytes, cutting on a rune
// boundary so truncation never produces invalid UTF-8.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
