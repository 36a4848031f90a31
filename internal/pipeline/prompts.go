package pipeline

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// auditSchema constrains the per-excerpt assessment to a severity, a
// one-sentence justification, and an optional remediation.
var auditSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"severity": {
			Type: genai.TypeString,
			Enum: []string{string(SeverityHigh), string(SeverityMedium), string(SeverityLow)},
		},
		"justification":      {Type: genai.TypeString},
		"recommended_action": {Type: genai.TypeString},
	},
	Required: []string{"severity", "justification"},
}

// recommendSchema constrains the synthesis stage to one recommendation
// string plus the overall compliance label.
var recommendSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"recommendation": {Type: genai.TypeString},
		"overall_status": {
			Type: genai.TypeString,
			Enum: []string{string(StatusCompliant), string(StatusNeedsUpdates), string(StatusNonCompliant)},
		},
	},
	Required: []string{"recommendation", "overall_status"},
}

func auditPrompt(policyExcerpt, regulation string) string {
	var b strings.Builder
	b.WriteString("You are a compliance auditor. Compare an internal policy excerpt against a new regulation.\n\n")
	b.WriteString("Policy Excerpt:\n")
	b.WriteString(policyExcerpt)
	b.WriteString("\n\nNew Regulation:\n")
	b.WriteString(regulation)
	b.WriteString("\n\nClassify the divergence severity:\n")
	b.WriteString("- HIGH: the regulation imposes an explicit requirement the policy lacks or contradicts, or the policy permits what the regulation forbids.\n")
	b.WriteString("- MEDIUM: a relevant policy exists but lacks specificity (no deadline, owner, or control cadence) or differs partially in scope.\n")
	b.WriteString("- LOW: the difference is editorial or non-substantive.\n")
	b.WriteString("When two severities are plausible, choose the higher one.\n")
	b.WriteString("Justify briefly in one sentence and suggest a remediation when one applies.\n")
	return b.String()
}

func recommendPrompt(regulation string, risks []Risk) string {
	var b strings.Builder
	b.WriteString("You are a compliance lead. Given the regulation and the flagged risks below, ")
	b.WriteString("write exactly one overall recommendation paragraph and classify overall compliance ")
	b.WriteString("as COMPLIANT, NEEDS_UPDATES, or NON_COMPLIANT.\n\n")
	b.WriteString("New Regulation:\n")
	b.WriteString(regulation)
	b.WriteString("\n\nFlagged Risks:\n")
	for i, r := range risks {
		fmt.Fprintf(&b, "%d. [%s] policy %s: %s\n", i+1, r.Severity, r.PolicyID, r.DivergenceSummary)
	}
	return b.String()
}

// stripCodeFences unwraps a markdown-fenced JSON payload. Structured output
// usually arrives bare, but some responses still fence it.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
