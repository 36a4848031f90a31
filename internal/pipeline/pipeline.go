// Package pipeline orchestrates the sequential research, audit, and
// recommend stages that turn a regulation text into a compliance report.
//
// The orchestrator never returns a bare error for a well-formed request: a
// failed run degrades to a report carrying a single synthetic system-error
// risk, so the report shape is always intact for callers.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/arcalabs/arca/internal/gemini"
	"github.com/arcalabs/arca/internal/log"
	"github.com/arcalabs/arca/internal/policy"
)

// Default orchestrator tunables.
const (
	DefaultAttempts    = 3
	DefaultMaxMatches  = 5
	DefaultTopK        = 5
	DefaultRiskLimit   = 5
	DefaultMaxFieldLen = 500

	// fingerprintLen is the excerpt prefix compared when deduplicating
	// near-identical research matches.
	fingerprintLen = 120
)

var (
	// ErrEmptyRegulation indicates a request without regulation text.
	ErrEmptyRegulation = errors.New("regulation text is empty")

	// ErrNoPolicies indicates the research stage found nothing to audit,
	// even after the shared-corpus fallback.
	ErrNoPolicies = errors.New("no relevant policies found")

	// errMalformedOutput marks a generation that did not conform to the
	// expected shape. Retried without credential rotation.
	errMalformedOutput = errors.New("generation output did not match expected shape")
)

// Searcher is the retrieval surface the pipeline consumes.
// *policy.Store satisfies it.
type Searcher interface {
	Search(ctx context.Context, query, tenantID string, topK int) ([]policy.Match, error)
}

// Generator is the LLM surface the pipeline consumes. *gemini.Client
// satisfies it; Rotate is the pipeline's attempt-level quota response.
type Generator interface {
	Generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
	Rotate()
}

// Config holds orchestrator tunables. Zero values take the defaults above.
type Config struct {
	Attempts   int
	MaxMatches int
	TopK       int

	// RiskLimit caps the report's risk count. PadRisks additionally pads
	// short reports with LOW filler items up to the limit.
	RiskLimit int
	PadRisks  bool

	// MaxFieldLen truncates every free-text report field.
	MaxFieldLen int
}

// Pipeline runs the three-stage analysis. Safe for concurrent use; each
// Run is an independent invocation sharing only the injected collaborators.
type Pipeline struct {
	searcher  Searcher
	generator Generator
	cfg       Config
	logger    log.Logger
	now       func() time.Time
}

// New creates a Pipeline over the given retrieval and generation surfaces.
func New(searcher Searcher, generator Generator, cfg Config, logger log.Logger) (*Pipeline, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.MaxMatches <= 0 {
		cfg.MaxMatches = DefaultMaxMatches
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.RiskLimit <= 0 {
		cfg.RiskLimit = DefaultRiskLimit
	}
	if cfg.MaxFieldLen <= 0 {
		cfg.MaxFieldLen = DefaultMaxFieldLen
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Pipeline{
		searcher:  searcher,
		generator: generator,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Run analyzes a regulation for one tenant and returns the compliance
// report. Empty regulation text and an empty research result are
// caller-facing validation errors; every other failure mode degrades to a
// synthetic system-error report after the attempt budget is spent.
func (p *Pipeline) Run(ctx context.Context, regulationText, tenantID, dateOfLaw string) (Report, error) {
	text := strings.TrimSpace(regulationText)
	if text == "" {
		return Report{}, ErrEmptyRegulation
	}

	var lastErr error
	for attempt := 1; attempt <= p.cfg.Attempts; attempt++ {
		risks, recommendation, status, err := p.runOnce(ctx, text, tenantID)
		if err == nil {
			return p.finalize(text, dateOfLaw, risks, recommendation, status), nil
		}
		if errors.Is(err, ErrNoPolicies) {
			return Report{}, err
		}
		lastErr = err

		switch {
		case errors.Is(err, errMalformedOutput):
			p.logger.Warn("malformed generation output, retrying",
				"attempt", attempt, "error", err)
		case errors.Is(err, gemini.ErrCredentialsExhausted) || gemini.Classify(err) == gemini.KindRateLimited:
			p.logger.Warn("quota failure, rotating credentials before next attempt",
				"attempt", attempt, "error", err)
			p.generator.Rotate()
		default:
			// Permanent failure; further attempts cannot help.
			p.logger.Error("pipeline attempt failed permanently", "attempt", attempt, "error", err)
			attempt = p.cfg.Attempts
		}

		if ctx.Err() != nil {
			break
		}
	}

	p.logger.Error("pipeline attempts exhausted, degrading to system-error report", "error", lastErr)
	return p.systemErrorReport(text, dateOfLaw, lastErr), nil
}

// runOnce executes one full RESEARCH -> AUDIT -> RECOMMEND pass.
func (p *Pipeline) runOnce(ctx context.Context, text, tenantID string) ([]Risk, string, Status, error) {
	matches, err := p.research(ctx, text, tenantID)
	if err != nil {
		return nil, "", "", err
	}

	risks, err := p.audit(ctx, matches, text)
	if err != nil {
		return nil, "", "", err
	}

	if len(risks) == 0 {
		return []Risk{compliantRisk()}, defaultCompliantRecommendation, StatusCompliant, nil
	}

	recommendation, status, err := p.recommend(ctx, text, risks)
	if err != nil {
		return nil, "", "", err
	}
	return risks, recommendation, status, nil
}

// research retrieves candidate policy excerpts and deduplicates
// near-identical ones by a bounded prefix fingerprint.
func (p *Pipeline) research(ctx context.Context, text, tenantID string) ([]policy.Match, error) {
	matches, err := p.searcher.Search(ctx, text, tenantID, p.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("research stage: %w", err)
	}

	seen := make(map[string]bool, len(matches))
	distinct := make([]policy.Match, 0, len(matches))
	for _, m := range matches {
		fp := fingerprint(m.Content)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		distinct = append(distinct, m)
		if len(distinct) == p.cfg.MaxMatches {
			break
		}
	}

	if len(distinct) == 0 {
		return nil, ErrNoPolicies
	}
	return distinct, nil
}

type auditVerdict struct {
	Severity          string `json:"severity"`
	Justification     string `json:"justification"`
	RecommendedAction string `json:"recommended_action"`
}

// audit classifies each excerpt against the regulation with a structured
// generation call, producing one risk per excerpt in retrieval order.
func (p *Pipeline) audit(ctx context.Context, matches []policy.Match, text string) ([]Risk, error) {
	risks := make([]Risk, 0, len(matches))
	for _, m := range matches {
		raw, err := p.generator.Generate(ctx, auditPrompt(m.Content, text), auditSchema)
		if err != nil {
			return nil, fmt.Errorf("audit stage: %w", err)
		}

		var verdict auditVerdict
		if err := json.Unmarshal([]byte(stripCodeFences(raw)), &verdict); err != nil {
			return nil, fmt.Errorf("audit stage: %w: %w", errMalformedOutput, err)
		}
		sev := Severity(verdict.Severity)
		if !sev.Valid() {
			return nil, fmt.Errorf("audit stage: %w: severity %q", errMalformedOutput, verdict.Severity)
		}

		risks = append(risks, Risk{
			PolicyID:                 m.ID,
			Severity:                 sev,
			DivergenceSummary:        verdict.Justification,
			ConflictingPolicyExcerpt: m.Content,
			NewRuleExcerpt:           text,
			RecommendedAction:        verdict.RecommendedAction,
		})
	}
	return risks, nil
}

type recommendVerdict struct {
	Recommendation string `json:"recommendation"`
	OverallStatus  string `json:"overall_status"`
}

// recommend synthesizes the single overall recommendation and compliance
// label from the full risk list.
func (p *Pipeline) recommend(ctx context.Context, text string, risks []Risk) (string, Status, error) {
	raw, err := p.generator.Generate(ctx, recommendPrompt(text, risks), recommendSchema)
	if err != nil {
		return "", "", fmt.Errorf("recommend stage: %w", err)
	}

	var verdict recommendVerdict
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &verdict); err != nil {
		return "", "", fmt.Errorf("recommend stage: %w: %w", errMalformedOutput, err)
	}
	status := Status(verdict.OverallStatus)
	if !status.Valid() || verdict.Recommendation == "" {
		return "", "", fmt.Errorf("recommend stage: %w: status %q", errMalformedOutput, verdict.OverallStatus)
	}
	return verdict.Recommendation, status, nil
}

// finalize normalizes the risk list and assembles the report: clamp to
// RiskLimit, optionally pad, truncate every free-text field, and keep
// TotalRisksFlagged equal to len(Risks).
func (p *Pipeline) finalize(text, dateOfLaw string, risks []Risk, recommendation string, status Status) Report {
	if len(risks) > p.cfg.RiskLimit {
		risks = risks[:p.cfg.RiskLimit]
	}
	if p.cfg.PadRisks {
		for len(risks) < p.cfg.RiskLimit {
			risks = append(risks, Risk{
				PolicyID:          "padding",
				Severity:          SeverityLow,
				DivergenceSummary: "No additional divergence identified.",
			})
		}
	}
	for i := range risks {
		risks[i].DivergenceSummary = truncate(risks[i].DivergenceSummary, p.cfg.MaxFieldLen)
		risks[i].ConflictingPolicyExcerpt = truncate(risks[i].ConflictingPolicyExcerpt, p.cfg.MaxFieldLen)
		risks[i].NewRuleExcerpt = truncate(risks[i].NewRuleExcerpt, p.cfg.MaxFieldLen)
		risks[i].RecommendedAction = truncate(risks[i].RecommendedAction, p.cfg.MaxFieldLen)
	}

	return Report{
		RegulationID:      RegulationID(text, dateOfLaw),
		DateProcessed:     p.now().UTC().Format("2006-01-02"),
		TotalRisksFlagged: len(risks),
		Risks:             risks,
		Recommendation:    truncate(recommendation, p.cfg.MaxFieldLen),
		OverallStatus:     status,
	}
}

// systemErrorReport preserves the report contract after the retry budget is
// spent: one synthetic HIGH risk carrying the truncated failure text.
func (p *Pipeline) systemErrorReport(text, dateOfLaw string, cause error) Report {
	msg := "analysis failed for an unknown reason"
	if cause != nil {
		msg = cause.Error()
	}
	risk := Risk{
		PolicyID:          "system_error",
		Severity:          SeverityHigh,
		DivergenceSummary: truncate(msg, p.cfg.MaxFieldLen),
		NewRuleExcerpt:    truncate(text, p.cfg.MaxFieldLen),
		RecommendedAction: "Re-run the analysis once the underlying service issue is resolved.",
	}
	return p.finalize(text, dateOfLaw, []Risk{risk},
		"Automated analysis could not be completed; a manual compliance review is required.",
		StatusNeedsUpdates)
}

const defaultCompliantRecommendation = "No divergences were identified between the regulation and the indexed policies; no action is required."

// compliantRisk is the synthetic item substituted when the audit stage
// legitimately finds zero risks, keeping the risk list non-empty.
func compliantRisk() Risk {
	return Risk{
		PolicyID:          "compliant",
		Severity:          SeverityLow,
		DivergenceSummary: "No conflicting policies were identified for this regulation.",
	}
}

// fingerprint returns the comparison key for research deduplication: the
// first fingerprintLen bytes of the trimmed excerpt.
func fingerprint(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > fingerprintLen {
		s = s[:fingerprintLen]
	}
	return s
}
