package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/claimsage/claimsage/evidence"
	"github.com/claimsage/claimsage/oracle"
)

// assessor scores the accumulated context for quality and coverage.
type assessor struct {
	llm    oracle.Client
	prompt string
	logger *slog.Logger
}

func newAssessor(llm oracle.Client, cfg *Config, logger *slog.Logger) *assessor {
	return &assessor{
		llm:    llm,
		prompt: cfg.AssessmentPrompt,
		logger: logger,
	}
}

// emptyAssessment is the short-circuit result when no evidence exists yet.
// No oracle call is made in that case.
var emptyAssessment = Assessment{
	QualityScore:     0.0,
	CoverageScore:    0.0,
	EvidenceStrength: 0.0,
	InformationGaps:  []string{"No relevant documents found"},
	Contradictions:   []string{},
	Sufficiency:      "insufficient",
	KeyFindings:      []string{},
}

// Assess evaluates the accumulated evidence against the question. Malformed
// model output degrades to a neutral partial assessment.
func (a *assessor) Assess(ctx context.Context, question string, passages []evidence.Passage) (Assessment, bool, error) {
	if len(passages) == 0 {
		return emptyAssessment, false, nil
	}

	contextBlock := evidence.FormatContext(passages)
	user := fmt.Sprintf(a.prompt, question, contextBlock, len(passages))

	raw, err := oracle.Complete(ctx, a.llm, jsonSystemPrompt, user)
	if err != nil {
		return Assessment{}, false, fmt.Errorf("context assessment failed: %w", err)
	}

	fallback := Assessment{
		QualityScore:     0.5,
		CoverageScore:    0.5,
		EvidenceStrength: 0.5,
		InformationGaps:  []string{"Assessment failed"},
		Contradictions:   []string{},
		Sufficiency:      "partial",
		KeyFindings:      []string{},
		Reasoning:        "Default assessment",
	}
	assessment, degraded := oracle.DecodeOr(raw, fallback)
	if degraded {
		a.logger.Warn("assessment output unparsable, using neutral scores")
	}
	if assessment.Sufficiency == "" {
		assessment.Sufficiency = "partial"
	}
	return assessment, degraded, nil
}
