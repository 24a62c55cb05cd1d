package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/claimsage/claimsage/oracle"
)

// analyzer profiles the question and derives the dynamic iteration budget.
type analyzer struct {
	llm      oracle.Client
	prompt   string
	maxIters int
	logger   *slog.Logger
}

func newAnalyzer(llm oracle.Client, cfg *Config, logger *slog.Logger) *analyzer {
	return &analyzer{
		llm:      llm,
		prompt:   cfg.AnalysisPrompt,
		maxIters: cfg.MaxIters,
		logger:   logger,
	}
}

var defaultAnalysis = Analysis{
	ComplexityScore:       5.0,
	QuestionType:          "analytical",
	EstimatedHops:         4,
	RequiredEvidenceTypes: []string{"documents"},
	KeyAspects:            []string{"general"},
	Reasoning:             "Default analysis",
}

// Analyze profiles the question. Malformed model output degrades to the
// default analytical profile; transport errors propagate.
func (a *analyzer) Analyze(ctx context.Context, question string) (Analysis, bool, error) {
	raw, err := oracle.Complete(ctx, a.llm, jsonSystemPrompt, fmt.Sprintf(a.prompt, question))
	if err != nil {
		return Analysis{}, false, fmt.Errorf("question analysis failed: %w", err)
	}

	analysis, degraded := oracle.DecodeOr(raw, defaultAnalysis)
	if degraded {
		a.logger.Warn("analysis output unparsable, using default profile", "question", trimForLog(question, 80))
	}
	if analysis.ComplexityScore <= 0 {
		analysis.ComplexityScore = defaultAnalysis.ComplexityScore
	}
	if analysis.EstimatedHops <= 0 {
		analysis.EstimatedHops = defaultAnalysis.EstimatedHops
	}
	if analysis.QuestionType == "" {
		analysis.QuestionType = defaultAnalysis.QuestionType
	}
	return analysis, degraded, nil
}

// iterationBudget converts the analysis into the dynamic iteration ceiling:
// round(complexity*0.8 + hops*0.5) clamped to [2, configured max].
func (a *analyzer) iterationBudget(analysis Analysis) int {
	estimate := int(math.Round(analysis.ComplexityScore*0.8 + float64(analysis.EstimatedHops)*0.5))
	if estimate < 2 {
		estimate = 2
	}
	if estimate > a.maxIters {
		estimate = a.maxIters
	}
	return estimate
}
