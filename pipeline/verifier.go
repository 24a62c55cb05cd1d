package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/claimsage/claimsage/evidence"
	"github.com/claimsage/claimsage/oracle"
)

// verifier grades how well the answer is grounded in the evidence. Its
// result is advisory: a failing grade is reported but never re-enters the
// retrieval loop.
type verifier struct {
	llm    oracle.Client
	prompt string
	logger *slog.Logger
}

func newVerifier(llm oracle.Client, cfg *Config, logger *slog.Logger) *verifier {
	return &verifier{
		llm:    llm,
		prompt: cfg.VerificationPrompt,
		logger: logger,
	}
}

// Verify grades the answer. An empty answer or empty evidence fails without
// an oracle call; malformed model output degrades to fail.
func (v *verifier) Verify(ctx context.Context, question, answer string, passages []evidence.Passage) (bool, *Verification, bool, error) {
	if answer == "" || len(passages) == 0 {
		return false, nil, false, nil
	}

	contextBlock := evidence.FormatContext(passages)
	user := fmt.Sprintf(v.prompt, question, answer, contextBlock)

	raw, err := oracle.Complete(ctx, v.llm, jsonSystemPrompt, user)
	if err != nil {
		return false, nil, false, fmt.Errorf("answer verification failed: %w", err)
	}

	fallback := Verification{
		OverallGrounding:      "fail",
		FactualGrounding:      0.5,
		LogicalConsistency:    0.5,
		Completeness:          0.5,
		SourceAttribution:     0.5,
		ConfidenceCalibration: 0.5,
		IssuesFound:           []string{"Verification failed"},
		FinalAssessment:       "needs_improvement",
	}
	verification, degraded := oracle.DecodeOr(raw, fallback)
	if degraded {
		v.logger.Warn("verification output unparsable, grading as fail")
	}

	grounded := verification.OverallGrounding == "pass"
	return grounded, &verification, degraded, nil
}
