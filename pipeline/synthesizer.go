package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/claimsage/claimsage/evidence"
	"github.com/claimsage/claimsage/oracle"
)

// synthesizer composes the final answer from the accumulated evidence.
type synthesizer struct {
	llm              oracle.Client
	prompt           string
	noEvidenceAnswer string
	logger           *slog.Logger
}

func newSynthesizer(llm oracle.Client, cfg *Config, logger *slog.Logger) *synthesizer {
	return &synthesizer{
		llm:              llm,
		prompt:           cfg.SynthesisPrompt,
		noEvidenceAnswer: cfg.NoEvidenceAnswer,
		logger:           logger,
	}
}

// Synthesize produces the answer text and its confidence. With no evidence
// it returns the fixed no-evidence answer at confidence zero without calling
// the oracle. The confidence is always computed from the assessment scores,
// never reported by the model:
//
//	confidence = 0.4*quality + 0.4*coverage + 0.2*evidence_strength
func (s *synthesizer) Synthesize(ctx context.Context, question string, passages []evidence.Passage, assessment Assessment) (string, float64, error) {
	if len(passages) == 0 {
		s.logger.Warn("synthesis invoked with no evidence")
		return s.noEvidenceAnswer, 0.0, nil
	}

	contextBlock := evidence.FormatContext(passages)
	user := fmt.Sprintf(s.prompt,
		question,
		assessment.QualityScore,
		assessment.CoverageScore,
		assessment.EvidenceStrength,
		contextBlock,
	)

	answer, err := oracle.Complete(ctx, s.llm, answerSystemPrompt, user)
	if err != nil {
		return "", 0, fmt.Errorf("answer synthesis failed: %w", err)
	}

	confidence := assessment.QualityScore*0.4 + assessment.CoverageScore*0.4 + assessment.EvidenceStrength*0.2
	return answer, confidence, nil
}
