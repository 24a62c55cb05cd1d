package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/claimsage/claimsage/oracle"
)

// controller decides whether the loop continues retrieving or stops to
// synthesize.
type controller struct {
	llm      oracle.Client
	prompt   string
	minIters int
	logger   *slog.Logger
}

func newController(llm oracle.Client, cfg *Config, logger *slog.Logger) *controller {
	return &controller{
		llm:      llm,
		prompt:   cfg.DecisionPrompt,
		minIters: cfg.MinIters,
		logger:   logger,
	}
}

// verdict is the controller's outcome applied to the run state.
type verdict struct {
	stop                bool
	iteration           int
	stopReasons         []string
	decisionFactors     map[string]float64
	continueProbability float64
}

// Decide consults the oracle and then applies the hard bounds: the dynamic
// ceiling forces a stop, and the minimum-iteration floor forces continuation.
// The floor is applied after the ceiling, matching the documented precedence.
func (c *controller) Decide(ctx context.Context, st *runState) (verdict, bool, error) {
	iteration := st.Iteration
	maxIters := st.MaxDynamicIters
	complexity := st.Analysis.ComplexityScore

	assessment := map[string]any{
		"quality_score":          st.Assessment.QualityScore,
		"coverage_score":         st.Assessment.CoverageScore,
		"evidence_strength":      st.Assessment.EvidenceStrength,
		"sufficiency_assessment": st.Assessment.Sufficiency,
		"information_gaps":       st.Assessment.InformationGaps,
		"recent_improvements":    st.QualityImprovements,
	}
	assessmentJSON, err := json.Marshal(assessment)
	if err != nil {
		return verdict{}, false, fmt.Errorf("marshal assessment: %w", err)
	}

	recentSuccess := "unsuccessful"
	if st.LastBatchSize > 0 {
		recentSuccess = "successful"
	}

	user := fmt.Sprintf(c.prompt, st.Question, iteration+1, maxIters, assessmentJSON, recentSuccess, complexity)
	raw, err := oracle.Complete(ctx, c.llm, jsonSystemPrompt, user)
	if err != nil {
		return verdict{}, false, fmt.Errorf("iteration decision failed: %w", err)
	}

	fallback := Decision{
		Decision:               "continue",
		Confidence:             0.5,
		Reasoning:              "Default decision",
		StopReasons:            []string{},
		ContinueStrategy:       "general search",
		EstimatedRemainingHops: 2,
	}
	decision, degraded := oracle.DecodeOr(raw, fallback)
	if degraded {
		c.logger.Warn("decision output unparsable, defaulting to continue")
	}

	shouldStop := decision.Decision == "stop"
	stopReasons := decision.StopReasons

	// Ceiling first.
	if iteration+1 >= maxIters {
		shouldStop = true
		stopReasons = append(stopReasons, "Reached maximum iterations")
	}

	// Floor second: before min_iters the loop always continues.
	if iteration+1 < c.minIters {
		shouldStop = false
	}

	return verdict{
		stop:        shouldStop,
		iteration:   iteration + 1,
		stopReasons: stopReasons,
		decisionFactors: map[string]float64{
			"quality_score":     st.Assessment.QualityScore,
			"coverage_score":    st.Assessment.CoverageScore,
			"iteration_ratio":   float64(iteration+1) / float64(maxIters),
			"complexity_factor": complexity / 10.0,
		},
		continueProbability: decision.Confidence,
	}, degraded, nil
}
