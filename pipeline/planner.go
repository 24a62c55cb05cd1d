package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/claimsage/claimsage/evidence"
	"github.com/claimsage/claimsage/oracle"
)

// planner turns the question plus accumulated hints and gaps into a
// prioritized batch of retrieval sub-questions.
type planner struct {
	llm         oracle.Client
	prompt      string
	batchSize   int
	hintsWindow int
	gapsWindow  int
	logger      *slog.Logger
}

func newPlanner(llm oracle.Client, cfg *Config, logger *slog.Logger) *planner {
	return &planner{
		llm:         llm,
		prompt:      cfg.PlanningPrompt,
		batchSize:   cfg.BatchSize,
		hintsWindow: cfg.PlanHintsWindow,
		gapsWindow:  cfg.GapsWindow,
		logger:      logger,
	}
}

// Plan emits the sub-questions for one iteration. Malformed model output
// degrades to a single sub-question carrying the original question.
func (p *planner) Plan(ctx context.Context, st *runState) ([]SubQuestion, []string, bool, error) {
	analysis := map[string]any{
		"complexity_score":        st.Analysis.ComplexityScore,
		"question_type":           st.Analysis.QuestionType,
		"estimated_hops":          st.Analysis.EstimatedHops,
		"required_evidence_types": st.Analysis.RequiredEvidenceTypes,
	}
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return nil, nil, false, fmt.Errorf("marshal analysis: %w", err)
	}

	hints := bulletBlock(evidence.Tail(st.EvidenceHints, p.hintsWindow))
	gaps := bulletBlock(evidence.Tail(st.Assessment.InformationGaps, p.gapsWindow))

	user := fmt.Sprintf(p.prompt, st.Question, analysisJSON, hints, gaps)
	raw, err := oracle.Complete(ctx, p.llm, jsonSystemPrompt, user)
	if err != nil {
		return nil, nil, false, fmt.Errorf("query planning failed: %w", err)
	}

	fallback := planResult{
		SubQuestions: []SubQuestion{{Query: st.Question, Priority: 1.0, Aspect: "general", Strategy: "semantic"}},
		Reasoning:    "Default planning",
	}
	plan, degraded := oracle.DecodeOr(raw, fallback)
	if degraded {
		p.logger.Warn("planner output unparsable, falling back to original question")
	}
	if len(plan.SubQuestions) == 0 {
		plan.SubQuestions = fallback.SubQuestions
		degraded = true
	}

	subQuestions := plan.SubQuestions
	// Stable sort keeps the model's emission order among equal priorities.
	sort.SliceStable(subQuestions, func(i, j int) bool {
		return subQuestions[i].Priority > subQuestions[j].Priority
	})

	limit := p.batchSize
	if limit > len(subQuestions) {
		limit = len(subQuestions)
	}
	batch := make([]string, 0, limit)
	for _, sq := range subQuestions[:limit] {
		batch = append(batch, sq.Query)
	}

	return subQuestions, batch, degraded, nil
}

func bulletBlock(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + item)
	}
	return b.String()
}

func trimForLog(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || len([]rune(text)) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "..."
}
