package pipeline

import (
	"fmt"

	"github.com/claimsage/claimsage/evidence"
	"github.com/claimsage/claimsage/graph"
)

const runStateKey = "__claimsage_run_state"
const eventSinkKey = "__claimsage_event_sink"

// runState is the mutable per-run state threaded through the graph. The JSON
// form is what gets checkpointed under the session token after each node.
type runState struct {
	Token    string `json:"token"`
	Question string `json:"question"`

	// Analysis
	Analysis        Analysis `json:"analysis"`
	MaxDynamicIters int      `json:"max_dynamic_iters"`

	// Planning
	SubQuestions []SubQuestion `json:"sub_questions,omitempty"`
	CurrentBatch []string      `json:"current_query_batch,omitempty"`
	SubQuestion  string        `json:"sub_question,omitempty"` // highest-priority query, kept for compatibility

	// Retrieval
	Evidence      []evidence.Passage `json:"evidence,omitempty"`
	EvidenceHints []string           `json:"evidence_hints,omitempty"`
	LastBatchSize int                `json:"last_batch_size"`

	// Assessment
	Assessment          Assessment `json:"assessment"`
	QualityImprovements []float64  `json:"recent_quality_improvements,omitempty"`

	// Decision
	Stop                bool               `json:"stop"`
	Iteration           int                `json:"iteration"`
	StopReasons         []string           `json:"stop_reasons,omitempty"`
	DecisionFactors     map[string]float64 `json:"decision_factors,omitempty"`
	ContinueProbability float64            `json:"continue_probability"`

	// Synthesis and verification
	Answer           string        `json:"final_answer,omitempty"`
	AnswerConfidence float64       `json:"answer_confidence"`
	GroundedOK       bool          `json:"grounded_ok"`
	Verification     *Verification `json:"verification,omitempty"`
	ContextTokens    int           `json:"context_tokens,omitempty"`

	DegradedStages []string `json:"degraded_stages,omitempty"`

	acc *evidence.Accumulator
}

func newRunState(token, question string) *runState {
	return &runState{
		Token:    token,
		Question: question,
		acc:      evidence.NewAccumulator(),
	}
}

// merge adds a fused retrieval batch to the accumulator and keeps the
// serialized evidence list in sync.
func (st *runState) merge(batch []evidence.Passage) []evidence.Passage {
	if st.acc == nil {
		st.acc = evidence.NewAccumulator()
		st.acc.Merge(st.Evidence)
	}
	added := st.acc.Merge(batch)
	st.Evidence = st.acc.Passages()
	return added
}

func (st *runState) degraded(stage string) {
	st.DegradedStages = append(st.DegradedStages, stage)
}

func getState(state graph.State) (*runState, error) {
	raw, ok := state[runStateKey]
	if !ok {
		return nil, fmt.Errorf("run state missing in graph")
	}
	st, ok := raw.(*runState)
	if !ok {
		return nil, fmt.Errorf("invalid run state type")
	}
	return st, nil
}
