// Package pipeline implements the iterative retrieval-augmented answering
// loop: analyze, plan, retrieve, assess, decide, then synthesize and verify.
package pipeline

import (
	"github.com/claimsage/claimsage/evidence"
)

// Analysis is the structured profile of the question produced by the analyzer.
type Analysis struct {
	ComplexityScore       float64  `json:"complexity_score"`        // 1-10 scale
	QuestionType          string   `json:"question_type"`           // factual, analytical, comparative, ...
	EstimatedHops         int      `json:"estimated_hops"`          // 2-10
	RequiredEvidenceTypes []string `json:"required_evidence_types"` // documents, regulations, ...
	KeyAspects            []string `json:"key_aspects"`
	Reasoning             string   `json:"reasoning,omitempty"`
}

// SubQuestion is one focused retrieval query emitted by the planner.
type SubQuestion struct {
	Query    string  `json:"query"`
	Priority float64 `json:"priority"` // 1.0 highest, 0.0 lowest
	Aspect   string  `json:"aspect,omitempty"`
	Strategy string  `json:"strategy,omitempty"` // semantic | similarity | hybrid
}

type planResult struct {
	SubQuestions []SubQuestion `json:"sub_questions"`
	Reasoning    string        `json:"reasoning,omitempty"`
}

// Assessment scores the accumulated context against the question.
type Assessment struct {
	QualityScore     float64  `json:"quality_score"`
	CoverageScore    float64  `json:"coverage_score"`
	EvidenceStrength float64  `json:"evidence_strength"`
	InformationGaps  []string `json:"information_gaps"`
	Contradictions   []string `json:"contradictions,omitempty"`
	Sufficiency      string   `json:"sufficiency_assessment"` // insufficient | partial | sufficient | comprehensive
	KeyFindings      []string `json:"key_findings,omitempty"`
	Reasoning        string   `json:"reasoning,omitempty"`
}

// Decision is the controller's continue-or-stop verdict.
type Decision struct {
	Decision               string   `json:"decision"` // continue | stop
	Confidence             float64  `json:"confidence"`
	Reasoning              string   `json:"reasoning,omitempty"`
	StopReasons            []string `json:"stop_reasons"`
	ContinueStrategy       string   `json:"continue_strategy,omitempty"`
	EstimatedRemainingHops int      `json:"estimated_remaining_hops,omitempty"`
}

// Verification is the verifier's grounding report for the final answer.
type Verification struct {
	OverallGrounding      string   `json:"overall_grounding"` // pass | fail
	FactualGrounding      float64  `json:"factual_grounding"`
	LogicalConsistency    float64  `json:"logical_consistency"`
	Completeness          float64  `json:"completeness"`
	SourceAttribution     float64  `json:"source_attribution"`
	ConfidenceCalibration float64  `json:"confidence_calibration"`
	IssuesFound           []string `json:"issues_found,omitempty"`
	Recommendations       []string `json:"recommendations,omitempty"`
	FinalAssessment       string   `json:"final_assessment,omitempty"`
}

// Trace carries the per-run debug information returned with every answer.
type Trace struct {
	Iterations          int      `json:"iterations"`
	EvidenceCount       int      `json:"evidence_count"`
	GroundedOK          bool     `json:"grounded_ok"`
	QuestionComplexity  float64  `json:"question_complexity"`
	ContextQualityScore float64  `json:"context_quality_score"`
	CoverageScore       float64  `json:"coverage_score"`
	AnswerConfidence    float64  `json:"answer_confidence"`
	StopReasons         []string `json:"stop_reasons,omitempty"`
	LastGaps            []string `json:"last_gaps,omitempty"` // last 3 information gaps
	LastSubQuestion     string   `json:"last_sub_question,omitempty"`
	ContextTokens       int      `json:"context_tokens,omitempty"`
	DegradedStages      []string `json:"degraded_stages,omitempty"` // stages that fell back to defaults
}

// Result is the structured outcome of one pipeline run.
type Result struct {
	Question     string             `json:"question"`
	Answer       string             `json:"answer"`
	Confidence   float64            `json:"confidence"`
	Grounded     bool               `json:"grounded"`
	Evidence     []evidence.Passage `json:"evidence,omitempty"`
	Verification *Verification      `json:"verification,omitempty"`
	Trace        Trace              `json:"trace"`
}

// Event is one streaming update emitted after a node completes.
type Event struct {
	Node          string  `json:"node"`
	Iteration     int     `json:"iteration"`
	EvidenceCount int     `json:"evidence_count"`
	Final         *Result `json:"final,omitempty"` // set on the terminal event only
}
