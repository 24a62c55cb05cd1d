package pipeline

import (
	"github.com/claimsage/claimsage/config"
	"github.com/claimsage/claimsage/session"
	"github.com/claimsage/claimsage/tokenizer"
)

// Config controls the iterative answering loop. It groups the iteration
// budgets, retrieval fan-out, and rolling-window sizes so callers can build
// reproducible pipelines from a single struct.
type Config struct {
	Name string // Logical name for tracing/logging

	MaxIters  int // Ceiling on dynamic iterations (the complexity-derived budget never exceeds this)
	MinIters  int // Floor on iterations before the controller may stop
	BatchSize int // How many top-priority sub-questions run per iteration
	Workers   int // Retrieval worker pool size

	HintsWindow        int // Rolling window of evidence hints kept in state
	PlanHintsWindow    int // How many trailing hints the planner sees
	GapsWindow         int // How many trailing gaps the planner sees
	ImprovementsWindow int // Quality-delta history length

	GraphMaxVisits int // Safety guard for graph execution

	AnalysisPrompt     string
	PlanningPrompt     string
	AssessmentPrompt   string
	DecisionPrompt     string
	SynthesisPrompt    string
	VerificationPrompt string
	NoEvidenceAnswer   string // Fixed answer when synthesis has no evidence

	store session.Store       // Optional checkpoint store
	tok   tokenizer.Tokenizer // Token counter for trace context sizing
}

// Option customises the pipeline configuration.
type Option func(*Config)

// WithName sets the logical pipeline name used in logs.
func WithName(name string) Option {
	return func(cfg *Config) {
		if name != "" {
			cfg.Name = name
		}
	}
}

// WithMaxIters caps the dynamic iteration budget.
func WithMaxIters(max int) Option {
	return func(cfg *Config) {
		if max > 0 {
			cfg.MaxIters = max
		}
	}
}

// WithMinIters sets the minimum number of iterations before the controller
// may stop.
func WithMinIters(min int) Option {
	return func(cfg *Config) {
		if min >= 0 {
			cfg.MinIters = min
		}
	}
}

// WithBatchSize sets how many top-priority sub-questions run per iteration.
func WithBatchSize(size int) Option {
	return func(cfg *Config) {
		if size > 0 {
			cfg.BatchSize = size
		}
	}
}

// WithWorkers sets the retrieval worker pool size.
func WithWorkers(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.Workers = n
		}
	}
}

// WithHintsWindow bounds the rolling evidence-hint window.
func WithHintsWindow(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.HintsWindow = n
		}
	}
}

// WithPlanHintsWindow bounds how many trailing hints the planner sees.
func WithPlanHintsWindow(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.PlanHintsWindow = n
		}
	}
}

// WithGapsWindow bounds how many trailing gaps the planner sees.
func WithGapsWindow(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.GapsWindow = n
		}
	}
}

// WithImprovementsWindow bounds the quality-delta history.
func WithImprovementsWindow(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.ImprovementsWindow = n
		}
	}
}

// WithGraphMaxVisits tweaks the safety guard for graph traversal.
func WithGraphMaxVisits(max int) Option {
	return func(cfg *Config) {
		if max > 0 {
			cfg.GraphMaxVisits = max
		}
	}
}

// WithSessionStore enables per-node checkpointing through the given store.
func WithSessionStore(store session.Store) Option {
	return func(cfg *Config) {
		if store != nil {
			cfg.store = store
		}
	}
}

// WithTokenizer overrides the token counter used for the trace.
func WithTokenizer(tok tokenizer.Tokenizer) Option {
	return func(cfg *Config) {
		if tok != nil {
			cfg.tok = tok
		}
	}
}

// WithAnalysisPrompt overrides the analyzer prompt template.
func WithAnalysisPrompt(prompt string) Option {
	return func(cfg *Config) {
		if prompt != "" {
			cfg.AnalysisPrompt = prompt
		}
	}
}

// WithPlanningPrompt overrides the planner prompt template.
func WithPlanningPrompt(prompt string) Option {
	return func(cfg *Config) {
		if prompt != "" {
			cfg.PlanningPrompt = prompt
		}
	}
}

// WithAssessmentPrompt overrides the assessor prompt template.
func WithAssessmentPrompt(prompt string) Option {
	return func(cfg *Config) {
		if prompt != "" {
			cfg.AssessmentPrompt = prompt
		}
	}
}

// WithDecisionPrompt overrides the controller prompt template.
func WithDecisionPrompt(prompt string) Option {
	return func(cfg *Config) {
		if prompt != "" {
			cfg.DecisionPrompt = prompt
		}
	}
}

// WithSynthesisPrompt overrides the synthesizer prompt template.
func WithSynthesisPrompt(prompt string) Option {
	return func(cfg *Config) {
		if prompt != "" {
			cfg.SynthesisPrompt = prompt
		}
	}
}

// WithVerificationPrompt overrides the verifier prompt template.
func WithVerificationPrompt(prompt string) Option {
	return func(cfg *Config) {
		if prompt != "" {
			cfg.VerificationPrompt = prompt
		}
	}
}

// WithNoEvidenceAnswer customises the fixed answer returned when no evidence
// was retrieved.
func WithNoEvidenceAnswer(answer string) Option {
	return func(cfg *Config) {
		if answer != "" {
			cfg.NoEvidenceAnswer = answer
		}
	}
}

func defaultPipelineConfig() *Config {
	return &Config{
		Name:               "claimsage-loop",
		MaxIters:           8,
		MinIters:           2,
		BatchSize:          3,
		Workers:            4,
		HintsWindow:        50,
		PlanHintsWindow:    10,
		GapsWindow:         5,
		ImprovementsWindow: 3,
		GraphMaxVisits:     40,
		AnalysisPrompt:     analysisPrompt,
		PlanningPrompt:     planningPrompt,
		AssessmentPrompt:   assessmentPrompt,
		DecisionPrompt:     decisionPrompt,
		SynthesisPrompt:    synthesisPrompt,
		VerificationPrompt: verificationPrompt,
		NoEvidenceAnswer:   noEvidenceAnswer,
		tok:                tokenizer.NewHeuristic(),
	}
}

func applyOptions(opts []Option) *Config {
	cfg := defaultPipelineConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (cfg *Config) validate() error {
	v := config.NewValidator()
	v.RequireNonEmpty("name", cfg.Name)
	v.RequirePositive("max_iters", cfg.MaxIters)
	v.RequireNonNegative("min_iters", cfg.MinIters)
	v.RequireAtMost("min_iters", cfg.MinIters, cfg.MaxIters)
	v.RequirePositive("batch_size", cfg.BatchSize)
	v.RequirePositive("workers", cfg.Workers)
	v.RequirePositive("hints_window", cfg.HintsWindow)
	v.RequirePositive("plan_hints_window", cfg.PlanHintsWindow)
	v.RequirePositive("gaps_window", cfg.GapsWindow)
	v.RequirePositive("improvements_window", cfg.ImprovementsWindow)
	v.RequirePositive("graph_max_visits", cfg.GraphMaxVisits)
	return v.Error()
}
