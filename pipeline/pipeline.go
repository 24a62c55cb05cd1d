package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	claimerrors "github.com/claimsage/claimsage/errors"
	"github.com/claimsage/claimsage/evidence"
	"github.com/claimsage/claimsage/graph"
	"github.com/claimsage/claimsage/oracle"
	"github.com/claimsage/claimsage/pkg/logging"
	"github.com/claimsage/claimsage/pkg/telemetry"
	"github.com/claimsage/claimsage/retrieval"
	"github.com/claimsage/claimsage/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Node names of the answering graph.
const (
	nodeAnalyze    = "analyze"
	nodePlan       = "plan"
	nodeRetrieve   = "retrieve"
	nodeAssess     = "assess"
	nodeDecide     = "decide"
	nodeRoute      = "route"
	nodeSynthesize = "synthesize"
	nodeVerify     = "verify"
	nodeEnd        = "end"
)

// eventSink receives streaming events for a single run. It travels through
// the graph state so concurrent runs over the shared graph never observe each
// other's events.
type eventSink func(*Event)

// Clients groups the completion providers used by the pipeline. Default is
// required; the per-role clients are optional overrides that fall back to
// Default when nil.
type Clients struct {
	Default   oracle.Client // assessment, decision, verification
	Analysis  oracle.Client // question analysis (tuned to temperature 0.0)
	Planning  oracle.Client // query planning (tuned to temperature 0.2)
	Synthesis oracle.Client // answer synthesis (tuned to temperature 0.0)
}

// Pipeline runs the iterative retrieval-augmented answering loop. It is safe
// for concurrent use: all per-run state lives in the graph state, not on the
// pipeline.
type Pipeline struct {
	cfg    *Config
	logger *slog.Logger
	tracer trace.Tracer
	graph  *graph.Graph

	analyzer    *analyzer
	planner     *planner
	retriever   *retriever
	assessor    *assessor
	controller  *controller
	synthesizer *synthesizer
	verifier    *verifier
}

// NewPipeline builds the answering pipeline over the given oracle clients and
// evidence store.
func NewPipeline(clients Clients, store retrieval.Store, opts ...Option) (*Pipeline, error) {
	if clients.Default == nil {
		return nil, fmt.Errorf("%w: default oracle client is required", claimerrors.ErrInvalidInput)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: retrieval store is required", claimerrors.ErrInvalidInput)
	}

	cfg := applyOptions(opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Dedicated role clients get the temperature that suits their job;
	// a shared default is left untouched.
	if clients.Analysis != nil {
		clients.Analysis.SetTemperature(0.0)
	}
	if clients.Planning != nil {
		clients.Planning.SetTemperature(0.2)
	}
	if clients.Synthesis != nil {
		clients.Synthesis.SetTemperature(0.0)
	}

	logger := logging.WithComponent("pipeline").With("pipeline", cfg.Name)

	p := &Pipeline{
		cfg:         cfg,
		logger:      logger,
		tracer:      otel.Tracer("claimsage/pipeline"),
		analyzer:    newAnalyzer(oracle.Pick(clients.Analysis, clients.Default), cfg, logger),
		planner:     newPlanner(oracle.Pick(clients.Planning, clients.Default), cfg, logger),
		retriever:   newRetriever(store, cfg, logger),
		assessor:    newAssessor(clients.Default, cfg, logger),
		controller:  newController(clients.Default, cfg, logger),
		synthesizer: newSynthesizer(oracle.Pick(clients.Synthesis, clients.Default), cfg, logger),
		verifier:    newVerifier(clients.Default, cfg, logger),
	}
	p.graph = p.buildGraph()
	return p, nil
}

func (p *Pipeline) buildGraph() *graph.Graph {
	return graph.NewBuilder().
		AddNode(nodeAnalyze, graph.NodeTypeStart, p.node(nodeAnalyze, p.analyzeNode)).
		AddNode(nodePlan, graph.NodeTypeCustom, p.node(nodePlan, p.planNode)).
		AddNode(nodeRetrieve, graph.NodeTypeCustom, p.node(nodeRetrieve, p.retrieveNode)).
		AddNode(nodeAssess, graph.NodeTypeCustom, p.node(nodeAssess, p.assessNode)).
		AddNode(nodeDecide, graph.NodeTypeCustom, p.node(nodeDecide, p.decideNode)).
		AddConditionNode(nodeRoute, p.routeCondition, map[string]string{
			"stop":     nodeSynthesize,
			"continue": nodePlan,
		}).
		AddNode(nodeSynthesize, graph.NodeTypeCustom, p.node(nodeSynthesize, p.synthesizeNode)).
		AddNode(nodeVerify, graph.NodeTypeCustom, p.node(nodeVerify, p.verifyNode)).
		AddNode(nodeEnd, graph.NodeTypeEnd, func(_ context.Context, state graph.State) (graph.State, error) {
			return state, nil
		}).
		AddEdge(nodeAnalyze, nodePlan).
		AddEdge(nodePlan, nodeRetrieve).
		AddEdge(nodeRetrieve, nodeAssess).
		AddEdge(nodeAssess, nodeDecide).
		AddEdge(nodeDecide, nodeRoute).
		AddEdge(nodeSynthesize, nodeVerify).
		AddEdge(nodeVerify, nodeEnd).
		SetStart(nodeAnalyze).
		SetEnd(nodeEnd).
		SetMaxVisits(p.cfg.GraphMaxVisits).
		SetObserver(p.observe).
		Build()
}

// node wraps a stage function with state extraction and a telemetry span.
func (p *Pipeline) node(name string, fn func(context.Context, *runState) error) graph.NodeFunc {
	return func(ctx context.Context, state graph.State) (graph.State, error) {
		st, err := getState(state)
		if err != nil {
			return nil, err
		}
		ctx, span := p.tracer.Start(ctx, "pipeline."+name,
			trace.WithAttributes(
				attribute.String("session.token", st.Token),
				attribute.Int("iteration", st.Iteration),
			),
		)
		err = fn(ctx, st)
		telemetry.End(span, err)
		if err != nil {
			return nil, err
		}
		return state, nil
	}
}

func (p *Pipeline) analyzeNode(ctx context.Context, st *runState) error {
	analysis, degraded, err := p.analyzer.Analyze(ctx, st.Question)
	if err != nil {
		return err
	}
	if degraded {
		st.degraded(nodeAnalyze)
	}
	st.Analysis = analysis
	st.MaxDynamicIters = p.analyzer.iterationBudget(analysis)
	p.logger.Info("question analyzed",
		"token", st.Token,
		"complexity", analysis.ComplexityScore,
		"type", analysis.QuestionType,
		"max_iterations", st.MaxDynamicIters,
	)
	return nil
}

func (p *Pipeline) planNode(ctx context.Context, st *runState) error {
	subQuestions, batch, degraded, err := p.planner.Plan(ctx, st)
	if err != nil {
		return err
	}
	if degraded {
		st.degraded(nodePlan)
	}
	st.SubQuestions = subQuestions
	st.CurrentBatch = batch
	if len(batch) > 0 {
		st.SubQuestion = batch[0]
	}
	p.logger.Debug("iteration planned", "token", st.Token, "iteration", st.Iteration, "batch_size", len(batch))
	return nil
}

func (p *Pipeline) retrieveNode(ctx context.Context, st *runState) error {
	fused := p.retriever.Retrieve(ctx, st.CurrentBatch, st.SubQuestions)
	added := st.merge(fused)

	hints := make([]string, 0, len(added))
	for _, passage := range added {
		hints = append(hints, evidence.Hint(passage))
	}
	st.EvidenceHints = evidence.AppendBounded(st.EvidenceHints, hints, p.cfg.HintsWindow)
	st.LastBatchSize = len(fused)

	p.logger.Debug("batch retrieved",
		"token", st.Token,
		"iteration", st.Iteration,
		"retrieved", len(fused),
		"new", len(added),
		"total", len(st.Evidence),
	)
	return nil
}

func (p *Pipeline) assessNode(ctx context.Context, st *runState) error {
	previousQuality := st.Assessment.QualityScore

	assessment, degraded, err := p.assessor.Assess(ctx, st.Question, st.Evidence)
	if err != nil {
		return err
	}
	if degraded {
		st.degraded(nodeAssess)
	}
	st.Assessment = assessment

	st.QualityImprovements = append(st.QualityImprovements, assessment.QualityScore-previousQuality)
	if max := p.cfg.ImprovementsWindow; max > 0 && len(st.QualityImprovements) > max {
		st.QualityImprovements = st.QualityImprovements[len(st.QualityImprovements)-max:]
	}
	return nil
}

func (p *Pipeline) decideNode(ctx context.Context, st *runState) error {
	v, degraded, err := p.controller.Decide(ctx, st)
	if err != nil {
		return err
	}
	if degraded {
		st.degraded(nodeDecide)
	}
	st.Stop = v.stop
	st.Iteration = v.iteration
	st.StopReasons = v.stopReasons
	st.DecisionFactors = v.decisionFactors
	st.ContinueProbability = v.continueProbability

	p.logger.Info("iteration decided",
		"token", st.Token,
		"iteration", st.Iteration,
		"max_iterations", st.MaxDynamicIters,
		"stop", st.Stop,
		"quality", st.Assessment.QualityScore,
		"coverage", st.Assessment.CoverageScore,
	)
	return nil
}

func (p *Pipeline) routeCondition(_ context.Context, state graph.State) (string, error) {
	st, err := getState(state)
	if err != nil {
		return "", err
	}
	if st.Stop {
		return "stop", nil
	}
	return "continue", nil
}

func (p *Pipeline) synthesizeNode(ctx context.Context, st *runState) error {
	answer, confidence, err := p.synthesizer.Synthesize(ctx, st.Question, st.Evidence, st.Assessment)
	if err != nil {
		return err
	}
	st.Answer = answer
	st.AnswerConfidence = confidence
	if len(st.Evidence) > 0 {
		st.ContextTokens = p.cfg.tok.CountTokens(evidence.FormatContext(st.Evidence))
	}
	return nil
}

func (p *Pipeline) verifyNode(ctx context.Context, st *runState) error {
	grounded, verification, degraded, err := p.verifier.Verify(ctx, st.Question, st.Answer, st.Evidence)
	if err != nil {
		return err
	}
	if degraded {
		st.degraded(nodeVerify)
	}
	st.GroundedOK = grounded
	st.Verification = verification
	return nil
}

// observe fires after every completed node. It checkpoints the run state when
// a session store is configured and forwards an event to the run's sink when
// one is streaming. Both are best-effort: a failed checkpoint never aborts
// the run.
func (p *Pipeline) observe(ctx context.Context, node string, state graph.State) {
	st, err := getState(state)
	if err != nil {
		return
	}

	if p.cfg.store != nil {
		p.checkpoint(ctx, node, st)
	}

	if sink, ok := state[eventSinkKey].(eventSink); ok && sink != nil {
		ev := &Event{
			Node:          node,
			Iteration:     st.Iteration,
			EvidenceCount: len(st.Evidence),
		}
		if node == nodeEnd {
			ev.Final = p.buildResult(st)
		}
		sink(ev)
	}
}

func (p *Pipeline) checkpoint(ctx context.Context, node string, st *runState) {
	raw, err := json.Marshal(st)
	if err != nil {
		p.logger.Warn("checkpoint serialization failed", "token", st.Token, "node", node, "error", err)
		return
	}
	now := time.Now().UTC()
	cp := &session.Checkpoint{
		Token:     st.Token,
		Question:  st.Question,
		Node:      node,
		Iteration: st.Iteration,
		State:     raw,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.cfg.store.Save(ctx, cp); err != nil {
		p.logger.Warn("checkpoint save failed", "token", st.Token, "node", node, "error", err)
	}
}

// Ask answers a question, running the full loop to completion. An empty token
// gets a fresh session token.
func (p *Pipeline) Ask(ctx context.Context, question, token string) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", claimerrors.ErrInvalidInput)
	}
	if token == "" {
		token = NewToken()
	}

	st := newRunState(token, question)
	state := graph.State{runStateKey: st}

	final, err := p.graph.Execute(ctx, state)
	if err != nil {
		return nil, err
	}
	st, err = getState(final)
	if err != nil {
		return nil, err
	}
	return p.buildResult(st), nil
}

func (p *Pipeline) buildResult(st *runState) *Result {
	return &Result{
		Question:     st.Question,
		Answer:       st.Answer,
		Confidence:   st.AnswerConfidence,
		Grounded:     st.GroundedOK,
		Evidence:     st.Evidence,
		Verification: st.Verification,
		Trace: Trace{
			Iterations:          st.Iteration,
			EvidenceCount:       len(st.Evidence),
			GroundedOK:          st.GroundedOK,
			QuestionComplexity:  st.Analysis.ComplexityScore,
			ContextQualityScore: st.Assessment.QualityScore,
			CoverageScore:       st.Assessment.CoverageScore,
			AnswerConfidence:    st.AnswerConfidence,
			StopReasons:         st.StopReasons,
			LastGaps:            evidence.Tail(st.Assessment.InformationGaps, 3),
			LastSubQuestion:     st.SubQuestion,
			ContextTokens:       st.ContextTokens,
			DegradedStages:      st.DegradedStages,
		},
	}
}

// NewToken generates a random session token.
func NewToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
