// Package orchestrator fans one utterance out to every analyzer in a roster,
// waits for all of them to settle and synthesizes a single Decision.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/assistant-core/internal/core/error"
	"github.com/Chative-core-poc-v1/assistant-core/internal/metrics"
	logx "github.com/Chative-core-poc-v1/assistant-core/pkg/logger"
)

const DefaultAnalyzerTimeout = 20 * time.Second

// Analyzer is one roster member. Analyze must honor ctx cancellation.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, in model.AnalyzerInput) (*model.AnalysisPayload, error)
}

// Synthesizer merges the settled results of a batch into one Decision. It must
// not depend on map iteration order.
type Synthesizer interface {
	Synthesize(ctx context.Context, in model.AnalyzerInput, results map[string]model.AnalyzerResult) (*model.Decision, error)
}

type SkillInvoker interface {
	Has(id string) bool
	Invoke(ctx context.Context, id string, params map[string]any) (string, error)
}

type WorkflowCompiler interface {
	Compile(ctx context.Context, spec model.WorkflowSpec) (*model.WorkflowGraph, error)
}

type Option func(*Orchestrator)

// WithAnalyzerTimeout bounds each analyzer call; zero disables the bound.
func WithAnalyzerTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

func WithSkills(s SkillInvoker) Option {
	return func(o *Orchestrator) { o.skills = s }
}

func WithWorkflowCompiler(c WorkflowCompiler) Option {
	return func(o *Orchestrator) { o.compiler = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithIDGenerator replaces the random decision ids; tests use it to compare
// whole decisions.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// Orchestrator is immutable after New and safe for concurrent Run calls.
type Orchestrator struct {
	analyzers []Analyzer
	synth     Synthesizer
	timeout   time.Duration
	skills    SkillInvoker
	compiler  WorkflowCompiler
	metrics   *metrics.Metrics
	newID     func() string
}

func New(analyzers []Analyzer, synth Synthesizer, opts ...Option) (*Orchestrator, error) {
	if len(analyzers) == 0 {
		return nil, fmt.Errorf("orchestrator needs at least one analyzer")
	}
	if synth == nil {
		return nil, fmt.Errorf("orchestrator needs a synthesizer")
	}
	seen := make(map[string]struct{}, len(analyzers))
	for _, a := range analyzers {
		if a == nil {
			return nil, fmt.Errorf("nil analyzer in roster")
		}
		if _, dup := seen[a.Name()]; dup {
			return nil, fmt.Errorf("duplicate analyzer name %q", a.Name())
		}
		seen[a.Name()] = struct{}{}
	}

	o := &Orchestrator{
		analyzers: append([]Analyzer(nil), analyzers...),
		synth:     synth,
		timeout:   DefaultAnalyzerTimeout,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Roster returns the analyzer names in dispatch order.
func (o *Orchestrator) Roster() []string {
	names := make([]string, len(o.analyzers))
	for i, a := range o.analyzers {
		names[i] = a.Name()
	}
	return names
}

// Run analyzes in with every roster member concurrently. Analyzer failures,
// panics and timeouts become Failure results; only a synthesizer failure or
// panic fails the call.
//
// Equal inputs and equal analyzer outputs give equal decisions except for the
// decision id, which comes from the id generator, and the per-worker durations.
func (o *Orchestrator) Run(ctx context.Context, in model.AnalyzerInput) (*model.Decision, error) {
	started := time.Now()
	results := o.fanOut(ctx, in)

	decision, err := o.synthesize(ctx, in, results)
	if err != nil {
		o.metrics.SynthesisFailed()
		logx.Error().Err(err).Str("user_id", in.UserID).Msg("synthesis failed")
		return nil, errx.Synthesis(err)
	}

	if decision.ID == "" {
		decision.ID = o.newID()
	}
	decision.OriginalQuery = in.UserInput
	decision.UserID = in.UserID
	decision.PerWorkerResults = results
	if decision.ExtractedParameters == nil {
		decision.ExtractedParameters = map[string]any{}
	}

	o.followUp(ctx, decision)

	logx.Info().
		Str("decision_id", decision.ID).
		Str("goal", decision.PrimaryGoal).
		Float64("confidence", decision.Confidence).
		Str("action", string(decision.SuggestedNextAction.ActionType)).
		Dur("elapsed", time.Since(started)).
		Msg("decision ready")
	return decision, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, in model.AnalyzerInput, results map[string]model.AnalyzerResult) (decision *model.Decision, err error) {
	var pc panics.Catcher
	pc.Try(func() {
		decision, err = o.synth.Synthesize(ctx, in.Clone(), results)
	})
	if r := pc.Recovered(); r != nil {
		logx.Error().Str("stack", string(r.Stack)).Msg("synthesizer panic recovered")
		return nil, r.AsError()
	}
	if err == nil && decision == nil {
		err = errors.New("synthesizer returned no decision")
	}
	return decision, err
}

func (o *Orchestrator) fanOut(ctx context.Context, in model.AnalyzerInput) map[string]model.AnalyzerResult {
	settled := make([]model.AnalyzerResult, len(o.analyzers))

	var wg conc.WaitGroup
	for i, a := range o.analyzers {
		wg.Go(func() {
			settled[i] = o.runAnalyzer(ctx, a, in.Clone())
		})
	}
	wg.Wait()

	results := make(map[string]model.AnalyzerResult, len(settled))
	for _, r := range settled {
		results[r.Worker] = r
	}
	return results
}

type outcome struct {
	payload *model.AnalysisPayload
	err     error
}

// runAnalyzer never returns before the analyzer settles or its deadline
// passes. An analyzer that ignores cancellation is abandoned; its late result
// lands in a buffered channel nobody reads.
func (o *Orchestrator) runAnalyzer(ctx context.Context, a Analyzer, in model.AnalyzerInput) model.AnalyzerResult {
	name := a.Name()
	start := time.Now()

	actx, cancel := o.analyzerContext(ctx)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		var out outcome
		var pc panics.Catcher
		pc.Try(func() {
			out.payload, out.err = a.Analyze(actx, in)
		})
		if r := pc.Recovered(); r != nil {
			out = outcome{err: fmt.Errorf("analyzer panicked: %v", r.Value)}
			logx.Error().Str("worker", name).Str("stack", string(r.Stack)).Msg("analyzer panic recovered")
		}
		done <- out
	}()

	var res model.AnalyzerResult
	select {
	case out := <-done:
		switch {
		case out.err != nil:
			res = model.Failure(name, o.failureReason(actx, out.err), time.Since(start))
		case out.payload == nil:
			res = model.Failure(name, errx.ErrEmptyAnalysis.Error(), time.Since(start))
		default:
			res = model.Success(name, out.payload, time.Since(start))
		}
	case <-actx.Done():
		res = model.Failure(name, o.failureReason(actx, actx.Err()), time.Since(start))
	}

	o.metrics.ObserveAnalyzer(name, res.OK(), res.Duration)
	if res.OK() {
		logx.Debug().Str("worker", name).Dur("duration", res.Duration).Str("goal", res.Payload.Goal).Msg("analyzer succeeded")
	} else {
		logx.Warn().Str("worker", name).Dur("duration", res.Duration).Str("reason", res.Reason).Msg("analyzer failed")
	}
	return res
}

// failureReason reports an expired deadline the same way whether the analyzer
// noticed it or was abandoned.
func (o *Orchestrator) failureReason(actx context.Context, err error) string {
	if errors.Is(actx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("timed out after %s", o.timeout)
	}
	return err.Error()
}

func (o *Orchestrator) analyzerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout > 0 {
		return context.WithTimeout(ctx, o.timeout)
	}
	return context.WithCancel(ctx)
}

// followUp performs at most one dependent call. Its failure is recorded on the
// decision and never fails the run.
func (o *Orchestrator) followUp(ctx context.Context, d *model.Decision) {
	action := d.SuggestedNextAction
	switch action.ActionType {
	case model.ActionInvokeSkill:
		if o.skills == nil || action.SkillID == "" || !o.skills.Has(action.SkillID) {
			d.Log(fmt.Sprintf("follow-up skipped: skill %q is not registered", action.SkillID))
			return
		}
		out, err := o.skills.Invoke(ctx, action.SkillID, d.ExtractedParameters)
		o.metrics.FollowUp("skill", err)
		if err != nil {
			d.Log(fmt.Sprintf("follow-up skill %s failed: %v", action.SkillID, err))
			return
		}
		d.SkillResult = out
		d.Log(fmt.Sprintf("follow-up skill %s succeeded", action.SkillID))

	case model.ActionCreateWorkflow:
		if o.compiler == nil {
			d.Log("follow-up skipped: no workflow compiler configured")
			return
		}
		graph, err := o.compiler.Compile(ctx, action.WorkflowSpec())
		o.metrics.FollowUp("workflow", err)
		if err != nil {
			d.Log(fmt.Sprintf("follow-up workflow compile failed: %v", err))
			return
		}
		d.Workflow = graph
		d.Log(fmt.Sprintf("follow-up workflow compiled: %d nodes, %d edges", len(graph.Nodes), len(graph.Edges)))
	}
}
