// Package assistant hosts the per-utterance control flow: conversation state,
// fan-out analysis, turn recording and persistence of what was produced.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/conversation"
	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/assistant-core/internal/core/error"
	logx "github.com/Chative-core-poc-v1/assistant-core/pkg/logger"
)

const (
	ReasonUser = "user_request"

	clarifyMessage = "Could you tell me a bit more about what you would like to do?"
)

// Runner produces one decision per utterance.
type Runner interface {
	Run(ctx context.Context, in model.AnalyzerInput) (*model.Decision, error)
}

// Reply is what the surrounding service shows the user.
type Reply struct {
	DecisionID string
	Message    string
	Decision   *model.Decision
	WorkflowID string
	// Declined is set when no usable decision could be formed.
	Declined bool
	// Ignored is set when the conversation was inactive.
	Ignored bool
}

type Option func(*Assistant)

func WithGraphRepository(r model.GraphRepository) Option {
	return func(a *Assistant) { a.graphs = r }
}

func WithSnapshotRepository(r model.SnapshotRepository) Option {
	return func(a *Assistant) { a.snapshots = r }
}

func WithUserID(id string) Option {
	return func(a *Assistant) { a.userID = id }
}

// WithContextTurns bounds how many recent turns analyzers see.
func WithContextTurns(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.contextTurns = n
		}
	}
}

// Assistant runs at most one utterance at a time against its conversation.
type Assistant struct {
	// turn is a one-slot semaphore held for the whole of HandleUtterance
	turn         chan struct{}
	sm           *conversation.StateMachine
	runner       Runner
	graphs       model.GraphRepository
	snapshots    model.SnapshotRepository
	userID       string
	contextTurns int
}

func New(sm *conversation.StateMachine, runner Runner, opts ...Option) *Assistant {
	a := &Assistant{
		turn:         make(chan struct{}, 1),
		sm:           sm,
		runner:       runner,
		contextTurns: conversation.DefaultShortTermTurns,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Assistant) Activate(ctx context.Context) conversation.ActivationResult {
	res := a.sm.Activate()
	a.saveSnapshot(ctx)
	return res
}

func (a *Assistant) Deactivate(ctx context.Context, reason string) {
	a.sm.Deactivate(reason)
	a.saveSnapshot(ctx)
}

// OnDeactivate persists the conversation after the state machine deactivated
// it on its own, e.g. on idle timeout. Wire it through the state machine's
// deactivate hook.
func (a *Assistant) OnDeactivate(ctx context.Context, reason string) {
	logx.Debug().Str("conversation_id", a.sm.ID()).Str("reason", reason).Msg("saving snapshot after deactivation")
	a.saveSnapshot(ctx)
}

// HandleUtterance runs one utterance through the pipeline. Utterances are
// handled one at a time; a caller waiting for its turn gives up when ctx is
// done. Fatal pipeline errors become a declined reply; the returned error is
// reserved for cancellation of ctx.
func (a *Assistant) HandleUtterance(ctx context.Context, text string) (*Reply, error) {
	select {
	case a.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-a.turn }()

	if !a.sm.RecordUserInteraction(text) {
		return &Reply{Ignored: true}, nil
	}

	a.sm.SetAgentResponding(true)
	reply := a.respond(ctx, text)
	a.sm.SetAgentResponding(false)

	a.saveSnapshot(ctx)
	if err := ctx.Err(); err != nil {
		return reply, err
	}
	return reply, nil
}

func (a *Assistant) respond(ctx context.Context, text string) *Reply {
	in := model.AnalyzerInput{
		UserInput: text,
		UserID:    a.userID,
		History:   a.sm.RecentTurns(a.contextTurns),
	}

	decision, err := a.runner.Run(ctx, in)
	if err != nil {
		msg := errx.UserMessage(err)
		logx.Warn().Err(err).Str("conversation_id", a.sm.ID()).Msg("declining utterance")
		a.sm.RecordAgentResponse(text, msg, "", "", nil)
		return &Reply{Message: msg, Declined: true}
	}

	reply := &Reply{DecisionID: decision.ID, Decision: decision}
	reply.Message, reply.Declined = composeMessage(decision)

	if decision.Workflow != nil && a.graphs != nil {
		id, err := a.graphs.SaveGraph(ctx, a.userID, *decision.Workflow)
		if err != nil {
			logx.Error().Err(err).Str("decision_id", decision.ID).Msg("failed to persist workflow")
			decision.Log(fmt.Sprintf("workflow not saved: %v", err))
			reply.Message, reply.Declined = errx.WorkflowErrorMessage, true
		} else {
			reply.WorkflowID = id
		}
	}

	a.sm.RecordAgentResponse(text, reply.Message, decision.ID, decision.PrimaryGoal, decision.ExtractedParameters)
	a.sm.SetUserGoal(decision.PrimaryGoal)
	return reply
}

// composeMessage summarizes the decision for the turn ledger and the user.
func composeMessage(d *model.Decision) (string, bool) {
	action := d.SuggestedNextAction
	switch action.ActionType {
	case model.ActionClarify:
		if len(d.PotentialAmbiguities) > 0 {
			return fmt.Sprintf("%s What do you mean by %q?", clarifyMessage, d.PotentialAmbiguities[0].Term), false
		}
		return clarifyMessage, false
	case model.ActionCreateWorkflow:
		if d.Workflow == nil {
			return errx.WorkflowErrorMessage, true
		}
		return fmt.Sprintf("Created an automation with %d steps: %s.", len(d.Workflow.Nodes), describeGraph(d.Workflow)), false
	case model.ActionInvokeSkill:
		if d.SkillResult == "" {
			return fmt.Sprintf("I understood %s but could not complete it right now.", humanize(d.PrimaryGoal)), false
		}
		return d.SkillResult, false
	default:
		return fmt.Sprintf("Understood: %s.", humanize(d.PrimaryGoal)), false
	}
}

func describeGraph(g *model.WorkflowGraph) string {
	labels := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		labels[i] = n.Label
	}
	return strings.Join(labels, " -> ")
}

func humanize(goal string) string {
	return strings.ReplaceAll(goal, "_", " ")
}

// saveSnapshot is best effort.
func (a *Assistant) saveSnapshot(ctx context.Context) {
	if a.snapshots == nil {
		return
	}
	if err := a.snapshots.SaveSnapshot(ctx, a.sm.Snapshot()); err != nil {
		logx.Warn().Err(err).Str("conversation_id", a.sm.ID()).Msg("failed to save conversation snapshot")
	}
}
