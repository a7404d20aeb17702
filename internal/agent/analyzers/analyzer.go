// Package analyzers turns one utterance into an AnalysisPayload through an
// eino prompt -> chat model -> parser chain, one chain per roster role.
package analyzers

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/observers"
	logx "github.com/Chative-core-poc-v1/assistant-core/pkg/logger"
)

const DefaultContextTurns = 10

type Option func(*options)

type options struct {
	modelName    string
	contextTurns int
	skills       []string
}

// WithModelName labels usage cost with the model's pricing entry.
func WithModelName(name string) Option {
	return func(o *options) { o.modelName = name }
}

// WithContextTurns bounds how many past turns are rendered into the prompt.
func WithContextTurns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.contextTurns = n
		}
	}
}

// WithSkills lists the skill ids the model may propose.
func WithSkills(ids ...string) Option {
	return func(o *options) { o.skills = append(o.skills, ids...) }
}

// LLMAnalyzer runs one role's chain. It holds no per-request state and can be
// invoked concurrently.
type LLMAnalyzer struct {
	role     Role
	runnable compose.Runnable[model.AnalyzerInput, *model.AnalysisPayload]
}

// NewLLMAnalyzer compiles the chain for role on top of cm.
func NewLLMAnalyzer(ctx context.Context, role Role, cm einomodel.BaseChatModel, opts ...Option) (*LLMAnalyzer, error) {
	if cm == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	o := options{contextTurns: DefaultContextTurns}
	for _, opt := range opts {
		opt(&o)
	}

	system := renderSystemPrompt(role, o.skills)

	chain := compose.NewChain[model.AnalyzerInput, *model.AnalysisPayload]()
	chain.
		AppendLambda(compose.InvokableLambda(func(ctx context.Context, in model.AnalyzerInput) (map[string]any, error) {
			return templateVars(system, BuildContext(in, o.contextTurns)), nil
		}), compose.WithNodeName("context_builder")).
		AppendChatTemplate(newChatTemplate(), compose.WithNodeName("analyzer_prompt")).
		AppendChatModel(cm, compose.WithNodeName("analyzer_model")).
		AppendLambda(compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (*model.AnalysisPayload, error) {
			return parseMessage(role, o.modelName, msg)
		}), compose.WithNodeName("analysis_parser"))

	runnable, err := chain.Compile(ctx)
	if err != nil {
		logx.Error().Err(err).Str("role", role.Name).Msg("Error compiling analyzer chain")
		return nil, fmt.Errorf("compile %s analyzer: %w", role.Name, err)
	}
	return &LLMAnalyzer{role: role, runnable: runnable}, nil
}

func (a *LLMAnalyzer) Name() string { return a.role.Name }

// Analyze runs the chain. Cancellation of ctx aborts the model call.
func (a *LLMAnalyzer) Analyze(ctx context.Context, in model.AnalyzerInput) (*model.AnalysisPayload, error) {
	return a.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
}

func parseMessage(role Role, modelName string, msg *schema.Message) (*model.AnalysisPayload, error) {
	if msg == nil {
		return nil, fmt.Errorf("%s analyzer: empty model response", role.Name)
	}
	payload, err := ParseAnalysis(msg.Content)
	if err != nil {
		logx.Warn().Err(err).Str("role", role.Name).Msg("analysis could not be parsed")
		return nil, err
	}
	payload.Metadata["worker"] = role.Name
	if msg.ResponseMeta != nil {
		if cost := model.ComputeCost(modelName, msg.ResponseMeta.Usage); cost != nil {
			payload.Metadata["usage_cost"] = cost
			logx.Debug().
				Str("role", role.Name).
				Str("model", modelName).
				Int("prompt_tokens", cost.PromptTokens).
				Int("completion_tokens", cost.CompletionTokens).
				Float64("total_cost_usd", cost.TotalCost).
				Msg("LLM usage")
		}
	}
	return payload, nil
}

// NewRoster builds one analyzer per role name, all sharing cm.
func NewRoster(ctx context.Context, names []string, cm einomodel.BaseChatModel, opts ...Option) ([]*LLMAnalyzer, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("analyzer roster is empty")
	}
	out := make([]*LLMAnalyzer, 0, len(names))
	for _, n := range names {
		role, err := LookupRole(n)
		if err != nil {
			return nil, err
		}
		a, err := NewLLMAnalyzer(ctx, role, cm, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
