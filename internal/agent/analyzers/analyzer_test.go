package analyzers

import (
	"context"
	"errors"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
)

type fakeChatModel struct {
	mu      sync.Mutex
	reply   string
	err     error
	usage   *schema.TokenUsage
	prompts [][]*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, input)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	msg := schema.AssistantMessage(f.reply, nil)
	if f.usage != nil {
		msg.ResponseMeta = &schema.ResponseMeta{Usage: f.usage}
	}
	return msg, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func TestLLMAnalyzer_Analyze(t *testing.T) {
	cm := &fakeChatModel{
		reply: records(`(goal<||>schedule_meeting<||>0.8)`, `(parameter<||>when<||>tomorrow 10am)`),
		usage: &schema.TokenUsage{PromptTokens: 1000, CompletionTokens: 100, TotalTokens: 1100},
	}
	role, err := LookupRole("scheduling")
	require.NoError(t, err)

	a, err := NewLLMAnalyzer(context.Background(), role, cm, WithModelName("gemini-2.5-flash-lite"), WithContextTurns(1))
	require.NoError(t, err)
	assert.Equal(t, "scheduling", a.Name())

	out, err := a.Analyze(context.Background(), model.AnalyzerInput{
		UserInput: "set up a sync with Dana",
		History: []model.Turn{
			{UserInput: "old question", AgentResponse: "old answer"},
			{UserInput: "hi", AgentResponse: "hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "schedule_meeting", out.Goal)
	assert.Equal(t, "tomorrow 10am", out.Parameters["when"])
	assert.Equal(t, "scheduling", out.Metadata["worker"])

	cost, ok := out.Metadata["usage_cost"].(*model.UsageCost)
	require.True(t, ok)
	assert.InDelta(t, 0.0001+0.00004, cost.TotalCost, 1e-12)

	require.Len(t, cm.prompts, 1)
	prompt := cm.prompts[0]
	require.Len(t, prompt, 2)
	assert.Equal(t, schema.System, prompt[0].Role)
	assert.Contains(t, prompt[0].Content, "scheduling analyst")
	assert.Contains(t, prompt[1].Content, "UserMessage(hi)")
	assert.NotContains(t, prompt[1].Content, "old question")
	assert.Contains(t, prompt[1].Content, "UserMessage(set up a sync with Dana)")
}

func TestLLMAnalyzer_ModelErrorPropagates(t *testing.T) {
	boom := errors.New("quota exceeded")
	role, _ := LookupRole("practical")
	a, err := NewLLMAnalyzer(context.Background(), role, &fakeChatModel{err: boom})
	require.NoError(t, err)

	_, err = a.Analyze(context.Background(), model.AnalyzerInput{UserInput: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestLLMAnalyzer_UnparseableReplyFails(t *testing.T) {
	role, _ := LookupRole("creative")
	a, err := NewLLMAnalyzer(context.Background(), role, &fakeChatModel{reply: "Sure! Here is what I think."})
	require.NoError(t, err)

	_, err = a.Analyze(context.Background(), model.AnalyzerInput{UserInput: "x"})
	assert.Error(t, err)
}

func TestNewRoster(t *testing.T) {
	cm := &fakeChatModel{reply: records(`(goal<||>g<||>0.5)`)}

	roster, err := NewRoster(context.Background(), []string{"analytical", "Automation"}, cm)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "automation", roster[1].Name())

	_, err = NewRoster(context.Background(), []string{"analytical", "psychic"}, cm)
	assert.ErrorContains(t, err, "psychic")

	_, err = NewRoster(context.Background(), nil, cm)
	assert.Error(t, err)
}

func TestRenderSystemPrompt(t *testing.T) {
	role, _ := LookupRole("automation")
	p := renderSystemPrompt(role, []string{"search_components", "describe_component"})
	assert.Contains(t, p, "search_components, describe_component")
	assert.Contains(t, p, "(goal<||>")
	assert.NotContains(t, p, "{TD}")
	assert.Contains(t, p, `{"label":"inbox"}`)
	assert.Contains(t, p, "(ambiguity<||>")

	assert.Contains(t, renderSystemPrompt(role, nil), "these skills: none")
}

func TestRoleNamesSorted(t *testing.T) {
	assert.Equal(t, []string{"analytical", "automation", "creative", "practical", "scheduling"}, RoleNames())
}

func TestBuildContext_EmptyHistory(t *testing.T) {
	got := BuildContext(model.AnalyzerInput{UserInput: "hello"}, 10)
	assert.Equal(t, "<conversation_context>\n</conversation_context>\n<current_message_to_analyze>\nUserMessage(hello)\n</current_message_to_analyze>", got)
}
