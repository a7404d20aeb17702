package analyzers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/assistant-core/internal/core/error"
)

func records(rs ...string) string {
	return strings.Join(rs, recDelim) + endDelim
}

func TestParseAnalysis_WorkflowRequest(t *testing.T) {
	out, err := ParseAnalysis(records(
		`(goal<||>create_email_automation<||>0.86)`,
		`(intent<||>automate_workflow<||>0.9<||>0.7<||>{"source":"email"})`,
		`(entity<||>service<||>notion<||>0.95<||>{"entity_position":[52,58]})`,
		`(sentiment<||>neutral<||>0.8<||>{"polarity":0.1,"subjectivity":4})`,
		`(parameter<||>label<||>"inbox")`,
		`(parameter<||>max_items<||>5)`,
		`(action<||>create_workflow<||><||>described a trigger)`,
		`(trigger<||>gmail<||>new_email<||>{"label":"inbox"})`,
		`(step<||>ai<||>extract_action_items<||>{})`,
		`(step<||>notion<||>create_task)`,
	))
	require.NoError(t, err)

	assert.Equal(t, "create_email_automation", out.Goal)
	assert.InDelta(t, 0.86, out.Confidence, 1e-9)
	require.Len(t, out.Intents, 1)
	assert.Equal(t, "email", out.Intents[0].Metadata["source"])
	require.Len(t, out.Entities, 1)
	assert.Equal(t, []int{52, 58}, out.Entities[0].Position)
	assert.Equal(t, "neutral", out.Sentiment.Label)
	assert.Contains(t, out.Sentiment.Metadata, "polarity")
	assert.NotContains(t, out.Sentiment.Metadata, "subjectivity")
	assert.Equal(t, "inbox", out.Parameters["label"])
	assert.Equal(t, float64(5), out.Parameters["max_items"])

	require.NotNil(t, out.SuggestedAction)
	assert.Equal(t, model.ActionCreateWorkflow, out.SuggestedAction.ActionType)
	require.NotNil(t, out.SuggestedAction.Trigger)
	assert.Equal(t, "gmail", out.SuggestedAction.Trigger.Service)
	require.Len(t, out.SuggestedAction.Actions, 2)
	assert.Equal(t, "create_task", out.SuggestedAction.Actions[1].Action)
	assert.Empty(t, out.ParsingMetadata["parsing_errors"])
}

func TestParseAnalysis_GoalFromPrimaryIntent(t *testing.T) {
	out, err := ParseAnalysis(records(
		`(intent<||>check_weather<||>0.4<||>0.5)`,
		`(intent<||>schedule_meeting<||>0.8<||>0.9)`,
	))
	require.NoError(t, err)
	assert.Equal(t, "schedule_meeting", out.Goal)
	assert.InDelta(t, 0.8, out.Confidence, 1e-9)
	assert.Nil(t, out.SuggestedAction)
}

func TestParseAnalysis_NoGoalOrIntentFails(t *testing.T) {
	out, err := ParseAnalysis(records(`(entity<||>city<||>Paris<||>0.9)`))
	assert.Nil(t, out)
	assert.ErrorIs(t, err, errx.ErrEmptyAnalysis)

	_, err = ParseAnalysis("the model ignored the format")
	assert.ErrorIs(t, err, errx.ErrEmptyAnalysis)
}

func TestParseAnalysis_BadRecordsAreReported(t *testing.T) {
	out, err := ParseAnalysis(records(
		`(goal<||>book_flight<||>0.7)`,
		`(goal<||>other<||>0.9)`,
		`(intent<||>x<||>1.5<||>0.2)`,
		`(entity<||>city<||><||>0.9)`,
		`(action<||>launch_rocket)`,
		`(mystery<||>value)`,
		`not a tuple`,
	))
	require.NoError(t, err)
	assert.Equal(t, "book_flight", out.Goal)
	assert.Empty(t, out.Intents)
	assert.Empty(t, out.Entities)
	assert.Nil(t, out.SuggestedAction)

	errs, ok := out.ParsingMetadata["parsing_errors"].([]string)
	require.True(t, ok)
	assert.Len(t, errs, 6)
}

func TestParseAnalysis_TasksAlternativesAmbiguities(t *testing.T) {
	out, err := ParseAnalysis(records(
		`(goal<||>create_email_automation<||>0.8)`,
		`(task<||>extract action items from new emails)`,
		`(task<||>create a notion task per action item)`,
		`(alternative<||>summarize_inbox)`,
		`(ambiguity<||>action items<||>unclear whether replies count)`,
		`(ambiguity<||>asap)`,
		`(task<||>)`,
		`(alternative)`,
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"extract action items from new emails", "create a notion task per action item"}, out.Tasks)
	assert.Equal(t, []string{"summarize_inbox"}, out.AlternativeGoals)
	assert.Equal(t, []model.Ambiguity{
		{Term: "action items", Reason: "unclear whether replies count"},
		{Term: "asap"},
	}, out.Ambiguities)

	errs, ok := out.ParsingMetadata["parsing_errors"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"task: invalid description", "bad_record: (alternative)"}, errs)
}

func TestParseAnalysis_TriggerWithoutActionImpliesWorkflow(t *testing.T) {
	out, err := ParseAnalysis(records(
		`(goal<||>daily_digest<||>0.6)`,
		`(trigger<||>schedule<||>daily<||>{"time":"08:00"})`,
	))
	require.NoError(t, err)
	require.NotNil(t, out.SuggestedAction)
	assert.Equal(t, model.ActionCreateWorkflow, out.SuggestedAction.ActionType)
	assert.Nil(t, out.SuggestedAction.Actions, "no step records leaves the action list absent")
}

func TestParseAnalysis_IgnoresTextAfterCompletion(t *testing.T) {
	out, err := ParseAnalysis(`(goal<||>greet<||>0.9)` + endDelim + `(goal<||>ignored<||>1)`)
	require.NoError(t, err)
	assert.Equal(t, "greet", out.Goal)
}

func TestParseAnalysis_SkillAction(t *testing.T) {
	out, err := ParseAnalysis(records(
		`(goal<||>find_component<||>0.75)`,
		`(action<||>invoke_skill<||>search_components<||>user asked what exists)`,
		`(trigger<||>gmail<||>new_email)`,
	))
	require.NoError(t, err)
	require.NotNil(t, out.SuggestedAction)
	assert.Equal(t, "search_components", out.SuggestedAction.SkillID)
	assert.Nil(t, out.SuggestedAction.Trigger)
}

func TestParseAnalysis_TruncatesOversizedContent(t *testing.T) {
	content := `(goal<||>big<||>0.5)` + recDelim + strings.Repeat("x", maxContentLen)
	out, err := ParseAnalysis(content)
	require.NoError(t, err)
	assert.Equal(t, true, out.ParsingMetadata["truncated"])
}
