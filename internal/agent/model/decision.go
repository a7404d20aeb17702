package model

type ActionType string

const (
	ActionInvokeSkill    ActionType = "invoke_skill"
	ActionCreateWorkflow ActionType = "create_workflow"
	ActionClarify        ActionType = "clarify_query"
	ActionRespond        ActionType = "direct_response"
)

// TriggerSpec names the event that starts a workflow.
type TriggerSpec struct {
	Service    string         `json:"service"`
	Event      string         `json:"event"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ActionSpec names one step of a workflow.
type ActionSpec struct {
	Service    string         `json:"service"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// WorkflowSpec is the trigger + ordered actions payload handed to the compiler.
// A nil Actions slice means "absent"; an empty one is a valid, trigger-only request.
type WorkflowSpec struct {
	Trigger *TriggerSpec `json:"trigger,omitempty"`
	Actions []ActionSpec `json:"actions"`
}

type NextAction struct {
	ActionType ActionType   `json:"action_type"`
	SkillID    string       `json:"skill_id,omitempty"`
	Trigger    *TriggerSpec `json:"trigger,omitempty"`
	Actions    []ActionSpec `json:"actions,omitempty"`
	Reason     string       `json:"reason,omitempty"`
}

// WorkflowSpec extracts the compiler input from the action.
func (a NextAction) WorkflowSpec() WorkflowSpec {
	return WorkflowSpec{Trigger: a.Trigger, Actions: a.Actions}
}

// Decision is the synthesized outcome for one utterance. AlternativeInterpretations
// lists other readings of the utterance, best first.
type Decision struct {
	ID                         string                    `json:"id"`
	OriginalQuery              string                    `json:"original_query"`
	UserID                     string                    `json:"user_id,omitempty"`
	PrimaryGoal                string                    `json:"primary_goal"`
	Confidence                 float64                   `json:"confidence"`
	ExtractedParameters        map[string]any            `json:"extracted_parameters"`
	IdentifiedTasks            []string                  `json:"identified_tasks,omitempty"`
	AlternativeInterpretations []string                  `json:"alternative_interpretations,omitempty"`
	PotentialAmbiguities       []Ambiguity               `json:"potential_ambiguities,omitempty"`
	SuggestedNextAction        NextAction                `json:"suggested_next_action"`
	PerWorkerResults           map[string]AnalyzerResult `json:"per_worker_results"`
	SkillResult                string                    `json:"skill_result,omitempty"`
	Workflow                   *WorkflowGraph            `json:"workflow,omitempty"`
	SynthesisLog               []string                  `json:"synthesis_log"`
}

// Log appends a line to the synthesis log.
func (d *Decision) Log(line string) {
	d.SynthesisLog = append(d.SynthesisLog, line)
}
