package model

import (
	"context"
	"maps"
	"slices"
	"time"
)

// Turn is one completed exchange. Turns are never edited after they are appended.
type Turn struct {
	UserInput     string         `json:"user_input"`
	AgentResponse string         `json:"agent_response"`
	DecisionID    string         `json:"decision_id,omitempty"`
	Intent        string         `json:"intent,omitempty"`
	Entities      map[string]any `json:"entities,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// ConversationSnapshot is a point-in-time copy of the conversation state.
type ConversationSnapshot struct {
	ConversationID      string         `json:"conversation_id"`
	IsActive            bool           `json:"is_active"`
	IsAgentResponding   bool           `json:"is_agent_responding"`
	LastInteractionTime *time.Time     `json:"last_interaction_time,omitempty"`
	IdleTimerPending    bool           `json:"idle_timer_pending"`
	TurnHistory         []Turn         `json:"turn_history"`
	CurrentIntent       string         `json:"current_intent,omitempty"`
	IdentifiedEntities  map[string]any `json:"identified_entities,omitempty"`
	UserGoal            string         `json:"user_goal,omitempty"`
	LTMContext          []any          `json:"ltm_context,omitempty"`
	TakenAt             time.Time      `json:"taken_at"`
}

// CloneTurns copies the slice and each turn's entity map.
func CloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	out := make([]Turn, len(turns))
	for i, t := range turns {
		t.Entities = maps.Clone(t.Entities)
		out[i] = t
	}
	return out
}

// SnapshotRepository persists conversation snapshots outside the process.
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, snapshot ConversationSnapshot) error
	LoadSnapshot(ctx context.Context, conversationID string) (*ConversationSnapshot, error)
}

// AnalyzerInput is the immutable request every roster member receives.
type AnalyzerInput struct {
	UserInput string `json:"user_input"`
	UserID    string `json:"user_id,omitempty"`
	History   []Turn `json:"history,omitempty"`
}

// Clone returns a copy that shares no mutable state with the receiver.
func (in AnalyzerInput) Clone() AnalyzerInput {
	in.History = CloneTurns(in.History)
	return in
}

// LastTurns returns at most n trailing turns.
func LastTurns(turns []Turn, n int) []Turn {
	if n <= 0 || len(turns) == 0 {
		return nil
	}
	if len(turns) <= n {
		return slices.Clone(turns)
	}
	return slices.Clone(turns[len(turns)-n:])
}
